package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citytransit/depot-scheduler-go/pkg/auth"
	"github.com/citytransit/depot-scheduler-go/pkg/database"
	"github.com/citytransit/depot-scheduler-go/pkg/handlers"
	"github.com/citytransit/depot-scheduler-go/pkg/logger"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	log := logger.New("main")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	db := database.InitDB()
	if err := auth.EnsureAdminExists(db); err != nil {
		log.Fatal().Err(err).Msg("could not bootstrap admin user")
	}
	h := handlers.NewHandler(db)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.RequireAdmin(), h.UpdateSettings)

		api.GET("/crews", h.ListCrews)
		api.GET("/crews/export", h.ExportCrewsCSV)
		api.GET("/crews/:id", h.GetCrew)
		api.POST("/crews", h.RequireAdmin(), h.CreateCrew)
		api.PUT("/crews/:id", h.RequireAdmin(), h.UpdateCrew)
		api.DELETE("/crews/:id", h.RequireAdmin(), h.ArchiveCrew)

		api.GET("/buses", h.ListBuses)
		api.GET("/buses/:id", h.GetBus)
		api.POST("/buses", h.RequireAdmin(), h.CreateBus)
		api.PUT("/buses/:id", h.RequireAdmin(), h.UpdateBus)
		api.DELETE("/buses/:id", h.RequireAdmin(), h.ArchiveBus)

		api.GET("/routes", h.ListRoutes)
		api.GET("/routes/:id", h.GetRoute)
		api.POST("/routes", h.RequireAdmin(), h.CreateRoute)
		api.PUT("/routes/:id", h.RequireAdmin(), h.UpdateRoute)
		api.DELETE("/routes/:id", h.RequireAdmin(), h.ArchiveRoute)

		api.GET("/duties", h.ListDuties)
		api.GET("/duties/count", h.CountDuties)
		api.POST("/duties", h.CreateDuty)
		api.PUT("/duties/:id/complete", h.CompleteDuty)

		api.POST("/assignments/check", h.CheckConflicts)
		api.POST("/assignments", h.CreateAssignment)
		api.POST("/assignments/auto", h.AutoAssign)
		api.GET("/assignments/day", h.ListAssignmentsByDay)
		api.GET("/assignments/day/export", h.ExportDayCSV)
		api.GET("/assignments/range", h.ListAssignmentsByRange)
		api.PATCH("/assignments/:id/cancel", h.CancelAssignment)

		api.POST("/schedule/preview", h.PreviewSchedule)
		api.POST("/schedule/generate", h.GenerateSchedule)
		api.POST("/schedule/undo/batch/:batchId", h.UndoBatch)
		api.POST("/schedule/undo/day", h.UndoDay)

		api.GET("/reports/conflicts", h.ConflictReport)
		api.GET("/reports/utilization", h.UtilizationReport)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("could not run server")
	}
}
