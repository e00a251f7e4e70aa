package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/citytransit/depot-scheduler-go/pkg/auth"
	"github.com/citytransit/depot-scheduler-go/pkg/database"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	h := NewHandler(db)
	r := gin.New()

	r.GET("/healthz", h.Healthz)
	r.POST("/api/auth/login", h.Login)

	// Routes under test run with a fixed identity instead of the JWT
	// middleware.
	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("username", "tester")
		c.Set("role", auth.RoleAdmin)
	})
	{
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		api.GET("/crews", h.ListCrews)
		api.POST("/crews", h.CreateCrew)
		api.PUT("/crews/:id", h.UpdateCrew)

		api.POST("/buses", h.CreateBus)
		api.POST("/routes", h.CreateRoute)

		api.GET("/duties", h.ListDuties)
		api.GET("/duties/count", h.CountDuties)
		api.POST("/duties", h.CreateDuty)
		api.PUT("/duties/:id/complete", h.CompleteDuty)

		api.POST("/assignments/check", h.CheckConflicts)
		api.POST("/assignments", h.CreateAssignment)
		api.POST("/assignments/auto", h.AutoAssign)
		api.GET("/assignments/day", h.ListAssignmentsByDay)
	}
	return r, h
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin(t *testing.T) {
	r, h := newTestRouter(t)

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, h.DB.Create(&models.MasterUser{
		Username: "ops", PasswordHash: hash, Role: auth.RoleAdmin,
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"username": "ops", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"username": "ops", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateCrewAssignsSequentialCode(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 1; i <= 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/crews", gin.H{
			"name": fmt.Sprintf("Driver %d", i), "role": models.RoleDriver,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var crew models.Crew
		decode(t, w, &crew)
		assert.Equal(t, fmt.Sprintf("DTC-C%03d", i), crew.CrewID)
		assert.Equal(t, models.CrewAvailable, crew.Status)
	}
}

func TestCreateCrewRejectsUnknownQualification(t *testing.T) {
	r, _ := newTestRouter(t)

	// An unknown tag must not be dropped silently: the remaining set could
	// collapse to empty, which reads as qualified for everything.
	w := doJSON(t, r, http.MethodPost, "/api/crews", gin.H{
		"name": "Asha", "role": models.RoleDriver, "qualifications": []string{"Tram", "EV"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/crews", gin.H{
		"name": "Asha", "role": models.RoleDriver, "qualifications": []string{"EV", "AC"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var crew models.Crew
	decode(t, w, &crew)
	assert.Equal(t, []string{"EV", "AC"}, crew.Qualifications)
}

func TestUpdateCrewRejectsUnknownQualification(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/crews", gin.H{"name": "Asha", "role": models.RoleDriver})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var crew models.Crew
	decode(t, w, &crew)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/crews/%d", crew.ID), gin.H{
		"qualifications": []string{"Trolley"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCrewRejectsUnknownRole(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/crews", gin.H{
		"name": "Asha", "role": "Mechanic",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsUpdatePersistsExplicitFalse(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/settings", gin.H{"allowOverrides": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s models.Settings
	decode(t, w, &s)
	assert.False(t, s.AllowOverrides)
	// Untouched fields keep their defaults.
	assert.Equal(t, 12.0, s.MinRestHours)
}

func seedAssignmentFixtures(t *testing.T, r *gin.Engine) (crewID, busID, routeID uint) {
	t.Helper()

	w := doJSON(t, r, http.MethodPut, "/api/settings", gin.H{"freezeWindowHours": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/crews", gin.H{"name": "Asha", "role": models.RoleDriver})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var crew models.Crew
	decode(t, w, &crew)

	w = doJSON(t, r, http.MethodPost, "/api/buses", gin.H{"busNumber": "DL-101", "capacity": 40})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bus models.Bus
	decode(t, w, &bus)

	w = doJSON(t, r, http.MethodPost, "/api/routes", gin.H{"routeName": "Ring Road", "routeNumber": "R-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var route models.Route
	decode(t, w, &route)

	return crew.ID, bus.ID, route.ID
}

func TestAssignmentLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)
	crewID, busID, routeID := seedAssignmentFixtures(t, r)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	end := start.Add(4 * time.Hour)
	proposal := gin.H{
		"crewId": crewID, "busId": busID, "routeId": routeID,
		"role":      models.RoleDriver,
		"startTime": start.Format(time.RFC3339),
		"endTime":   end.Format(time.RFC3339),
	}

	w := doJSON(t, r, http.MethodPost, "/api/assignments/check", proposal)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var check struct {
		Conflicts []any `json:"conflicts"`
	}
	decode(t, w, &check)
	assert.Empty(t, check.Conflicts)

	w = doJSON(t, r, http.MethodPost, "/api/assignments", proposal)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Assignment
	decode(t, w, &created)
	assert.Equal(t, "tester", created.CreatedBy)

	// The identical window now conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/assignments", proposal)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	var conflict struct {
		Error     string `json:"error"`
		Conflicts []struct {
			Kind string `json:"kind"`
		} `json:"conflicts"`
	}
	decode(t, w, &conflict)
	assert.NotEmpty(t, conflict.Conflicts)

	w = doJSON(t, r, http.MethodGet, "/api/assignments/day?date="+start.Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAutoAssignOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)
	_, _, routeID := seedAssignmentFixtures(t, r)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	w := doJSON(t, r, http.MethodPost, "/api/assignments/auto", gin.H{
		"routeId":   routeID,
		"startTime": start.Format(time.RFC3339),
		"endTime":   start.Add(4 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		Driver models.Crew         `json:"driver"`
		Bus    models.Bus          `json:"bus"`
		Asgns  []models.Assignment `json:"assignments"`
	}
	decode(t, w, &res)
	assert.NotZero(t, res.Driver.ID)
	assert.NotZero(t, res.Bus.ID)
	assert.Len(t, res.Asgns, 1)
}

func TestDutyLifecycleOverHTTP(t *testing.T) {
	r, h := newTestRouter(t)
	crewID, busID, _ := seedAssignmentFixtures(t, r)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	end := start.Add(8 * time.Hour)
	body := gin.H{
		"type": models.DutyLinked, "crewId": crewID, "busId": busID, "route": "Ring Road",
		"startTime": start.Format(time.RFC3339), "endTime": end.Format(time.RFC3339),
	}

	w := doJSON(t, r, http.MethodPost, "/api/duties", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var duty models.Duty
	decode(t, w, &duty)
	assert.Equal(t, models.DutyScheduled, duty.Status)

	// Creating a duty moves the crew member on duty.
	var crew models.Crew
	require.NoError(t, h.DB.First(&crew, crewID).Error)
	assert.Equal(t, models.CrewOnDuty, crew.Status)

	// A second duty over the same window conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/duties", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// One starting too soon after the first fails the rest rule.
	body["startTime"] = end.Add(2 * time.Hour).Format(time.RFC3339)
	body["endTime"] = end.Add(6 * time.Hour).Format(time.RFC3339)
	w = doJSON(t, r, http.MethodPost, "/api/duties", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/duties/%d/complete", duty.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completed models.Duty
	decode(t, w, &completed)
	assert.Equal(t, models.DutyCompleted, completed.Status)

	require.NoError(t, h.DB.First(&crew, crewID).Error)
	assert.Equal(t, models.CrewResting, crew.Status)
	require.NotNil(t, crew.LastDutyEnd)
	assert.True(t, crew.LastDutyEnd.Equal(end))

	w = doJSON(t, r, http.MethodGet, "/api/duties/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &count)
	assert.Equal(t, int64(1), count.Total)
}

func TestCreateDutyRejectsUnknownType(t *testing.T) {
	r, _ := newTestRouter(t)
	crewID, busID, _ := seedAssignmentFixtures(t, r)

	start := time.Now().Add(48 * time.Hour)
	w := doJSON(t, r, http.MethodPost, "/api/duties", gin.H{
		"type": "Split", "crewId": crewID, "busId": busID, "route": "Ring Road",
		"startTime": start.Format(time.RFC3339),
		"endTime":   start.Add(4 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAutoAssignNoPoolReturnsConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	// A route with no buses or drivers at all.
	w := doJSON(t, r, http.MethodPut, "/api/settings", gin.H{"freezeWindowHours": 0})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/routes", gin.H{"routeName": "Ring Road", "routeNumber": "R-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var route models.Route
	decode(t, w, &route)

	start := time.Now().Add(48 * time.Hour)
	w = doJSON(t, r, http.MethodPost, "/api/assignments/auto", gin.H{
		"routeId":   route.ID,
		"startTime": start.Format(time.RFC3339),
		"endTime":   start.Add(4 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}
