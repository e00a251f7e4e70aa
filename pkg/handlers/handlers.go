// Package handlers wires the scheduling core and record CRUD to gin routes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/citytransit/depot-scheduler-go/pkg/auth"
	"github.com/citytransit/depot-scheduler-go/pkg/logger"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/scheduler"
	"github.com/citytransit/depot-scheduler-go/pkg/store"
)

// Handler contains dependencies for the route handlers.
type Handler struct {
	DB    *gorm.DB
	Store *store.Store
	Orch  *scheduler.Orchestrator

	log zerolog.Logger
}

// NewHandler builds the handler set over an open database.
func NewHandler(db *gorm.DB) *Handler {
	st := store.New(db)
	return &Handler{
		DB:    db,
		Store: st,
		Orch:  scheduler.NewOrchestrator(st),
		log:   logger.New("http"),
	}
}

// AuthMiddleware verifies the JWT token and stores the caller identity on
// the context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAdmin gates mutating record routes to admin operators.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != auth.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Login authenticates an operator and issues a JWT.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// Healthz is a liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor returns the authenticated caller for audit fields.
func actor(c *gin.Context) string {
	if u := c.GetString("username"); u != "" {
		return u
	}
	return "unknown"
}

// respondError maps the scheduler error taxonomy onto HTTP statuses.
// Conflict responses always carry the full ordered reasons list so override
// decisions can be made on complete information.
func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *scheduler.ValidationError
	var nf *scheduler.NotFoundError
	var ce *scheduler.ConflictError
	var re *scheduler.RequirementUnsatisfiedError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Msg, "conflicts": ce.Violations})
	case errors.As(err, &re):
		c.JSON(http.StatusConflict, gin.H{"error": re.Msg})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
