package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// ListRoutes lists routes; archived records only with ?archived=true.
func (h *Handler) ListRoutes(c *gin.Context) {
	q := h.DB.Model(&models.Route{})
	if c.Query("archived") != "true" {
		q = q.Where("is_archived = ?", false)
	}

	var routes []models.Route
	if err := q.Order("priority, id").Find(&routes).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

// GetRoute returns one route.
func (h *Handler) GetRoute(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}
	route, err := h.Store.RouteByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}
	c.JSON(http.StatusOK, route)
}

type routeCreate struct {
	RouteName       string   `json:"routeName" binding:"required"`
	RouteNumber     string   `json:"routeNumber" binding:"required"`
	EstimatedTime   string   `json:"estimatedTime"`
	Distance        float64  `json:"distance"`
	Stops           []string `json:"stops"`
	GeoJSON         string   `json:"geoJson"`
	BusTypeRequired string   `json:"busTypeRequired"`
	ReliefPoints    []string `json:"reliefPoints"`
	Priority        *int     `json:"priority"`
	RunDays         []int    `json:"runDays"`
}

// CreateRoute registers a route; runDays defaults to weekdays and priority
// to 10.
func (h *Handler) CreateRoute(c *gin.Context) {
	var req routeCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route := models.Route{
		RouteName:       req.RouteName,
		RouteNumber:     req.RouteNumber,
		EstimatedTime:   req.EstimatedTime,
		Distance:        req.Distance,
		Stops:           req.Stops,
		GeoJSON:         req.GeoJSON,
		BusTypeRequired: req.BusTypeRequired,
		ReliefPoints:    req.ReliefPoints,
		Priority:        10,
		RunDays:         req.RunDays,
		CreatedBy:       actor(c),
		UpdatedBy:       actor(c),
	}
	if req.Priority != nil {
		route.Priority = *req.Priority
	}
	if len(route.RunDays) == 0 {
		route.RunDays = models.DefaultRunDays
	}
	if err := h.DB.Create(&route).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

type routeUpdate struct {
	RouteName       *string   `json:"routeName"`
	RouteNumber     *string   `json:"routeNumber"`
	EstimatedTime   *string   `json:"estimatedTime"`
	Distance        *float64  `json:"distance"`
	Stops           *[]string `json:"stops"`
	GeoJSON         *string   `json:"geoJson"`
	BusTypeRequired *string   `json:"busTypeRequired"`
	ReliefPoints    *[]string `json:"reliefPoints"`
	Priority        *int      `json:"priority"`
	RunDays         *[]int    `json:"runDays"`
	IsArchived      *bool     `json:"isArchived"`
}

// UpdateRoute applies a partial update.
func (h *Handler) UpdateRoute(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}
	var req routeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route, err := h.Store.RouteByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}

	if req.RouteName != nil {
		route.RouteName = *req.RouteName
	}
	if req.RouteNumber != nil {
		route.RouteNumber = *req.RouteNumber
	}
	if req.EstimatedTime != nil {
		route.EstimatedTime = *req.EstimatedTime
	}
	if req.Distance != nil {
		route.Distance = *req.Distance
	}
	if req.Stops != nil {
		route.Stops = *req.Stops
	}
	if req.GeoJSON != nil {
		route.GeoJSON = *req.GeoJSON
	}
	if req.BusTypeRequired != nil {
		route.BusTypeRequired = *req.BusTypeRequired
	}
	if req.ReliefPoints != nil {
		route.ReliefPoints = *req.ReliefPoints
	}
	if req.Priority != nil {
		route.Priority = *req.Priority
	}
	if req.RunDays != nil {
		route.RunDays = *req.RunDays
	}
	if req.IsArchived != nil {
		route.IsArchived = *req.IsArchived
	}
	route.UpdatedBy = actor(c)

	if err := h.DB.Save(route).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// ArchiveRoute soft-deletes a route.
func (h *Handler) ArchiveRoute(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}
	res := h.DB.Model(&models.Route{}).Where("id = ?", id).
		Updates(map[string]any{"is_archived": true, "updated_by": actor(c)})
	if res.Error != nil {
		h.respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Archived"})
}
