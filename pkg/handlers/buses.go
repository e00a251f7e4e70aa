package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// ListBuses lists the fleet with optional status/type filters.
func (h *Handler) ListBuses(c *gin.Context) {
	q := h.DB.Model(&models.Bus{})
	if c.Query("archived") != "true" {
		q = q.Where("is_archived = ?", false)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if busType := c.Query("type"); busType != "" {
		q = q.Where("type = ?", busType)
	}

	var buses []models.Bus
	if err := q.Order("id").Find(&buses).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buses)
}

// GetBus returns one bus.
func (h *Handler) GetBus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bus id"})
		return
	}
	bus, err := h.Store.BusByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if bus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}
	c.JSON(http.StatusOK, bus)
}

type busCreate struct {
	BusNumber          string                     `json:"busNumber" binding:"required"`
	Capacity           int                        `json:"capacity" binding:"required"`
	Type               string                     `json:"type"`
	Status             string                     `json:"status"`
	Depot              string                     `json:"depot"`
	MaintenanceWindows []models.MaintenanceWindow `json:"maintenanceWindows"`
}

// CreateBus registers a fleet vehicle.
func (h *Handler) CreateBus(c *gin.Context) {
	var req busCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus := models.Bus{
		BusNumber:          req.BusNumber,
		Capacity:           req.Capacity,
		Type:               req.Type,
		Status:             req.Status,
		Depot:              req.Depot,
		MaintenanceWindows: req.MaintenanceWindows,
		CreatedBy:          actor(c),
		UpdatedBy:          actor(c),
	}
	if bus.Type == "" {
		bus.Type = "Standard"
	}
	if bus.Status == "" {
		bus.Status = models.BusIdle
	}
	if err := h.DB.Create(&bus).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bus)
}

type busUpdate struct {
	BusNumber          *string                     `json:"busNumber"`
	Capacity           *int                        `json:"capacity"`
	Type               *string                     `json:"type"`
	Status             *string                     `json:"status"`
	Depot              *string                     `json:"depot"`
	MaintenanceWindows *[]models.MaintenanceWindow `json:"maintenanceWindows"`
	IsArchived         *bool                       `json:"isArchived"`
}

// UpdateBus applies a partial update.
func (h *Handler) UpdateBus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bus id"})
		return
	}
	var req busUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus, err := h.Store.BusByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if bus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	if req.BusNumber != nil {
		bus.BusNumber = *req.BusNumber
	}
	if req.Capacity != nil {
		bus.Capacity = *req.Capacity
	}
	if req.Type != nil {
		bus.Type = *req.Type
	}
	if req.Status != nil {
		bus.Status = *req.Status
	}
	if req.Depot != nil {
		bus.Depot = *req.Depot
	}
	if req.MaintenanceWindows != nil {
		bus.MaintenanceWindows = *req.MaintenanceWindows
	}
	if req.IsArchived != nil {
		bus.IsArchived = *req.IsArchived
	}
	bus.UpdatedBy = actor(c)

	if err := h.DB.Save(bus).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// ArchiveBus soft-deletes a bus.
func (h *Handler) ArchiveBus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bus id"})
		return
	}
	res := h.DB.Model(&models.Bus{}).Where("id = ?", id).
		Updates(map[string]any{"is_archived": true, "updated_by": actor(c)})
	if res.Error != nil {
		h.respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Archived"})
}
