package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// ListDuties lists rostered duties, optionally filtered by crew or status.
func (h *Handler) ListDuties(c *gin.Context) {
	q := h.DB.Model(&models.Duty{})
	if crewID := c.Query("crewId"); crewID != "" {
		q = q.Where("crew_id = ?", crewID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var duties []models.Duty
	if err := q.Order("start_time").Find(&duties).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, duties)
}

// CountDuties returns the total number of duty records.
func (h *Handler) CountDuties(c *gin.Context) {
	var total int64
	if err := h.DB.Model(&models.Duty{}).Count(&total).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

type dutyCreate struct {
	Type      string    `json:"type" binding:"required"`
	CrewID    uint      `json:"crewId" binding:"required"`
	BusID     uint      `json:"busId" binding:"required"`
	Route     string    `json:"route" binding:"required"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	Notes     string    `json:"notes"`
}

// CreateDuty rosters a duty block after checking the crew member has no
// overlapping duty and meets the minimum rest since their last one. The crew
// member is moved to On Duty.
func (h *Handler) CreateDuty(c *gin.Context) {
	var req dutyCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != models.DutyLinked && req.Type != models.DutyUnlinked {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be Linked or Unlinked"})
		return
	}
	if !req.StartTime.Before(req.EndTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startTime must be before endTime"})
		return
	}

	crew, err := h.Store.CrewByID(req.CrewID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if crew == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crew not found"})
		return
	}
	bus, err := h.Store.BusByID(req.BusID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if bus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	overlapping, err := h.Store.OverlappingDuties(req.CrewID, req.StartTime, req.EndTime)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(overlapping) > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Crew already assigned to another duty during this time",
			"existingDuty": overlapping[0],
		})
		return
	}

	settings, err := h.Store.CurrentSettings()
	if err != nil {
		h.respondError(c, err)
		return
	}
	lastEnd, err := h.Store.LatestDutyEnd(req.CrewID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if lastEnd != nil {
		rested := req.StartTime.Sub(*lastEnd).Hours()
		if rested < settings.MinRestHours {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Crew must rest at least %gh; only %.2fh have passed", settings.MinRestHours, rested),
			})
			return
		}
	}

	duty := models.Duty{
		Type:      req.Type,
		CrewID:    req.CrewID,
		BusID:     req.BusID,
		Route:     req.Route,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    models.DutyScheduled,
		Notes:     req.Notes,
		CreatedBy: actor(c),
		UpdatedBy: actor(c),
	}
	if err := h.DB.Create(&duty).Error; err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.DB.Model(&models.Crew{}).Where("id = ?", req.CrewID).
		Updates(map[string]any{"status": models.CrewOnDuty, "updated_by": actor(c)}).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, duty)
}

// CompleteDuty marks a duty Completed, moves the crew member to Resting and
// advances their lastDutyEnd to the duty end.
func (h *Handler) CompleteDuty(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duty id"})
		return
	}

	duty, err := h.Store.DutyByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if duty == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Duty not found"})
		return
	}

	duty.Status = models.DutyCompleted
	duty.UpdatedBy = actor(c)
	if err := h.DB.Save(duty).Error; err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.DB.Model(&models.Crew{}).Where("id = ?", duty.CrewID).
		Updates(map[string]any{"status": models.CrewResting, "updated_by": actor(c)}).Error; err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.AdvanceLastDutyEnd(duty.CrewID, duty.EndTime, actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, duty)
}
