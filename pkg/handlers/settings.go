package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// GetSettings returns the settings singleton, defaults applied when no row
// exists yet.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.Store.CurrentSettings()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type settingsUpdate struct {
	MinRestHours      *float64           `json:"minRestHours"`
	MaxShiftHours     *float64           `json:"maxShiftHours"`
	MaxWeeklyHours    *float64           `json:"maxWeeklyHours"`
	ConductorRequired *bool              `json:"conductorRequired"`
	SplitShiftsOK     *bool              `json:"splitShiftsAllowed"`
	HandoverStopsOnly *bool              `json:"handoverStopsOnly"`
	FreezeWindowHours *float64           `json:"freezeWindowHours"`
	AllowOverrides    *bool              `json:"allowOverrides"`
	DutySlots         *[]models.DutySlot `json:"dutySlots"`
}

// UpdateSettings applies a partial update to the singleton; only known
// fields are accepted.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.Store.CurrentSettings()
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.MinRestHours != nil {
		settings.MinRestHours = *req.MinRestHours
	}
	if req.MaxShiftHours != nil {
		settings.MaxShiftHours = *req.MaxShiftHours
	}
	if req.MaxWeeklyHours != nil {
		settings.MaxWeeklyHours = *req.MaxWeeklyHours
	}
	if req.ConductorRequired != nil {
		settings.ConductorRequired = *req.ConductorRequired
	}
	if req.SplitShiftsOK != nil {
		settings.SplitShiftsOK = *req.SplitShiftsOK
	}
	if req.HandoverStopsOnly != nil {
		settings.HandoverStopsOnly = *req.HandoverStopsOnly
	}
	if req.FreezeWindowHours != nil {
		settings.FreezeWindowHours = *req.FreezeWindowHours
	}
	if req.AllowOverrides != nil {
		settings.AllowOverrides = *req.AllowOverrides
	}
	if req.DutySlots != nil {
		for _, slot := range *req.DutySlots {
			if slot.Key == "" || slot.Start == "" || slot.End == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "duty slots need key, start and end"})
				return
			}
		}
		settings.DutySlots = *req.DutySlots
	}

	if err := h.Store.UpsertSettings(&settings); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Updated", "data": settings})
}
