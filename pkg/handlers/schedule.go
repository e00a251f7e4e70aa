package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/scheduler"
)

type dayRequest struct {
	Date             string `json:"date"`
	IncludeConductor bool   `json:"includeConductor"`
}

func (r *dayRequest) dateOrToday() string {
	if r.Date == "" {
		return time.Now().Format("2006-01-02")
	}
	return r.Date
}

// PreviewSchedule expands a date into its (slot, route) cells without
// committing anything.
func (h *Handler) PreviewSchedule(c *gin.Context) {
	var req dayRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.Orch.PreviewDay(req.dateOrToday())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// GenerateSchedule runs batch generation for a date; individual cell
// failures are reported, not fatal.
func (h *Handler) GenerateSchedule(c *gin.Context) {
	var req dayRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Orch.GenerateDay(req.dateOrToday(), req.IncludeConductor, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UndoBatch reverses a generation batch by cancellation or deletion.
func (h *Handler) UndoBatch(c *gin.Context) {
	mode, err := scheduler.ParseUndoMode(c.Query("mode"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	affected, err := h.Orch.UndoBatch(c.Param("batchId"), mode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "affected": affected})
}

// UndoDay reverses a full calendar day's assignments.
func (h *Handler) UndoDay(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}
	mode, err := scheduler.ParseUndoMode(c.Query("mode"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	affected, err := h.Orch.UndoDay(date, mode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "affected": affected})
}
