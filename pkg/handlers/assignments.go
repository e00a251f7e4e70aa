package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/scheduler"
)

// CheckConflicts evaluates a proposal and returns the reasons list without
// persisting anything.
func (h *Handler) CheckConflicts(c *gin.Context) {
	var p scheduler.Proposal
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	violations, err := h.Orch.CheckConflicts(p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": violations})
}

// CreateAssignment persists a manual assignment, 409ing with the full
// reasons list when constraints are violated and no override applies.
func (h *Handler) CreateAssignment(c *gin.Context) {
	var p scheduler.Proposal
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.Actor = actor(c)

	a, err := h.Orch.CreateAssignment(p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// AutoAssign runs a transactional auto-match for a route and window.
func (h *Handler) AutoAssign(c *gin.Context) {
	var in scheduler.AutoMatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.Actor = actor(c)

	res, err := h.Orch.AutoMatch(in, scheduler.ModeTransactional)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListAssignmentsByDay lists assignments overlapping one calendar day.
func (h *Handler) ListAssignmentsByDay(c *gin.Context) {
	dayStart, next, err := dayWindow(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.Store.AssignmentsInRange(dayStart, next)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListAssignmentsByRange lists assignments overlapping [start, end).
func (h *Handler) ListAssignmentsByRange(c *gin.Context) {
	start, err1 := time.Parse(time.RFC3339, c.Query("start"))
	end, err2 := time.Parse(time.RFC3339, c.Query("end"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end are required (RFC3339)"})
		return
	}

	rows, err := h.Store.AssignmentsInRange(start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// CancelAssignment flips one assignment to Canceled.
func (h *Handler) CancelAssignment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	a, err := h.Store.AssignmentByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
		return
	}
	if err := h.Store.CancelAssignment(uint(id), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Canceled"})
}

// ExportDayCSV returns one day's assignments as CSV.
func (h *Handler) ExportDayCSV(c *gin.Context) {
	dayStart, next, err := dayWindow(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.Store.AssignmentsInRange(dayStart, next)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var out strings.Builder
	w := csv.NewWriter(&out)
	w.Write([]string{"assignment_id", "crew_id", "bus_id", "route_id", "role", "start", "end", "status", "slot", "batch_id"})
	for _, a := range rows {
		w.Write([]string{
			strconv.FormatUint(uint64(a.ID), 10),
			strconv.FormatUint(uint64(a.CrewID), 10),
			strconv.FormatUint(uint64(a.BusID), 10),
			strconv.FormatUint(uint64(a.RouteID), 10),
			a.Role,
			a.StartTime.Format(time.RFC3339),
			a.EndTime.Format(time.RFC3339),
			a.Status,
			a.SlotKey,
			a.BatchID,
		})
	}
	w.Flush()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=assignments-%s.csv", dayStart.Format("2006-01-02")))
	c.Data(http.StatusOK, "text/csv", []byte(out.String()))
}

// dayWindow resolves a YYYY-MM-DD query value (today when empty) into
// [dayStart, nextDayStart).
func dayWindow(date string) (time.Time, time.Time, error) {
	var day time.Time
	if date == "" {
		now := time.Now()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	} else {
		var err error
		day, err = time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	return day, day.AddDate(0, 0, 1), nil
}
