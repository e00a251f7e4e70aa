package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/rules"
)

// reportRange resolves ?start/?end (RFC3339), defaulting to the trailing
// 7 days.
func reportRange(c *gin.Context) (time.Time, time.Time, bool) {
	end := time.Now()
	start := end.AddDate(0, 0, -7)
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	return start, end, start.Before(end)
}

// ConflictReport aggregates recorded violations by their stable rule kind;
// message text is never re-parsed.
func (h *Handler) ConflictReport(c *gin.Context) {
	start, end, ok := reportRange(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be before end (RFC3339)"})
		return
	}

	rows, err := h.Store.AssignmentsInRange(start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	byKind := make(map[string]int)
	overridden := 0
	for _, a := range rows {
		if len(a.Conflicts) == 0 {
			continue
		}
		overridden++
		for _, k := range a.ConflictKinds {
			byKind[k]++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"start":           start,
		"end":             end,
		"assignments":     len(rows),
		"withConflicts":   overridden,
		"conflictsByKind": byKind,
	})
}

type crewUtilization struct {
	CrewID      uint    `json:"crewId"`
	Assignments int     `json:"assignments"`
	Hours       float64 `json:"hours"`
}

type busUtilization struct {
	BusID       uint    `json:"busId"`
	Assignments int     `json:"assignments"`
	Hours       float64 `json:"hours"`
}

// UtilizationReport sums assignment hours per crew and per bus over a range,
// clipping each window to the range bounds. Canceled assignments are
// excluded.
func (h *Handler) UtilizationReport(c *gin.Context) {
	start, end, ok := reportRange(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be before end (RFC3339)"})
		return
	}

	rows, err := h.Store.AssignmentsInRange(start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	crews := make(map[uint]*crewUtilization)
	buses := make(map[uint]*busUtilization)
	for _, a := range rows {
		if a.Status == models.StatusCanceled {
			continue
		}
		hrs := clippedHours(a.StartTime, a.EndTime, start, end)

		cu := crews[a.CrewID]
		if cu == nil {
			cu = &crewUtilization{CrewID: a.CrewID}
			crews[a.CrewID] = cu
		}
		cu.Assignments++
		cu.Hours += hrs

		bu := buses[a.BusID]
		if bu == nil {
			bu = &busUtilization{BusID: a.BusID}
			buses[a.BusID] = bu
		}
		bu.Assignments++
		bu.Hours += hrs
	}

	crewOut := make([]crewUtilization, 0, len(crews))
	for _, v := range crews {
		crewOut = append(crewOut, *v)
	}
	busOut := make([]busUtilization, 0, len(buses))
	for _, v := range buses {
		busOut = append(busOut, *v)
	}

	c.JSON(http.StatusOK, gin.H{
		"start": start,
		"end":   end,
		"crews": crewOut,
		"buses": busOut,
	})
}

// clippedHours intersects an assignment window with the report range.
func clippedHours(aStart, aEnd, rStart, rEnd time.Time) float64 {
	if aStart.Before(rStart) {
		aStart = rStart
	}
	if aEnd.After(rEnd) {
		aEnd = rEnd
	}
	if !aStart.Before(aEnd) {
		return 0
	}
	return rules.HoursBetween(aStart, aEnd)
}
