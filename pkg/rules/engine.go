// Package rules implements the assignment constraint engine. Evaluate is a
// pure function over a snapshot of settings, entities and overlapping
// assignments; it performs no I/O and is deterministic for identical inputs.
package rules

import (
	"fmt"
	"time"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// Kind is a stable category for a constraint violation. Reporting aggregates
// on Kind rather than re-parsing message text.
type Kind string

const (
	KindCrewMissing   Kind = "crew_missing"
	KindBusMissing    Kind = "bus_missing"
	KindRouteMissing  Kind = "route_missing"
	KindCrewStatus    Kind = "crew_status"
	KindBusStatus     Kind = "bus_status"
	KindCrewOverlap   Kind = "crew_overlap"
	KindBusOverlap    Kind = "bus_overlap"
	KindRest          Kind = "rest"
	KindShiftLength   Kind = "shift_length"
	KindWeeklyHours   Kind = "weekly_hours"
	KindQualification Kind = "qualification"
	KindMaintenance   Kind = "maintenance"
	KindFreeze        Kind = "freeze"
)

// Violation is one failed constraint check. Message is human-readable and
// display-only.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Messages flattens violations to their display strings, preserving order.
func Messages(vs []Violation) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Message
	}
	return out
}

// Kinds flattens violations to their category strings, preserving order.
func Kinds(vs []Violation) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v.Kind)
	}
	return out
}

// Proposal is the assignment under evaluation. [StartTime, EndTime) is a
// half-open interval.
type Proposal struct {
	Role      string
	StartTime time.Time
	EndTime   time.Time
}

// Input is the full snapshot Evaluate works from. Nil entity pointers mean
// the referenced record does not exist. The assignment slices must already
// cover the proposal window plus the weekly-hours lookback; Evaluate never
// queries for more.
type Input struct {
	Settings        models.Settings
	Crew            *models.Crew
	Bus             *models.Bus
	Route           *models.Route
	CrewAssignments []models.Assignment
	BusAssignments  []models.Assignment
	Proposal        Proposal
}

// Options toggles planning-mode relaxations. Now anchors the freeze-window
// check so evaluation stays deterministic under test.
type Options struct {
	SkipCrewStatus     bool
	IgnoreFreezeWindow bool
	Now                time.Time
}

// Overlaps reports strict intersection of two half-open intervals.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HoursBetween returns the fractional hours from a to b.
func HoursBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours()
}

func countsAgainstWindow(a models.Assignment) bool {
	return a.Status == models.StatusPlanned || a.Status == models.StatusLive
}

// Evaluate runs every constraint check in a fixed order and returns the
// ordered list of violations; empty means the proposal is clean. Checks do
// not short-circuit each other, except that a missing crew, bus or route
// returns immediately with only the existence failures.
func Evaluate(in Input, opts Options) []Violation {
	var out []Violation
	start, end := in.Proposal.StartTime, in.Proposal.EndTime

	if in.Crew == nil {
		out = append(out, Violation{KindCrewMissing, "Crew not found"})
	}
	if in.Bus == nil {
		out = append(out, Violation{KindBusMissing, "Bus not found"})
	}
	if in.Route == nil {
		out = append(out, Violation{KindRouteMissing, "Route not found"})
	}
	if len(out) > 0 {
		return out
	}

	if !opts.SkipCrewStatus && in.Crew.Status != "" && in.Crew.Status != models.CrewAvailable {
		out = append(out, Violation{KindCrewStatus, fmt.Sprintf("Crew status is %s", in.Crew.Status)})
	}

	if in.Bus.Status == models.BusMaintenance || in.Bus.Status == models.BusOutOfService {
		out = append(out, Violation{KindBusStatus, fmt.Sprintf("Bus unavailable (%s)", in.Bus.Status)})
	}

	for _, a := range in.CrewAssignments {
		if countsAgainstWindow(a) && Overlaps(start, end, a.StartTime, a.EndTime) {
			out = append(out, Violation{KindCrewOverlap, "Crew has overlapping assignment"})
			break
		}
	}
	for _, a := range in.BusAssignments {
		if countsAgainstWindow(a) && Overlaps(start, end, a.StartTime, a.EndTime) {
			out = append(out, Violation{KindBusOverlap, "Bus has overlapping assignment"})
			break
		}
	}

	if in.Crew.LastDutyEnd != nil {
		minStart := in.Crew.LastDutyEnd.Add(time.Duration(in.Settings.MinRestHours * float64(time.Hour)))
		if start.Before(minStart) {
			out = append(out, Violation{KindRest, fmt.Sprintf("Min rest %gh not met", in.Settings.MinRestHours)})
		}
	}

	shiftHours := HoursBetween(start, end)
	if shiftHours > in.Settings.MaxShiftHours {
		out = append(out, Violation{KindShiftLength, fmt.Sprintf("Shift exceeds %gh", in.Settings.MaxShiftHours)})
	}

	if len(in.CrewAssignments) > 0 {
		weekAgo := start.AddDate(0, 0, -7)
		var weekly float64
		for _, a := range in.CrewAssignments {
			if a.StartTime.After(weekAgo) {
				weekly += HoursBetween(a.StartTime, a.EndTime)
			}
		}
		if weekly+shiftHours > in.Settings.MaxWeeklyHours {
			out = append(out, Violation{KindWeeklyHours, fmt.Sprintf("Weekly hours would exceed %gh", in.Settings.MaxWeeklyHours)})
		}
	}

	if in.Proposal.Role == models.RoleDriver && in.Route.BusTypeRequired != "" {
		if len(in.Crew.Qualifications) > 0 && !contains(in.Crew.Qualifications, in.Route.BusTypeRequired) {
			out = append(out, Violation{KindQualification, fmt.Sprintf("Driver not qualified for %s", in.Route.BusTypeRequired)})
		}
	}

	for _, mw := range in.Bus.MaintenanceWindows {
		if mw.Status != models.MaintenanceCompleted && Overlaps(start, end, mw.StartTime, mw.EndTime) {
			out = append(out, Violation{KindMaintenance, "Bus in maintenance window"})
			break
		}
	}

	if !opts.IgnoreFreezeWindow && in.Settings.FreezeWindowHours > 0 {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		if HoursBetween(now, start) < in.Settings.FreezeWindowHours {
			out = append(out, Violation{KindFreeze, fmt.Sprintf("Inside freeze window (%gh)", in.Settings.FreezeWindowHours)})
		}
	}

	// Conductor pairing is deliberately not checked here; requiring one
	// would block every driver-only proposal. The orchestrator owns it.
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
