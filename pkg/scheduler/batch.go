package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citytransit/depot-scheduler-go/pkg/metrics"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

const dateLayout = "2006-01-02"

// PlanCell is one (duty slot, route) cell of a day plan.
type PlanCell struct {
	Slot            string    `json:"slot"`
	RouteID         uint      `json:"routeId"`
	RouteName       string    `json:"routeName"`
	RouteNumber     string    `json:"routeNumber"`
	BusTypeRequired string    `json:"busTypeRequired,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}

// PlanPreview is the expansion of a day into schedulable cells, without any
// writes.
type PlanPreview struct {
	Date  string            `json:"date"`
	Slots []models.DutySlot `json:"slots"`
	Total int               `json:"total"`
	Plan  []PlanCell        `json:"plan"`
}

// CellSuccess records a committed cell of a generation run.
type CellSuccess struct {
	Slot      string           `json:"slot"`
	RouteID   uint             `json:"routeId"`
	RouteName string           `json:"routeName"`
	Result    *AutoMatchResult `json:"result"`
}

// CellFailure records a cell that could not be matched; the rest of the run
// continues regardless.
type CellFailure struct {
	Slot      string `json:"slot"`
	RouteID   uint   `json:"routeId"`
	RouteName string `json:"routeName"`
	Error     string `json:"error"`
}

// GenerateResult summarizes one day-generation batch.
type GenerateResult struct {
	Date     string            `json:"date"`
	BatchID  string            `json:"batchId"`
	Slots    []models.DutySlot `json:"slots"`
	OK       int               `json:"ok"`
	Failed   int               `json:"failed"`
	Results  []CellSuccess     `json:"results"`
	Failures []CellFailure     `json:"failures"`
}

// PreviewDay expands a date into its (slot, route) cells: the configured
// duty slots crossed with the active routes running on that weekday, sorted
// by route priority.
func (o *Orchestrator) PreviewDay(date string) (*PlanPreview, error) {
	day, slots, routes, err := o.dayPlan(date)
	if err != nil {
		return nil, err
	}

	preview := &PlanPreview{Date: date, Slots: slots}
	for _, slot := range slots {
		start, end, err := slotWindow(day, slot)
		if err != nil {
			return nil, err
		}
		for _, r := range routes {
			preview.Plan = append(preview.Plan, PlanCell{
				Slot:            slot.Key,
				RouteID:         r.ID,
				RouteName:       r.RouteName,
				RouteNumber:     r.RouteNumber,
				BusTypeRequired: r.BusTypeRequired,
				StartTime:       start,
				EndTime:         end,
			})
		}
	}
	preview.Total = len(preview.Plan)
	return preview, nil
}

// GenerateDay runs auto-match in planning mode for every cell of the date,
// tagging all created assignments with one shared batch id. Individual cell
// failures are collected, not fatal; the batch can partially succeed.
func (o *Orchestrator) GenerateDay(date string, includeConductor bool, actor string) (*GenerateResult, error) {
	day, slots, routes, err := o.dayPlan(date)
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{
		Date:    date,
		BatchID: uuid.NewString(),
		Slots:   slots,
	}

	for _, slot := range slots {
		start, end, err := slotWindow(day, slot)
		if err != nil {
			return nil, err
		}
		for _, r := range routes {
			match, err := o.AutoMatch(AutoMatchInput{
				RouteID:          r.ID,
				StartTime:        start,
				EndTime:          end,
				IncludeConductor: includeConductor,
				BatchID:          res.BatchID,
				ScheduledDate:    date,
				SlotKey:          slot.Key,
				Actor:            actor,
			}, ModePlanning)
			if err != nil {
				res.Failures = append(res.Failures, CellFailure{
					Slot: slot.Key, RouteID: r.ID, RouteName: r.RouteName, Error: err.Error(),
				})
				metrics.BatchCells.WithLabelValues("failed").Inc()
				continue
			}
			res.Results = append(res.Results, CellSuccess{
				Slot: slot.Key, RouteID: r.ID, RouteName: r.RouteName, Result: match,
			})
			metrics.BatchCells.WithLabelValues("ok").Inc()
		}
	}

	res.OK = len(res.Results)
	res.Failed = len(res.Failures)
	o.log.Info().Str("date", date).Str("batch", res.BatchID).
		Int("ok", res.OK).Int("failed", res.Failed).Msg("day generated")
	return res, nil
}

// dayPlan resolves the duty slots and the priority-sorted routes running on
// the date's weekday.
func (o *Orchestrator) dayPlan(date string) (time.Time, []models.DutySlot, []models.Route, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, nil, nil, &ValidationError{Msg: "date must be YYYY-MM-DD"}
	}

	settings, err := o.store.CurrentSettings()
	if err != nil {
		return time.Time{}, nil, nil, err
	}
	slots := settings.DutySlots
	if len(slots) == 0 {
		slots = models.DefaultSettings().DutySlots
	}

	all, err := o.store.ActiveRoutes()
	if err != nil {
		return time.Time{}, nil, nil, err
	}
	weekday := int(day.Weekday())
	var routes []models.Route
	for _, r := range all {
		if routeRunsOn(r, weekday) {
			routes = append(routes, r)
		}
	}
	sortRoutesByPriority(routes)

	return day, slots, routes, nil
}

func routeRunsOn(r models.Route, weekday int) bool {
	days := r.RunDays
	if len(days) == 0 {
		days = models.DefaultRunDays
	}
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

// slotWindow anchors a duty slot's HH:MM bounds onto the given day.
func slotWindow(day time.Time, slot models.DutySlot) (time.Time, time.Time, error) {
	start, err := atClock(day, slot.Start)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Msg: fmt.Sprintf("duty slot %q has invalid start %q", slot.Key, slot.Start)}
	}
	end, err := atClock(day, slot.End)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Msg: fmt.Sprintf("duty slot %q has invalid end %q", slot.Key, slot.End)}
	}
	return start, end, nil
}

func atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
