// Package scheduler contains the assignment orchestration core: availability
// resolution, fairness ranking, the manual/auto-match orchestrator, day-level
// batch generation and batch/day undo.
package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/depot-scheduler-go/pkg/logger"
	"github.com/citytransit/depot-scheduler-go/pkg/metrics"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/rules"
	"github.com/citytransit/depot-scheduler-go/pkg/store"
)

// Mode selects how an auto-match call executes.
type Mode int

const (
	// ModeTransactional wraps every read and write of one call in a
	// single transaction; any failure leaves no partial state.
	ModeTransactional Mode = iota

	// ModePlanning is used by day generation: no surrounding transaction,
	// crew status gating relaxed, freeze window ignored. Writes commit
	// immediately per call.
	ModePlanning
)

func (m Mode) String() string {
	if m == ModePlanning {
		return "planning"
	}
	return "transactional"
}

// Orchestrator drives conflict evaluation, candidate search and persistence.
type Orchestrator struct {
	store *store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(st *store.Store) *Orchestrator {
	return &Orchestrator{
		store: st,
		log:   logger.New("scheduler"),
		now:   time.Now,
	}
}

// Proposal is the input for a manual assignment or a conflict check.
type Proposal struct {
	CrewID    uint      `json:"crewId" binding:"required"`
	BusID     uint      `json:"busId" binding:"required"`
	RouteID   uint      `json:"routeId" binding:"required"`
	DutyID    *uint     `json:"dutyId"`
	Role      string    `json:"role" binding:"required"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`

	OverrideReason string `json:"overrideReason"`

	BatchID       string `json:"batchId"`
	ScheduledDate string `json:"scheduledDate"`
	SlotKey       string `json:"slotKey"`

	Actor string `json:"-"`
}

func (p *Proposal) validate() error {
	if p.CrewID == 0 || p.BusID == 0 || p.RouteID == 0 {
		return &ValidationError{Msg: "crewId, busId and routeId are required"}
	}
	if p.Role != models.RoleDriver && p.Role != models.RoleConductor {
		return &ValidationError{Msg: "role must be Driver or Conductor"}
	}
	if !p.StartTime.Before(p.EndTime) {
		return &ValidationError{Msg: "startTime must be before endTime"}
	}
	return nil
}

// CheckConflicts evaluates a proposal without persisting anything and
// returns the ordered violation list; missing entities surface as
// existence violations rather than errors.
func (o *Orchestrator) CheckConflicts(p Proposal) ([]rules.Violation, error) {
	if !p.StartTime.Before(p.EndTime) {
		return nil, &ValidationError{Msg: "startTime must be before endTime"}
	}

	settings, err := o.store.CurrentSettings()
	if err != nil {
		return nil, err
	}
	crew, err := o.store.CrewByID(p.CrewID)
	if err != nil {
		return nil, err
	}
	bus, err := o.store.BusByID(p.BusID)
	if err != nil {
		return nil, err
	}
	route, err := o.store.RouteByID(p.RouteID)
	if err != nil {
		return nil, err
	}

	var crewAsgns, busAsgns []models.Assignment
	if crew != nil {
		if crewAsgns, err = o.store.CrewAssignmentsForEval(crew.ID, p.StartTime, p.EndTime); err != nil {
			return nil, err
		}
	}
	if bus != nil {
		if busAsgns, err = o.store.OverlappingAssignments(p.StartTime, p.EndTime, nil, []uint{bus.ID}); err != nil {
			return nil, err
		}
	}

	violations := o.evaluate(rules.Input{
		Settings:        settings,
		Crew:            crew,
		Bus:             bus,
		Route:           route,
		CrewAssignments: crewAsgns,
		BusAssignments:  busAsgns,
		Proposal:        rules.Proposal{Role: p.Role, StartTime: p.StartTime, EndTime: p.EndTime},
	}, rules.Options{Now: o.now()})
	return violations, nil
}

// CreateAssignment conflict-evaluates a fully specified proposal and
// persists it atomically, advancing the crew member's lastDutyEnd in the
// same transaction. A conflicting proposal is only persisted when overrides
// are allowed and an override reason was given.
func (o *Orchestrator) CreateAssignment(p Proposal) (*models.Assignment, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var created *models.Assignment
	err := o.store.WithTx(func(tx *store.Store) error {
		settings, err := tx.CurrentSettings()
		if err != nil {
			return err
		}
		crew, err := tx.CrewByID(p.CrewID)
		if err != nil {
			return err
		}
		if crew == nil {
			return &NotFoundError{Entity: "Crew"}
		}
		bus, err := tx.BusByID(p.BusID)
		if err != nil {
			return err
		}
		if bus == nil {
			return &NotFoundError{Entity: "Bus"}
		}
		route, err := tx.RouteByID(p.RouteID)
		if err != nil {
			return err
		}
		if route == nil {
			return &NotFoundError{Entity: "Route"}
		}
		if p.DutyID != nil {
			duty, err := tx.DutyByID(*p.DutyID)
			if err != nil {
				return err
			}
			if duty == nil {
				return &NotFoundError{Entity: "Duty"}
			}
		}

		crewAsgns, err := tx.CrewAssignmentsForEval(crew.ID, p.StartTime, p.EndTime)
		if err != nil {
			return err
		}
		busAsgns, err := tx.OverlappingAssignments(p.StartTime, p.EndTime, nil, []uint{bus.ID})
		if err != nil {
			return err
		}

		violations := o.evaluate(rules.Input{
			Settings:        settings,
			Crew:            crew,
			Bus:             bus,
			Route:           route,
			CrewAssignments: crewAsgns,
			BusAssignments:  busAsgns,
			Proposal:        rules.Proposal{Role: p.Role, StartTime: p.StartTime, EndTime: p.EndTime},
		}, rules.Options{Now: o.now()})

		if len(violations) > 0 {
			if !settings.AllowOverrides || p.OverrideReason == "" {
				return &ConflictError{Msg: "Constraints violated", Violations: violations}
			}
		}

		a := models.Assignment{
			CrewID:        p.CrewID,
			BusID:         p.BusID,
			RouteID:       p.RouteID,
			DutyID:        p.DutyID,
			Role:          p.Role,
			StartTime:     p.StartTime,
			EndTime:       p.EndTime,
			Status:        models.StatusPlanned,
			Conflicts:     rules.Messages(violations),
			ConflictKinds: rules.Kinds(violations),
			BatchID:       p.BatchID,
			ScheduledDate: p.ScheduledDate,
			SlotKey:       p.SlotKey,
			CreatedBy:     p.Actor,
			UpdatedBy:     p.Actor,
		}
		if len(violations) > 0 {
			a.OverrideReason = p.OverrideReason
		}
		if err := tx.CreateAssignment(&a); err != nil {
			return err
		}
		if err := tx.AdvanceLastDutyEnd(p.CrewID, p.EndTime, p.Actor); err != nil {
			return err
		}
		created = &a
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AssignmentsCreated.WithLabelValues(created.Role, "manual").Inc()
	o.log.Info().Uint("assignment", created.ID).Uint("crew", created.CrewID).
		Uint("bus", created.BusID).Bool("override", created.OverrideReason != "").
		Msg("assignment created")
	return created, nil
}

// AutoMatchInput describes an auto-match request: a route and a window, with
// optional conductor pairing and batch provenance.
type AutoMatchInput struct {
	RouteID          uint      `json:"routeId" binding:"required"`
	StartTime        time.Time `json:"startTime" binding:"required"`
	EndTime          time.Time `json:"endTime" binding:"required"`
	IncludeConductor bool      `json:"includeConductor"`

	BatchID       string `json:"batchId"`
	ScheduledDate string `json:"scheduledDate"`
	SlotKey       string `json:"slotKey"`

	Actor string `json:"-"`
}

// AutoMatchResult is a committed driver/bus pairing, optionally with a
// conductor.
type AutoMatchResult struct {
	Bus         models.Bus          `json:"bus"`
	Driver      models.Crew         `json:"driver"`
	Conductor   *models.Crew        `json:"conductor,omitempty"`
	Assignments []models.Assignment `json:"assignments"`
}

// AutoMatch resolves candidate pools for the route and window, ranks them by
// fairness and greedily selects the first conflict-free driver/bus pair.
// The search is deliberately first-fit, not globally optimal.
func (o *Orchestrator) AutoMatch(in AutoMatchInput, mode Mode) (*AutoMatchResult, error) {
	if in.RouteID == 0 {
		return nil, &ValidationError{Msg: "routeId is required"}
	}
	if !in.StartTime.Before(in.EndTime) {
		return nil, &ValidationError{Msg: "startTime must be before endTime"}
	}

	var result *AutoMatchResult
	var err error
	if mode == ModeTransactional {
		err = o.store.WithTx(func(tx *store.Store) error {
			result, err = o.autoMatch(tx, in, mode)
			return err
		})
	} else {
		result, err = o.autoMatch(o.store, in, mode)
	}
	if err != nil {
		return nil, err
	}

	for _, a := range result.Assignments {
		metrics.AssignmentsCreated.WithLabelValues(a.Role, mode.String()).Inc()
	}
	o.log.Info().Uint("route", in.RouteID).Uint("driver", result.Driver.ID).
		Uint("bus", result.Bus.ID).Bool("conductor", result.Conductor != nil).
		Str("mode", mode.String()).Msg("auto-match committed")
	return result, nil
}

func (o *Orchestrator) autoMatch(st *store.Store, in AutoMatchInput, mode Mode) (*AutoMatchResult, error) {
	planning := mode == ModePlanning
	start, end := in.StartTime, in.EndTime

	settings, err := st.CurrentSettings()
	if err != nil {
		return nil, err
	}
	route, err := st.RouteByID(in.RouteID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, &NotFoundError{Entity: "Route"}
	}

	buses, err := st.Buses(store.BusFilter{
		Statuses: []string{models.BusActive, models.BusIdle},
		Type:     route.BusTypeRequired,
	})
	if err != nil {
		return nil, err
	}

	crewFilter := store.CrewFilter{Role: models.RoleDriver}
	if !planning {
		crewFilter.Status = models.CrewAvailable
	}
	drivers, err := st.Crews(crewFilter)
	if err != nil {
		return nil, err
	}
	if route.BusTypeRequired != "" {
		drivers = filterQualified(drivers, route.BusTypeRequired)
	}

	if len(buses) == 0 || len(drivers) == 0 {
		return nil, &ConflictError{Msg: "No available buses or drivers matching requirements"}
	}

	av, err := ResolveAvailability(st, settings, buses, drivers, start, end)
	if err != nil {
		return nil, err
	}
	if len(av.FreeBuses) == 0 || len(av.FreeCrews) == 0 {
		return nil, &ConflictError{Msg: "No conflict-free buses or drivers in time window"}
	}

	weekAgo := start.AddDate(0, 0, -7)
	week, err := st.WeekAssignments(crewIDs(av.FreeCrews), weekAgo)
	if err != nil {
		return nil, err
	}
	RankDrivers(av.FreeCrews, WeeklyHours(week, weekAgo))
	RankBuses(av.FreeBuses)

	opts := rules.Options{
		SkipCrewStatus:     planning,
		IgnoreFreezeWindow: planning,
		Now:                o.now(),
	}

	// Greedy first-fit over the ranked pools, reusing the busy index from
	// the single overlap query instead of re-querying per pair.
	var chosenDriver *models.Crew
	var chosenBus *models.Bus
	for di := range av.FreeCrews {
		driver := &av.FreeCrews[di]
		for bi := range av.FreeBuses {
			bus := &av.FreeBuses[bi]
			violations := o.evaluate(rules.Input{
				Settings:        settings,
				Crew:            driver,
				Bus:             bus,
				Route:           route,
				CrewAssignments: av.CrewBusy[driver.ID],
				BusAssignments:  av.BusBusy[bus.ID],
				Proposal:        rules.Proposal{Role: models.RoleDriver, StartTime: start, EndTime: end},
			}, opts)
			if len(violations) == 0 {
				chosenDriver, chosenBus = driver, bus
				break
			}
		}
		if chosenDriver != nil {
			break
		}
	}
	if chosenDriver == nil {
		return nil, &ConflictError{Msg: "No conflict-free driver/bus combination found"}
	}

	driverAsgn := models.Assignment{
		CrewID:        chosenDriver.ID,
		BusID:         chosenBus.ID,
		RouteID:       route.ID,
		Role:          models.RoleDriver,
		StartTime:     start,
		EndTime:       end,
		Status:        models.StatusPlanned,
		BatchID:       in.BatchID,
		ScheduledDate: in.ScheduledDate,
		SlotKey:       in.SlotKey,
		CreatedBy:     in.Actor,
		UpdatedBy:     in.Actor,
	}
	if err := st.CreateAssignment(&driverAsgn); err != nil {
		return nil, err
	}
	if err := st.AdvanceLastDutyEnd(chosenDriver.ID, end, in.Actor); err != nil {
		return nil, err
	}

	result := &AutoMatchResult{
		Bus:         *chosenBus,
		Driver:      *chosenDriver,
		Assignments: []models.Assignment{driverAsgn},
	}

	if in.IncludeConductor || settings.ConductorRequired {
		conductor, conAsgn, err := o.pairConductor(st, settings, route, *chosenBus, in, planning, opts)
		if err != nil {
			return nil, err
		}
		if conductor != nil {
			result.Conductor = conductor
			result.Assignments = append(result.Assignments, *conAsgn)
		} else if settings.ConductorRequired {
			return nil, &RequirementUnsatisfiedError{Msg: "No conductor available to satisfy conductor requirement"}
		}
	}

	return result, nil
}

// pairConductor runs the single-dimension search over ranked free conductors
// against the already-chosen bus. Returns (nil, nil, nil) when no conductor
// fits; the caller decides whether that is fatal.
func (o *Orchestrator) pairConductor(st *store.Store, settings models.Settings, route *models.Route, bus models.Bus, in AutoMatchInput, planning bool, opts rules.Options) (*models.Crew, *models.Assignment, error) {
	start, end := in.StartTime, in.EndTime

	filter := store.CrewFilter{Role: models.RoleConductor}
	if !planning {
		filter.Status = models.CrewAvailable
	}
	conductors, err := st.Crews(filter)
	if err != nil {
		return nil, nil, err
	}
	if len(conductors) == 0 {
		return nil, nil, nil
	}

	overlapping, err := st.OverlappingAssignments(start, end, crewIDs(conductors), nil)
	if err != nil {
		return nil, nil, err
	}
	busy := make(map[uint][]models.Assignment)
	for _, a := range overlapping {
		busy[a.CrewID] = append(busy[a.CrewID], a)
	}

	var free []models.Crew
	for _, c := range conductors {
		if len(busy[c.ID]) > 0 {
			continue
		}
		if !MeetsRest(c, settings.MinRestHours, start) {
			continue
		}
		free = append(free, c)
	}
	RankConductors(free)

	for i := range free {
		c := &free[i]
		violations := o.evaluate(rules.Input{
			Settings:        settings,
			Crew:            c,
			Bus:             &bus,
			Route:           route,
			CrewAssignments: busy[c.ID],
			Proposal:        rules.Proposal{Role: models.RoleConductor, StartTime: start, EndTime: end},
		}, opts)
		if len(violations) > 0 {
			continue
		}

		a := models.Assignment{
			CrewID:        c.ID,
			BusID:         bus.ID,
			RouteID:       route.ID,
			Role:          models.RoleConductor,
			StartTime:     start,
			EndTime:       end,
			Status:        models.StatusPlanned,
			BatchID:       in.BatchID,
			ScheduledDate: in.ScheduledDate,
			SlotKey:       in.SlotKey,
			CreatedBy:     in.Actor,
			UpdatedBy:     in.Actor,
		}
		if err := st.CreateAssignment(&a); err != nil {
			return nil, nil, err
		}
		if err := st.AdvanceLastDutyEnd(c.ID, end, in.Actor); err != nil {
			return nil, nil, err
		}
		return c, &a, nil
	}
	return nil, nil, nil
}

func (o *Orchestrator) evaluate(in rules.Input, opts rules.Options) []rules.Violation {
	violations := rules.Evaluate(in, opts)
	for _, v := range violations {
		metrics.ConflictsDetected.WithLabelValues(string(v.Kind)).Inc()
	}
	return violations
}

func filterQualified(crews []models.Crew, busType string) []models.Crew {
	out := crews[:0]
	for _, c := range crews {
		if len(c.Qualifications) == 0 || containsString(c.Qualifications, busType) {
			out = append(out, c)
		}
	}
	return out
}

func crewIDs(crews []models.Crew) []uint {
	ids := make([]uint, len(crews))
	for i, c := range crews {
		ids[i] = c.ID
	}
	return ids
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
