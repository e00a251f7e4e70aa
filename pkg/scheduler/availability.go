package scheduler

import (
	"time"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/rules"
	"github.com/citytransit/depot-scheduler-go/pkg/store"
)

// Availability is the result of resolving a candidate pool against a time
// window: who is free, plus the busy index the constraint engine reuses so
// the pair search never re-queries per candidate.
type Availability struct {
	FreeBuses []models.Bus
	FreeCrews []models.Crew

	// Overlapping Planned/Live assignments keyed by owner, from one
	// batched query across the whole pool.
	CrewBusy map[uint][]models.Assignment
	BusBusy  map[uint][]models.Assignment
}

// ResolveAvailability partitions the given pools into free and busy for
// [start, end) using a single overlap query. Buses are additionally dropped
// when a non-completed maintenance window intersects the proposal; crews are
// dropped when the rest rule relative to lastDutyEnd fails.
func ResolveAvailability(st *store.Store, settings models.Settings, buses []models.Bus, crews []models.Crew, start, end time.Time) (*Availability, error) {
	crewIDs := make([]uint, len(crews))
	for i, c := range crews {
		crewIDs[i] = c.ID
	}
	busIDs := make([]uint, len(buses))
	for i, b := range buses {
		busIDs[i] = b.ID
	}

	overlapping, err := st.OverlappingAssignments(start, end, crewIDs, busIDs)
	if err != nil {
		return nil, err
	}

	av := &Availability{
		CrewBusy: make(map[uint][]models.Assignment),
		BusBusy:  make(map[uint][]models.Assignment),
	}
	for _, a := range overlapping {
		av.CrewBusy[a.CrewID] = append(av.CrewBusy[a.CrewID], a)
		av.BusBusy[a.BusID] = append(av.BusBusy[a.BusID], a)
	}

	for _, b := range buses {
		if len(av.BusBusy[b.ID]) > 0 {
			continue
		}
		if busInMaintenance(b, start, end) {
			continue
		}
		av.FreeBuses = append(av.FreeBuses, b)
	}

	for _, c := range crews {
		if len(av.CrewBusy[c.ID]) > 0 {
			continue
		}
		if !MeetsRest(c, settings.MinRestHours, start) {
			continue
		}
		av.FreeCrews = append(av.FreeCrews, c)
	}

	return av, nil
}

// MeetsRest reports whether a shift starting at start leaves the crew member
// at least minRestHours after their last duty end.
func MeetsRest(c models.Crew, minRestHours float64, start time.Time) bool {
	if c.LastDutyEnd == nil {
		return true
	}
	minStart := c.LastDutyEnd.Add(time.Duration(minRestHours * float64(time.Hour)))
	return !start.Before(minStart)
}

func busInMaintenance(b models.Bus, start, end time.Time) bool {
	for _, mw := range b.MaintenanceWindows {
		if mw.Status != models.MaintenanceCompleted && rules.Overlaps(start, end, mw.StartTime, mw.EndTime) {
			return true
		}
	}
	return false
}
