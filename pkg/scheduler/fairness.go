package scheduler

import (
	"sort"
	"time"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/rules"
)

// WeeklyHours sums assignment hours per crew member for assignments starting
// after weekAgo.
func WeeklyHours(assignments []models.Assignment, weekAgo time.Time) map[uint]float64 {
	hours := make(map[uint]float64)
	for _, a := range assignments {
		if a.StartTime.After(weekAgo) {
			hours[a.CrewID] += rules.HoursBetween(a.StartTime, a.EndTime)
		}
	}
	return hours
}

// RankDrivers orders drivers ascending by trailing-week hours, ties broken
// by oldest lastDutyEnd (unset sorts first): least-loaded, longest-rested
// first.
func RankDrivers(drivers []models.Crew, weekly map[uint]float64) {
	sort.SliceStable(drivers, func(i, j int) bool {
		wi, wj := weekly[drivers[i].ID], weekly[drivers[j].ID]
		if wi != wj {
			return wi < wj
		}
		return lastDutyMillis(drivers[i]) < lastDutyMillis(drivers[j])
	})
}

// RankConductors orders conductors by oldest lastDutyEnd, unset first.
func RankConductors(conductors []models.Crew) {
	sort.SliceStable(conductors, func(i, j int) bool {
		return lastDutyMillis(conductors[i]) < lastDutyMillis(conductors[j])
	})
}

// RankBuses puts Idle buses ahead of Active ones, preserving pool order
// otherwise, so the idle fleet is utilized preferentially.
func RankBuses(buses []models.Bus) {
	sort.SliceStable(buses, func(i, j int) bool {
		return busRank(buses[i]) < busRank(buses[j])
	})
}

// sortRoutesByPriority orders routes ascending by priority, ties broken by
// id so a generation run visits routes in a stable order.
func sortRoutesByPriority(routes []models.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Priority != routes[j].Priority {
			return routes[i].Priority < routes[j].Priority
		}
		return routes[i].ID < routes[j].ID
	})
}

func busRank(b models.Bus) int {
	if b.Status == models.BusIdle {
		return 0
	}
	return 1
}

func lastDutyMillis(c models.Crew) int64 {
	if c.LastDutyEnd == nil {
		return 0
	}
	return c.LastDutyEnd.UnixMilli()
}
