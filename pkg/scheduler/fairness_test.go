package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

func ts(h int) *time.Time {
	t := time.Date(2030, 1, 7, h, 0, 0, 0, time.UTC)
	return &t
}

func TestWeeklyHours(t *testing.T) {
	weekAgo := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	asgns := []models.Assignment{
		{CrewID: 1, StartTime: weekAgo.Add(24 * time.Hour), EndTime: weekAgo.Add(32 * time.Hour)},
		{CrewID: 1, StartTime: weekAgo.Add(48 * time.Hour), EndTime: weekAgo.Add(52 * time.Hour)},
		{CrewID: 2, StartTime: weekAgo.Add(24 * time.Hour), EndTime: weekAgo.Add(26 * time.Hour)},
		// Exactly at the boundary does not count (strictly after).
		{CrewID: 2, StartTime: weekAgo, EndTime: weekAgo.Add(10 * time.Hour)},
	}

	hours := WeeklyHours(asgns, weekAgo)
	assert.Equal(t, 12.0, hours[1])
	assert.Equal(t, 2.0, hours[2])
}

func TestRankDriversByWeeklyHoursThenRest(t *testing.T) {
	drivers := []models.Crew{
		{ID: 1, LastDutyEnd: ts(6)},
		{ID: 2, LastDutyEnd: ts(2)},
		{ID: 3}, // never on duty, same weekly hours as 2
	}
	weekly := map[uint]float64{1: 10, 2: 4, 3: 4}

	RankDrivers(drivers, weekly)

	ids := []uint{drivers[0].ID, drivers[1].ID, drivers[2].ID}
	// 3 and 2 tie on hours; unset lastDutyEnd sorts first.
	assert.Equal(t, []uint{3, 2, 1}, ids)
}

func TestRankConductorsByLastDutyEnd(t *testing.T) {
	conductors := []models.Crew{
		{ID: 1, LastDutyEnd: ts(9)},
		{ID: 2, LastDutyEnd: ts(3)},
		{ID: 3},
	}
	RankConductors(conductors)
	assert.Equal(t, uint(3), conductors[0].ID)
	assert.Equal(t, uint(2), conductors[1].ID)
	assert.Equal(t, uint(1), conductors[2].ID)
}

func TestRankBusesIdleFirstStable(t *testing.T) {
	buses := []models.Bus{
		{ID: 1, Status: models.BusActive},
		{ID: 2, Status: models.BusIdle},
		{ID: 3, Status: models.BusActive},
		{ID: 4, Status: models.BusIdle},
	}
	RankBuses(buses)

	ids := []uint{buses[0].ID, buses[1].ID, buses[2].ID, buses[3].ID}
	assert.Equal(t, []uint{2, 4, 1, 3}, ids)
}
