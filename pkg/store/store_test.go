package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/citytransit/depot-scheduler-go/pkg/database"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

var base = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return New(db)
}

func mkAssignment(t *testing.T, st *Store, crewID, busID uint, status string, startHour, endHour int) models.Assignment {
	t.Helper()
	a := models.Assignment{
		CrewID: crewID, BusID: busID, RouteID: 1, Role: models.RoleDriver,
		StartTime: base.Add(time.Duration(startHour) * time.Hour),
		EndTime:   base.Add(time.Duration(endHour) * time.Hour),
		Status:    status,
	}
	require.NoError(t, st.DB().Create(&a).Error)
	return a
}

func TestCurrentSettingsDefaultsWhenAbsent(t *testing.T) {
	st := newTestStore(t)

	s, err := st.CurrentSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings().MinRestHours, s.MinRestHours)
	assert.True(t, s.AllowOverrides)
	assert.Len(t, s.DutySlots, 2)

	// Defaults are not persisted by a read.
	var n int64
	require.NoError(t, st.DB().Model(&models.Settings{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestUpsertSettingsRoundTrip(t *testing.T) {
	st := newTestStore(t)

	s := models.DefaultSettings()
	s.MinRestHours = 10
	s.AllowOverrides = false
	require.NoError(t, st.UpsertSettings(&s))

	got, err := st.CurrentSettings()
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.MinRestHours)
	assert.False(t, got.AllowOverrides)

	// A second save updates the same row.
	got.MaxShiftHours = 9
	require.NoError(t, st.UpsertSettings(&got))

	var n int64
	require.NoError(t, st.DB().Model(&models.Settings{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	again, err := st.CurrentSettings()
	require.NoError(t, err)
	assert.Equal(t, 9.0, again.MaxShiftHours)
}

func TestByIDReturnsNilNilWhenMissing(t *testing.T) {
	st := newTestStore(t)

	crew, err := st.CrewByID(42)
	require.NoError(t, err)
	assert.Nil(t, crew)

	bus, err := st.BusByID(42)
	require.NoError(t, err)
	assert.Nil(t, bus)

	route, err := st.RouteByID(42)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestOverlappingAssignmentsFilters(t *testing.T) {
	st := newTestStore(t)

	inWindow := mkAssignment(t, st, 1, 10, models.StatusPlanned, 9, 13)
	mkAssignment(t, st, 1, 10, models.StatusCanceled, 9, 13)  // wrong status
	mkAssignment(t, st, 1, 10, models.StatusCompleted, 9, 13) // wrong status
	mkAssignment(t, st, 1, 10, models.StatusPlanned, 13, 17)  // adjacent, half-open
	mkAssignment(t, st, 2, 20, models.StatusLive, 9, 13)      // other crew and bus
	crewOnly := mkAssignment(t, st, 1, 99, models.StatusLive, 11, 14)
	busOnly := mkAssignment(t, st, 3, 10, models.StatusLive, 10, 12)

	got, err := st.OverlappingAssignments(base.Add(9*time.Hour), base.Add(13*time.Hour), []uint{1}, []uint{10})
	require.NoError(t, err)
	require.Len(t, got, 3)

	ids := map[uint]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	// The crew-only match, the bus-only match, and the canceled/completed
	// exclusions prove the OR and status filters work in one query.
	assert.True(t, ids[inWindow.ID])
	assert.True(t, ids[crewOnly.ID])
	assert.True(t, ids[busOnly.ID])
}

func TestOverlappingAssignmentsEmptyPools(t *testing.T) {
	st := newTestStore(t)
	mkAssignment(t, st, 1, 10, models.StatusPlanned, 9, 13)

	got, err := st.OverlappingAssignments(base.Add(9*time.Hour), base.Add(13*time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCrewAssignmentsForEvalIncludesWeeklyLookback(t *testing.T) {
	st := newTestStore(t)

	// Completed shifts from the trailing week count toward weekly hours,
	// so the fetch must not drop them.
	worked := mkAssignment(t, st, 1, 10, models.StatusCompleted, -72, -64) // 3 days back
	planned := mkAssignment(t, st, 1, 10, models.StatusPlanned, -48, -40)
	mkAssignment(t, st, 1, 10, models.StatusCanceled, -36, -30)           // canceled never counts
	mkAssignment(t, st, 1, 10, models.StatusCompleted, -24*9, -24*8)      // older than 7 days
	overlapping := mkAssignment(t, st, 1, 10, models.StatusLive, 10, 12)  // in window
	mkAssignment(t, st, 2, 10, models.StatusPlanned, 10, 12)              // other crew

	got, err := st.CrewAssignmentsForEval(1, base.Add(9*time.Hour), base.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)

	ids := map[uint]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	assert.True(t, ids[worked.ID])
	assert.True(t, ids[planned.ID])
	assert.True(t, ids[overlapping.ID])
}

func TestAdvanceLastDutyEndForwardOnly(t *testing.T) {
	st := newTestStore(t)
	crew := models.Crew{Name: "Asha", Role: models.RoleDriver}
	require.NoError(t, st.DB().Create(&crew).Error)

	// From null.
	first := base.Add(13 * time.Hour)
	require.NoError(t, st.AdvanceLastDutyEnd(crew.ID, first, "ops"))
	got, err := st.CrewByID(crew.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastDutyEnd)
	assert.True(t, got.LastDutyEnd.Equal(first))

	// Backward write is a no-op.
	require.NoError(t, st.AdvanceLastDutyEnd(crew.ID, base.Add(10*time.Hour), "ops"))
	got, err = st.CrewByID(crew.ID)
	require.NoError(t, err)
	assert.True(t, got.LastDutyEnd.Equal(first))

	// Forward write advances.
	later := base.Add(22 * time.Hour)
	require.NoError(t, st.AdvanceLastDutyEnd(crew.ID, later, "ops"))
	got, err = st.CrewByID(crew.ID)
	require.NoError(t, err)
	assert.True(t, got.LastDutyEnd.Equal(later))
}

func TestCancelByBatchSkipsAlreadyCanceled(t *testing.T) {
	st := newTestStore(t)

	for i := 0; i < 3; i++ {
		a := mkAssignment(t, st, uint(i+1), 10, models.StatusPlanned, 9, 13)
		require.NoError(t, st.DB().Model(&a).Update("batch_id", "batch-1").Error)
	}
	other := mkAssignment(t, st, 9, 10, models.StatusPlanned, 9, 13)
	require.NoError(t, st.DB().Model(&other).Update("batch_id", "batch-2").Error)

	affected, err := st.CancelByBatch("batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	affected, err = st.CancelByBatch("batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	// Other batches untouched.
	got, err := st.AssignmentByID(other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlanned, got.Status)
}

func TestDeleteByWindowUsesHalfOpenBounds(t *testing.T) {
	st := newTestStore(t)

	mkAssignment(t, st, 1, 10, models.StatusPlanned, 9, 13)
	keep := mkAssignment(t, st, 2, 20, models.StatusPlanned, 24, 28) // next day

	affected, err := st.DeleteByWindow(base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	got, err := st.AssignmentByID(keep.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestNextCounterSequences(t *testing.T) {
	st := newTestStore(t)

	for want := int64(1); want <= 3; want++ {
		seq, err := st.NextCounter("crew")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// Independent sequences per name.
	seq, err := st.NextCounter("duty")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}
