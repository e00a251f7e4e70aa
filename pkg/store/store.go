// Package store is the gorm data-access layer for the scheduling core. Every
// query the orchestrator needs is expressed here; the batched overlap lookup
// is a single round trip for a whole candidate pool.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// Store wraps a gorm handle. WithTx yields a Store bound to the transaction,
// so the same methods work inside and outside one.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an open database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for CRUD handlers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside one database transaction. Isolation is the backing
// store's default (sqlite serializes writers; postgres runs read committed).
// Any error from fn rolls the transaction back and is returned as-is.
func (s *Store) WithTx(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CurrentSettings returns the settings singleton, or defaults when no row
// exists yet.
func (s *Store) CurrentSettings() (models.Settings, error) {
	var settings models.Settings
	err := s.db.Order("id").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// UpsertSettings writes the singleton row, creating it on first save.
func (s *Store) UpsertSettings(settings *models.Settings) error {
	var existing models.Settings
	err := s.db.Order("id").First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(settings).Error
	}
	if err != nil {
		return err
	}
	settings.ID = existing.ID
	return s.db.Save(settings).Error
}

// CrewByID returns (nil, nil) when the record does not exist.
func (s *Store) CrewByID(id uint) (*models.Crew, error) {
	var c models.Crew
	err := s.db.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// BusByID returns (nil, nil) when the record does not exist.
func (s *Store) BusByID(id uint) (*models.Bus, error) {
	var b models.Bus
	err := s.db.First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// RouteByID returns (nil, nil) when the record does not exist.
func (s *Store) RouteByID(id uint) (*models.Route, error) {
	var r models.Route
	err := s.db.First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CrewFilter narrows the crew candidate pool.
type CrewFilter struct {
	Role   string
	Status string // empty = any status
}

// Crews lists unarchived crew matching the filter.
func (s *Store) Crews(f CrewFilter) ([]models.Crew, error) {
	q := s.db.Where("is_archived = ?", false)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var crews []models.Crew
	if err := q.Order("id").Find(&crews).Error; err != nil {
		return nil, err
	}
	return crews, nil
}

// BusFilter narrows the bus candidate pool.
type BusFilter struct {
	Statuses []string
	Type     string // empty = any type
}

// Buses lists unarchived buses matching the filter.
func (s *Store) Buses(f BusFilter) ([]models.Bus, error) {
	q := s.db.Where("is_archived = ?", false)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var buses []models.Bus
	if err := q.Order("id").Find(&buses).Error; err != nil {
		return nil, err
	}
	return buses, nil
}

// ActiveRoutes lists every unarchived route.
func (s *Store) ActiveRoutes() ([]models.Route, error) {
	var routes []models.Route
	if err := s.db.Where("is_archived = ?", false).Order("id").Find(&routes).Error; err != nil {
		return nil, err
	}
	return routes, nil
}

// OverlappingAssignments returns Planned/Live assignments intersecting
// [start, end) that belong to any of the given crews or buses, in one round
// trip. Either ID set may be empty.
func (s *Store) OverlappingAssignments(start, end time.Time, crewIDs, busIDs []uint) ([]models.Assignment, error) {
	if len(crewIDs) == 0 && len(busIDs) == 0 {
		return nil, nil
	}
	q := s.db.
		Where("status IN ?", []string{models.StatusPlanned, models.StatusLive}).
		Where("start_time < ? AND end_time > ?", end, start)
	switch {
	case len(crewIDs) > 0 && len(busIDs) > 0:
		q = q.Where("crew_id IN ? OR bus_id IN ?", crewIDs, busIDs)
	case len(crewIDs) > 0:
		q = q.Where("crew_id IN ?", crewIDs)
	default:
		q = q.Where("bus_id IN ?", busIDs)
	}
	var out []models.Assignment
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CrewAssignmentsForEval returns one crew member's assignments wide enough
// for both the overlap check and the trailing-7-day weekly-hours check
// against a proposal on [start, end). Completed shifts must be included so
// worked hours count toward the weekly cap; only Canceled rows are excluded.
// The overlap check narrows to Planned/Live on its own.
func (s *Store) CrewAssignmentsForEval(crewID uint, start, end time.Time) ([]models.Assignment, error) {
	weekAgo := start.AddDate(0, 0, -7)
	var out []models.Assignment
	err := s.db.
		Where("crew_id = ?", crewID).
		Where("status <> ?", models.StatusCanceled).
		Where("start_time < ? AND end_time > ?", end, weekAgo).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WeekAssignments returns all assignments for the given crews starting after
// weekAgo, used by the fairness ranking.
func (s *Store) WeekAssignments(crewIDs []uint, weekAgo time.Time) ([]models.Assignment, error) {
	if len(crewIDs) == 0 {
		return nil, nil
	}
	var out []models.Assignment
	err := s.db.
		Where("crew_id IN ?", crewIDs).
		Where("start_time > ?", weekAgo).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAssignment inserts one assignment row.
func (s *Store) CreateAssignment(a *models.Assignment) error {
	return s.db.Create(a).Error
}

// AdvanceLastDutyEnd moves a crew member's lastDutyEnd forward to end; it
// never moves it backward.
func (s *Store) AdvanceLastDutyEnd(crewID uint, end time.Time, actor string) error {
	return s.db.Model(&models.Crew{}).
		Where("id = ?", crewID).
		Where("last_duty_end IS NULL OR last_duty_end < ?", end).
		Updates(map[string]any{"last_duty_end": end, "updated_by": actor}).Error
}

// DutyByID returns (nil, nil) when the record does not exist.
func (s *Store) DutyByID(id uint) (*models.Duty, error) {
	var d models.Duty
	err := s.db.First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// OverlappingDuties returns one crew member's non-completed duties
// intersecting [start, end).
func (s *Store) OverlappingDuties(crewID uint, start, end time.Time) ([]models.Duty, error) {
	var out []models.Duty
	err := s.db.
		Where("crew_id = ?", crewID).
		Where("status <> ?", models.DutyCompleted).
		Where("start_time < ? AND end_time > ?", end, start).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestDutyEnd returns the end of the crew member's most recent duty, or
// (nil, nil) when they have none.
func (s *Store) LatestDutyEnd(crewID uint) (*time.Time, error) {
	var d models.Duty
	err := s.db.Where("crew_id = ?", crewID).Order("end_time DESC").First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d.EndTime, nil
}

// AssignmentByID returns (nil, nil) when the record does not exist.
func (s *Store) AssignmentByID(id uint) (*models.Assignment, error) {
	var a models.Assignment
	err := s.db.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CancelAssignment flips one assignment to Canceled.
func (s *Store) CancelAssignment(id uint, actor string) error {
	return s.db.Model(&models.Assignment{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": models.StatusCanceled, "updated_by": actor}).Error
}

// AssignmentsInRange lists assignments whose window intersects [start, end),
// any status.
func (s *Store) AssignmentsInRange(start, end time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	err := s.db.
		Where("start_time < ? AND end_time > ?", end, start).
		Order("start_time").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelByBatch bulk-cancels a generation batch. Already-canceled rows are
// excluded so a repeat call reports zero affected.
func (s *Store) CancelByBatch(batchID string) (int64, error) {
	res := s.db.Model(&models.Assignment{}).
		Where("batch_id = ?", batchID).
		Where("status <> ?", models.StatusCanceled).
		Update("status", models.StatusCanceled)
	return res.RowsAffected, res.Error
}

// DeleteByBatch hard-deletes a generation batch.
func (s *Store) DeleteByBatch(batchID string) (int64, error) {
	res := s.db.Where("batch_id = ?", batchID).Delete(&models.Assignment{})
	return res.RowsAffected, res.Error
}

// CancelByWindow bulk-cancels assignments intersecting [start, end).
func (s *Store) CancelByWindow(start, end time.Time) (int64, error) {
	res := s.db.Model(&models.Assignment{}).
		Where("start_time < ? AND end_time > ?", end, start).
		Where("status <> ?", models.StatusCanceled).
		Update("status", models.StatusCanceled)
	return res.RowsAffected, res.Error
}

// DeleteByWindow hard-deletes assignments intersecting [start, end).
func (s *Store) DeleteByWindow(start, end time.Time) (int64, error) {
	res := s.db.Where("start_time < ? AND end_time > ?", end, start).Delete(&models.Assignment{})
	return res.RowsAffected, res.Error
}

// NextCounter atomically increments and returns the named sequence.
func (s *Store) NextCounter(name string) (int64, error) {
	var seq int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var c models.Counter
		err := tx.Where("name = ?", name).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c = models.Counter{Name: name, Seq: 1}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
			seq = c.Seq
			return nil
		}
		if err != nil {
			return err
		}
		c.Seq++
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		seq = c.Seq
		return nil
	})
	return seq, err
}
