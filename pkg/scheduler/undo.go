package scheduler

import (
	"time"

	"github.com/citytransit/depot-scheduler-go/pkg/metrics"
)

// UndoMode selects how an undo reverses assignments.
type UndoMode string

const (
	// UndoCancel flips status to Canceled; reversible, audit trail kept.
	UndoCancel UndoMode = "cancel"
	// UndoDelete hard-removes the rows; irreversible.
	UndoDelete UndoMode = "delete"
)

// ParseUndoMode maps a query value to an UndoMode, defaulting to cancel.
func ParseUndoMode(s string) (UndoMode, error) {
	switch UndoMode(s) {
	case "", UndoCancel:
		return UndoCancel, nil
	case UndoDelete:
		return UndoDelete, nil
	default:
		return "", &ValidationError{Msg: "mode must be cancel or delete"}
	}
}

// UndoBatch reverses every assignment created by one generation run and
// returns the number affected. Canceling twice reports zero on the repeat.
func (o *Orchestrator) UndoBatch(batchID string, mode UndoMode) (int64, error) {
	if batchID == "" {
		return 0, &ValidationError{Msg: "batchId is required"}
	}

	var affected int64
	var err error
	if mode == UndoDelete {
		affected, err = o.store.DeleteByBatch(batchID)
	} else {
		affected, err = o.store.CancelByBatch(batchID)
	}
	if err != nil {
		return 0, err
	}

	metrics.UndoAffected.WithLabelValues(string(mode)).Add(float64(affected))
	o.log.Info().Str("batch", batchID).Str("mode", string(mode)).
		Int64("affected", affected).Msg("batch undone")
	return affected, nil
}

// UndoDay reverses every assignment whose window intersects the calendar day
// [dayStart, nextDayStart) and returns the number affected.
func (o *Orchestrator) UndoDay(date string, mode UndoMode) (int64, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return 0, &ValidationError{Msg: "date must be YYYY-MM-DD"}
	}
	next := day.AddDate(0, 0, 1)

	var affected int64
	if mode == UndoDelete {
		affected, err = o.store.DeleteByWindow(day, next)
	} else {
		affected, err = o.store.CancelByWindow(day, next)
	}
	if err != nil {
		return 0, err
	}

	metrics.UndoAffected.WithLabelValues(string(mode)).Add(float64(affected))
	o.log.Info().Str("date", date).Str("mode", string(mode)).
		Int64("affected", affected).Msg("day undone")
	return affected, nil
}
