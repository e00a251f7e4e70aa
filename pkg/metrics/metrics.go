// Package metrics exposes prometheus counters for the scheduling core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentsCreated counts persisted assignments by role and
	// execution mode (manual, transactional, planning).
	AssignmentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depot_scheduler",
		Name:      "assignments_created_total",
		Help:      "Assignments persisted, by crew role and execution mode.",
	}, []string{"role", "mode"})

	// ConflictsDetected counts constraint violations by kind.
	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depot_scheduler",
		Name:      "conflicts_detected_total",
		Help:      "Constraint violations reported by the rules engine.",
	}, []string{"kind"})

	// BatchCells counts day-generation cells by outcome.
	BatchCells = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depot_scheduler",
		Name:      "batch_cells_total",
		Help:      "Day-generation cells processed, by outcome.",
	}, []string{"outcome"})

	// UndoAffected counts assignments touched by undo operations.
	UndoAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depot_scheduler",
		Name:      "undo_affected_total",
		Help:      "Assignments canceled or deleted by undo, by mode.",
	}, []string{"mode"})
)
