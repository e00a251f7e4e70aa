package scheduler

import (
	"fmt"
	"strings"

	"github.com/citytransit/depot-scheduler-go/pkg/rules"
)

// ValidationError rejects malformed input before any store access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError marks a missing crew, bus, route or assignment reference.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// ConflictError carries the complete ordered violation list, or a summary
// message when a candidate search exhausted the pool.
type ConflictError struct {
	Msg        string
	Violations []rules.Violation
}

func (e *ConflictError) Error() string {
	if len(e.Violations) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(rules.Messages(e.Violations), "; "))
}

// RequirementUnsatisfiedError aborts an operation whose settings-mandated
// requirement (a conductor) could not be met.
type RequirementUnsatisfiedError struct {
	Msg string
}

func (e *RequirementUnsatisfiedError) Error() string { return e.Msg }
