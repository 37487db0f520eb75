package sketch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id does not name a parameter or entity
	// of the Objects it was used with.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedConstraint is returned when a constraint's kind has no
	// residual and derivative formulas.
	ErrUnsupportedConstraint = errors.New("unsupported constraint")

	// ErrEvaluation is returned when a formula can't be evaluated at the
	// given candidate, such as a division by zero or a derivative that
	// doesn't exist.
	ErrEvaluation = errors.New("evaluation failure")

	// ErrNonConvergence is returned when the optimizer exhausts its
	// iteration budget, or stops making progress, without meeting the
	// tolerance.
	ErrNonConvergence = errors.New("solve did not converge")

	// ErrSingular is returned when the linearized system can't be solved.
	ErrSingular = errors.New("singular system")
)

// NotFoundError describes an id that doesn't exist.
type NotFoundError struct {
	// Entity is one of "parameter", "point", "segment", or "circle".
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConstraintError attributes a failure to a single constraint.
type ConstraintError struct {
	// Index is the constraint's position in the constraint list.
	Index int
	Kind  ConstraintKind
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %d (%s): %s", e.Index, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// SolveError is returned by [Solve] when no satisfying assignment was found.
//
// Reason is one of [ErrNonConvergence], [ErrSingular], an evaluation error, or
// the context's error. Best holds the candidate with the lowest residual norm
// seen, indexed by parameter id, so that callers may still choose to accept
// it.
type SolveError struct {
	Reason       error
	Best         []float64
	Iterations   int
	ResidualNorm float64
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("solve failed after %d iterations (residual norm %g): %s",
		e.Iterations, e.ResidualNorm, e.Reason)
}

func (e *SolveError) Unwrap() error { return e.Reason }

func evalErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrEvaluation}, args...)...)
}
