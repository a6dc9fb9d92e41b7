package tuner

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped by every validation error. Tune returns it
	// before any fold is built or any model is fitted.
	ErrInvalidInput = errors.New("tuner: invalid input")

	// ErrNoResults is returned when no combination could be evaluated.
	ErrNoResults = errors.New("tuner: no evaluated combinations")

	// ErrPredictionShape is returned when predictions do not line up with
	// the test rows.
	ErrPredictionShape = errors.New("tuner: predictions do not match test rows")
)

// ValidationError names the offending argument and the violated constraint.
type ValidationError struct {
	Arg        string
	Constraint string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tuner: invalid %s: %s", e.Arg, e.Constraint)
}

// Unwrap makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(arg, format string, args ...any) error {
	return &ValidationError{Arg: arg, Constraint: fmt.Sprintf(format, args...)}
}

// FoldError describes why one fold of one combination failed.
type FoldError struct {
	// Fold is the zero-based fold index.
	Fold int

	// Stage is "fit", "predict" or "evaluate".
	Stage string

	Err error
}

// Error implements error.
func (e *FoldError) Error() string {
	return fmt.Sprintf("fold %d: %s failed: %v", e.Fold, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FoldError) Unwrap() error {
	return e.Err
}
