package framework

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ConfigurationError is returned before any generation runs when the run
// configuration is invalid.
type ConfigurationError struct {
	Errs field.ErrorList
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Errs.ToAggregate())
}

// NewConfigurationError returns nil when errs is empty.
func NewConfigurationError(errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Errs: errs}
}

// SeedLoadError reports a missing or malformed seed source.
type SeedLoadError struct {
	Source string
	// Line is the 1-based line that failed, or 0 when the whole source failed.
	Line int
	Err  error
}

func (e *SeedLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("loading seeds from %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("loading seeds from %s: %v", e.Source, e.Err)
}

func (e *SeedLoadError) Unwrap() error { return e.Err }

// DimensionMismatchError means a vector does not have the configured latent
// dimensionality. It is a structural bug and never retried.
type DimensionMismatchError struct {
	Want int
	Got  int
	// Index is the position of the offending vector in its collection, or -1.
	Index int
}

func (e *DimensionMismatchError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("vector %d has dimension %d, want %d", e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("vector has dimension %d, want %d", e.Got, e.Want)
}

// EvaluationError is a failed evaluation of a single individual. The run loop
// recovers from it by dropping the individual for the current generation.
type EvaluationError struct {
	Generation int
	// Index is the position of the individual in its population, or -1.
	Index     int
	Variables []float64
	Err       error
}

func (e *EvaluationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("evaluating individual: %v", e.Err)
	}
	return fmt.Sprintf("evaluating individual %d (generation %d): %v", e.Index, e.Generation, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// RunError is a fatal error that stops the run loop.
type RunError struct {
	Generation int
	Err        error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run aborted at generation %d: %v", e.Generation, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
