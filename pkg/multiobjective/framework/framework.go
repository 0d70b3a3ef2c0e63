package framework

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Evaluator maps a latent vector to its objective values. Implementations
// must be deterministic, must not modify the input and must be safe for
// concurrent use, since distinct individuals may be evaluated in parallel.
type Evaluator interface {
	Evaluate(ctx context.Context, vars []float64) (ObjectiveSpacePoint, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, vars []float64) (ObjectiveSpacePoint, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, vars []float64) (ObjectiveSpacePoint, error) {
	return f(ctx, vars)
}

// ImageProducer renders a latent vector, e.g. through a pretrained generator.
// It is only used after the search finishes.
type ImageProducer interface {
	Produce(ctx context.Context, vars []float64) (image.Image, error)
}

// Evaluate computes and caches the fitness of ind if it is unset. Calling it on
// an evaluated individual is a no-op. A failed call or an invalid result is
// returned as an *EvaluationError with Index -1 and leaves ind unevaluated.
func Evaluate(ctx context.Context, ind *Individual, evaluator Evaluator) error {
	if ind.Valid() {
		return nil
	}
	values, err := evaluator.Evaluate(ctx, ind.Variables())
	if err == nil {
		err = CheckObjectives(values)
	}
	if err != nil {
		return &EvaluationError{Index: -1, Variables: ind.Variables(), Err: err}
	}
	ind.SetFitness(values)
	return nil
}

// CheckObjectives verifies arity and finiteness of an evaluator result.
func CheckObjectives(values ObjectiveSpacePoint) error {
	if len(values) != NumObjectives {
		return fmt.Errorf("evaluator returned %d objectives, want %d", len(values), NumObjectives)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("objective %d is not finite: %v", i, v)
		}
	}
	return nil
}

// CheckDimension returns a DimensionMismatchError when vars is not of length d.
func CheckDimension(vars []float64, d, index int) error {
	if len(vars) != d {
		return &DimensionMismatchError{Want: d, Got: len(vars), Index: index}
	}
	return nil
}
