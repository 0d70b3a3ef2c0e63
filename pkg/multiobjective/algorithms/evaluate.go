package algorithms

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// evaluatePopulation evaluates every member without fitness, possibly in
// parallel, and returns the population minus the members whose evaluation
// failed together with the number of successful evaluations. A positive dim
// rejects vectors of any other length.
//
// Evaluations only read their own vector and write their own individual, so
// the outcome does not depend on the number of workers.
func (n *NSGAII) evaluatePopulation(ctx context.Context, dim, gen int, population framework.Population) (framework.Population, int, error) {
	logger := klog.FromContext(ctx)

	var pending []int
	for i, ind := range population {
		if !ind.Valid() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return population, 0, nil
	}

	evaluator := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		return n.evaluateOne(ctx, dim, vars)
	})
	errs := make([]error, len(pending))
	workers := n.config.Workers
	if workers < 1 {
		workers = 1
	}
	workqueue.ParallelizeUntil(ctx, workers, len(pending), func(piece int) {
		errs[piece] = framework.Evaluate(ctx, population[pending[piece]], evaluator)
	})
	// ParallelizeUntil skips remaining pieces once ctx is done.
	if err := ctx.Err(); err != nil {
		return nil, 0, &framework.RunError{Generation: gen, Err: err}
	}

	dropped := make(map[int]bool)
	var firstErr error
	for piece, idx := range pending {
		err := errs[piece]
		if err == nil {
			continue
		}
		var dimErr *framework.DimensionMismatchError
		if errors.As(err, &dimErr) {
			dimErr.Index = idx
			return nil, 0, &framework.RunError{Generation: gen, Err: dimErr}
		}
		evalErr := &framework.EvaluationError{Variables: population[idx].Variables(), Err: err}
		errors.As(err, &evalErr)
		evalErr.Generation, evalErr.Index = gen, idx
		if firstErr == nil {
			firstErr = evalErr
		}
		logger.Error(evalErr, "Dropping individual after failed evaluation", "generation", gen, "index", idx)
		dropped[idx] = true
	}

	if len(dropped) == len(pending) {
		return nil, 0, &framework.RunError{
			Generation: gen,
			Err:        fmt.Errorf("all %d evaluations failed: %w", len(pending), firstErr),
		}
	}
	if len(dropped) == 0 {
		return population, len(pending), nil
	}

	kept := make(framework.Population, 0, len(population)-len(dropped))
	for i, ind := range population {
		if !dropped[i] {
			kept = append(kept, ind)
		}
	}
	logger.V(2).Info("Evaluation failures", "generation", gen, "failed", len(dropped), "attempted", len(pending))
	return kept, len(pending) - len(dropped), nil
}

// evaluateOne calls the evaluator, retrying once on any failure other than a
// dimension mismatch or the run being cancelled. Invalid objective values
// count as failures so that they are retried too.
func (n *NSGAII) evaluateOne(ctx context.Context, dim int, vars []float64) (framework.ObjectiveSpacePoint, error) {
	if dim > 0 {
		if err := framework.CheckDimension(vars, dim, -1); err != nil {
			return nil, err
		}
	}

	backoff := wait.Backoff{
		Steps:    2,
		Duration: n.config.RetryBackoff,
		Factor:   1,
	}
	retriable := func(err error) bool {
		var dimErr *framework.DimensionMismatchError
		return ctx.Err() == nil && !errors.As(err, &dimErr)
	}

	var values framework.ObjectiveSpacePoint
	err := retry.OnError(backoff, retriable, func() error {
		v, err := n.callEvaluator(ctx, vars)
		if err != nil {
			return err
		}
		if err := framework.CheckObjectives(v); err != nil {
			return err
		}
		values = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// callEvaluator bounds a single evaluator call by EvaluationTimeout. An
// evaluator that ignores its context keeps running in the background, but its
// result is discarded.
func (n *NSGAII) callEvaluator(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
	if n.config.EvaluationTimeout <= 0 {
		return n.evaluator.Evaluate(ctx, vars)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.EvaluationTimeout)
	defer cancel()

	type outcome struct {
		values framework.ObjectiveSpacePoint
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := n.evaluator.Evaluate(ctx, vars)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.values, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("evaluation timed out after %v: %w", n.config.EvaluationTimeout, ctx.Err())
	}
}
