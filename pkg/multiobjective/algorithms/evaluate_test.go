package algorithms

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

func newTestNSGAII(t *testing.T, config NSGA2Config, eval framework.Evaluator, opts ...Option) *NSGAII {
	t.Helper()
	n, err := NewNSGAII(config, eval, opts...)
	require.NoError(t, err)
	return n
}

func unevaluated(vectors ...[]float64) framework.Population {
	pop := make(framework.Population, len(vectors))
	for i, v := range vectors {
		pop[i] = framework.NewIndividual(v)
	}
	return pop
}

func sumEvaluator() framework.EvaluatorFunc {
	return func(_ context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		s := 0.0
		for _, v := range vars {
			s += v
		}
		return framework.ObjectiveSpacePoint{s, -s}, nil
	}
}

func TestEvaluatePopulationSkipsEvaluated(t *testing.T) {
	calls := 0
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		calls++
		return sumEvaluator()(ctx, vars)
	})
	n := newTestNSGAII(t, testConfig(), eval)

	pop := unevaluated([]float64{1}, []float64{2})
	pop[0].SetFitness(framework.ObjectiveSpacePoint{9, 9})

	kept, evals, err := n.evaluatePopulation(context.Background(), 0, 1, pop)
	require.NoError(t, err)
	assert.Equal(t, 1, evals)
	assert.Equal(t, 1, calls)
	assert.Len(t, kept, 2)

	f, _ := pop[0].Fitness()
	assert.Equal(t, framework.ObjectiveSpacePoint{9, 9}, f)
	f, _ = pop[1].Fitness()
	assert.Equal(t, framework.ObjectiveSpacePoint{2, -2}, f)
}

func TestEvaluatePopulationRetriesOnce(t *testing.T) {
	var mu sync.Mutex
	attempts := map[float64]int{}
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		mu.Lock()
		attempts[vars[0]]++
		n := attempts[vars[0]]
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("transient")
		}
		return sumEvaluator()(ctx, vars)
	})
	config := testConfig()
	config.Workers = 3
	n := newTestNSGAII(t, config, eval)

	pop := unevaluated([]float64{1}, []float64{2}, []float64{3})
	kept, evals, err := n.evaluatePopulation(context.Background(), 0, 0, pop)
	require.NoError(t, err)
	assert.Len(t, kept, 3)
	assert.Equal(t, 3, evals)
	for _, v := range []float64{1, 2, 3} {
		assert.Equal(t, 2, attempts[v])
	}
}

func TestEvaluatePopulationDropsPersistentFailures(t *testing.T) {
	calls := map[float64]int{}
	var mu sync.Mutex
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		mu.Lock()
		calls[vars[0]]++
		mu.Unlock()
		switch vars[0] {
		case 2:
			return nil, errors.New("model crashed")
		case 3:
			return framework.ObjectiveSpacePoint{math.NaN(), 0}, nil
		case 4:
			return framework.ObjectiveSpacePoint{1}, nil
		}
		return sumEvaluator()(ctx, vars)
	})
	n := newTestNSGAII(t, testConfig(), eval)

	pop := unevaluated([]float64{1}, []float64{2}, []float64{3}, []float64{4}, []float64{5})
	kept, evals, err := n.evaluatePopulation(context.Background(), 0, 4, pop)
	require.NoError(t, err)
	assert.Equal(t, 2, evals)
	require.Len(t, kept, 2)
	assert.Same(t, pop[0], kept[0])
	assert.Same(t, pop[4], kept[1])

	// One retry each for the failing vectors.
	assert.Equal(t, 2, calls[2])
	assert.Equal(t, 2, calls[3])
	assert.Equal(t, 2, calls[4])
	assert.Equal(t, 1, calls[1])
}

func TestEvaluatePopulationAllFailed(t *testing.T) {
	boom := errors.New("gpu unavailable")
	eval := framework.EvaluatorFunc(func(context.Context, []float64) (framework.ObjectiveSpacePoint, error) {
		return nil, boom
	})
	n := newTestNSGAII(t, testConfig(), eval)

	_, _, err := n.evaluatePopulation(context.Background(), 0, 7, unevaluated([]float64{1}, []float64{2}))

	var runErr *framework.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, 7, runErr.Generation)

	var evalErr *framework.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 0, evalErr.Index)
	assert.Equal(t, []float64{1}, evalErr.Variables)
	assert.ErrorIs(t, err, boom)
}

func TestEvaluatePopulationTimeout(t *testing.T) {
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		if vars[0] == 2 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return sumEvaluator()(ctx, vars)
	})
	config := testConfig()
	config.EvaluationTimeout = 20 * time.Millisecond
	n := newTestNSGAII(t, config, eval)

	kept, evals, err := n.evaluatePopulation(context.Background(), 0, 1, unevaluated([]float64{1}, []float64{2}))
	require.NoError(t, err)
	assert.Equal(t, 1, evals)
	require.Len(t, kept, 1)
	assert.Equal(t, []float64{1}, kept[0].Variables())
}

func TestEvaluatePopulationTimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		if vars[0] == 2 {
			<-release
		}
		return sumEvaluator()(ctx, vars)
	})
	config := testConfig()
	config.EvaluationTimeout = 20 * time.Millisecond
	n := newTestNSGAII(t, config, eval)

	kept, _, err := n.evaluatePopulation(context.Background(), 0, 1, unevaluated([]float64{1}, []float64{2}))
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestEvaluatePopulationDimensionMismatchIsFatal(t *testing.T) {
	calls := 0
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		calls++
		return sumEvaluator()(ctx, vars)
	})
	n := newTestNSGAII(t, testConfig(), eval)

	_, _, err := n.evaluatePopulation(context.Background(), 2, 3, unevaluated([]float64{1, 1}, []float64{1, 1, 1}))

	var runErr *framework.RunError
	require.ErrorAs(t, err, &runErr)
	var dimErr *framework.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 1, dimErr.Index)
	assert.Equal(t, 3, dimErr.Got)
	assert.Equal(t, 1, calls)
}

// growingCrossover appends a gene, breaking the latent dimensionality.
type growingCrossover struct{}

func (growingCrossover) Crossover(_ *rand.Rand, a, b *framework.Individual) {
	a.SetVariables(append(append([]float64(nil), a.Variables()...), 0))
	b.SetVariables(append(append([]float64(nil), b.Variables()...), 0))
}

func TestRunAbortsOnOperatorDimensionBug(t *testing.T) {
	config := testConfig()
	config.CrossoverProbability = 1
	n := newTestNSGAII(t, config, sumEvaluator(), WithOperators(Operators{Crossover: growingCrossover{}}))

	_, err := n.Run(context.Background(), [][]float64{{0, 1}, {1, 0}})
	var dimErr *framework.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	var runErr *framework.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, 1, runErr.Generation)
}

func TestRunSurvivesPartialFailures(t *testing.T) {
	// Individuals whose first gene drifts above 1 cannot be scored.
	eval := framework.EvaluatorFunc(func(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		if vars[0] > 1 {
			return nil, errors.New("out of distribution")
		}
		return framework.ObjectiveSpacePoint{vars[0], vars[1]}, nil
	})
	config := testConfig()
	config.MutationSigma = 0.5
	config.MutationProbability = 1
	n := newTestNSGAII(t, config, eval)

	res, err := n.Run(context.Background(), [][]float64{{0.5, 0.5}, {0.2, 0.8}})
	require.NoError(t, err)
	for _, ind := range res.Population {
		assert.True(t, ind.Valid())
		assert.LessOrEqual(t, ind.Variables()[0], 1.0)
	}
}
