package benchmarks

import (
	"context"
	"math"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

const (
	Name = "ZDT1"
)

// ZDT1 is a benchmark function used to test the correctness
// of multi-objective algorithms. For more details, check the article below:
// https://datacrayon.com/practical-evolutionary-algorithms/synthetic-objective-functions-and-zdt1/
//
// The search maximizes, so both objectives are negated. Variables outside
// [0, 1] are clamped before scoring.
type ZDT1 struct {
	numVars int
}

func NewZDT1(numVars int) *ZDT1 {
	return &ZDT1{
		numVars,
	}
}

func (p *ZDT1) Name() string {
	return Name
}

func (p *ZDT1) Dimension() int {
	return p.numVars
}

func (p *ZDT1) Evaluate(_ context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
	if err := framework.CheckDimension(vars, p.numVars, -1); err != nil {
		return nil, err
	}
	x := make([]float64, len(vars))
	for i, v := range vars {
		x[i] = math.Max(0, math.Min(1, v))
	}
	return framework.ObjectiveSpacePoint{-p.f1(x), -p.f2(x)}, nil
}

// F1 is the first ZDT1 benchmark objective
func (p *ZDT1) f1(x []float64) float64 {
	return x[0]
}

// F2 is the second ZDT1 benchmark objective
func (p *ZDT1) f2(x []float64) float64 {
	g := 1.0
	if len(x) > 1 {
		for i := 1; i < len(x); i++ {
			g += 9.0 * x[i] / float64(len(x)-1)
		}
	}
	return g * (1.0 - math.Sqrt(x[0]/g))
}

// Seeds returns n points spread over the unit cube's diagonal, a convenient
// deterministic seed set.
func (p *ZDT1) Seeds(n int) [][]float64 {
	seeds := make([][]float64, n)
	for i := range seeds {
		v := 0.5
		if n > 1 {
			v = float64(i) / float64(n-1)
		}
		seeds[i] = make([]float64, p.numVars)
		for j := range seeds[i] {
			seeds[i][j] = v
		}
	}
	return seeds
}

// TrueParetoFront generates numPoints points on the true Pareto front for ZDT1,
// in the negated (maximization) objective space.
func (p *ZDT1) TrueParetoFront(numPoints int) []framework.ObjectiveSpacePoint {
	points := make([]framework.ObjectiveSpacePoint, numPoints)
	for i := 0; i < numPoints; i++ {
		x := 0.0
		if numPoints > 1 {
			x = float64(i) / float64(numPoints-1)
		}
		points[i] = framework.ObjectiveSpacePoint{
			-x, -(1.0 - math.Sqrt(x)),
		}
	}
	return points
}
