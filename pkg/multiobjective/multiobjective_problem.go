package multiobjective

import (
	"fmt"

	"github.com/facegen/latentsearch/pkg/multiobjective/benchmarks"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

const (
	SurrogateEvaluator = "surrogate"
	ZDT1Evaluator      = "zdt1"
)

// EvaluatorByName builds one of the built-in evaluators for the given seeds.
// The surrogate anchors identity on the first seed.
func EvaluatorByName(name string, seeds [][]float64) (framework.Evaluator, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("evaluator %q needs at least one seed", name)
	}
	switch name {
	case SurrogateEvaluator:
		return benchmarks.NewIdentityGenderSurrogate(seeds[0])
	case ZDT1Evaluator:
		return benchmarks.NewZDT1(len(seeds[0])), nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}

// referenceFront is implemented by benchmark problems with a known optimum.
type referenceFront interface {
	TrueParetoFront(numPoints int) []framework.ObjectiveSpacePoint
}
