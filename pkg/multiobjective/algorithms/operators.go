package algorithms

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// Crossover recombines two offspring in place. Implementations must
// invalidate the fitness of every individual whose vector they change.
type Crossover interface {
	Crossover(rng *rand.Rand, a, b *framework.Individual)
}

// Mutator perturbs an offspring in place and always invalidates its fitness.
type Mutator interface {
	Mutate(rng *rand.Rand, ind *framework.Individual)
}

// Operators is the variation strategy used by the run loop.
type Operators struct {
	Crossover Crossover
	Mutator   Mutator
}

// OperatorsFor returns blend crossover and Gaussian mutation configured from c.
func OperatorsFor(c NSGA2Config) Operators {
	return Operators{
		Crossover: BlendCrossover{Alpha: c.BlendAlpha},
		Mutator: GaussianMutation{
			Mu:    c.MutationMu,
			Sigma: c.MutationSigma,
			IndPb: c.GeneMutationProbability,
		},
	}
}

// BlendCrossover draws, per component, gamma uniformly from [-Alpha, 1+Alpha]
// and mixes the parents as (1-gamma)*a + gamma*b and gamma*a + (1-gamma)*b.
// Both children therefore fall in the parents' interval widened by Alpha times
// its length on each side.
type BlendCrossover struct {
	Alpha float64
}

func (c BlendCrossover) Crossover(rng *rand.Rand, a, b *framework.Individual) {
	va, vb := a.Variables(), b.Variables()
	n := len(va)
	if len(vb) < n {
		n = len(vb)
	}
	gamma := distuv.Uniform{Min: -c.Alpha, Max: 1 + c.Alpha, Src: rng}

	childA := append([]float64(nil), va...)
	childB := append([]float64(nil), vb...)
	for i := 0; i < n; i++ {
		g := gamma.Rand()
		childA[i] = (1-g)*va[i] + g*vb[i]
		childB[i] = g*va[i] + (1-g)*vb[i]
	}
	a.SetVariables(childA)
	b.SetVariables(childB)
}

// GaussianMutation adds Normal(Mu, Sigma) noise to each component with
// probability IndPb.
type GaussianMutation struct {
	Mu    float64
	Sigma float64
	IndPb float64
}

func (m GaussianMutation) Mutate(rng *rand.Rand, ind *framework.Individual) {
	noise := distuv.Normal{Mu: m.Mu, Sigma: m.Sigma, Src: rng}
	vars := ind.Variables()
	for i := range vars {
		if rng.Float64() < m.IndPb {
			ind.SetGene(i, vars[i]+noise.Rand())
		}
	}
	// Even a no-op draw counts as a mutation.
	ind.InvalidateFitness()
}
