package framework

import "math"

// NumObjectives is the number of objectives every evaluator must return:
// identity preservation (f1) and gender shift (f2). Both are maximized.
const NumObjectives = 2

// Unranked marks an individual that has not been through non-dominated sorting
// since its population membership last changed.
const Unranked = -1

// ObjectiveSpacePoint represents an N-dimensional point in the objective space.
// As an example, for a problem with 2 objective functions f1 and f2, a point
// in the objective space could be [f1(x'), f2(x')], for the input of x'.
type ObjectiveSpacePoint []float64

// Individual is a candidate latent vector with a lazily computed fitness.
//
// The variables are only reachable through methods so that every change to the
// vector clears the cached fitness.
type Individual struct {
	variables []float64
	fitness   ObjectiveSpacePoint

	// Rank is the non-domination level assigned by NonDominatedSort.
	Rank int
	// Distance is the crowding distance inside the individual's front.
	Distance float64
}

// NewIndividual takes ownership of vars and returns an unevaluated individual.
func NewIndividual(vars []float64) *Individual {
	return &Individual{
		variables: vars,
		Rank:      Unranked,
	}
}

// Variables returns the gene vector. Callers must not modify it; use SetGene
// or SetVariables instead.
func (ind *Individual) Variables() []float64 {
	return ind.variables
}

// Len is the dimensionality of the gene vector.
func (ind *Individual) Len() int {
	return len(ind.variables)
}

// SetGene overwrites gene i and invalidates the cached fitness.
func (ind *Individual) SetGene(i int, v float64) {
	ind.variables[i] = v
	ind.fitness = nil
}

// SetVariables replaces the whole vector and invalidates the cached fitness.
func (ind *Individual) SetVariables(vars []float64) {
	ind.variables = vars
	ind.fitness = nil
}

// Fitness returns the cached objective values and whether they are set.
func (ind *Individual) Fitness() (ObjectiveSpacePoint, bool) {
	return ind.fitness, ind.fitness != nil
}

// Valid reports whether the fitness is set.
func (ind *Individual) Valid() bool {
	return ind.fitness != nil
}

// SetFitness stores a copy of values as the cached fitness.
func (ind *Individual) SetFitness(values ObjectiveSpacePoint) {
	ind.fitness = append(ObjectiveSpacePoint(nil), values...)
}

// InvalidateFitness clears the cached fitness.
func (ind *Individual) InvalidateFitness() {
	ind.fitness = nil
}

// ResetSelection clears the transient rank and crowding distance.
func (ind *Individual) ResetSelection() {
	ind.Rank = Unranked
	ind.Distance = 0
}

// Clone deep-copies the vector and fitness. Selection state is not carried
// over because the clone belongs to a different population.
func (ind *Individual) Clone() *Individual {
	c := &Individual{
		variables: append([]float64(nil), ind.variables...),
		Rank:      Unranked,
	}
	if ind.fitness != nil {
		c.fitness = append(ObjectiveSpacePoint(nil), ind.fitness...)
	}
	return c
}

// SameVariables reports whether both individuals carry identical vectors.
func (ind *Individual) SameVariables(other *Individual) bool {
	if len(ind.variables) != len(other.variables) {
		return false
	}
	for i, v := range ind.variables {
		if math.Float64bits(v) != math.Float64bits(other.variables[i]) {
			return false
		}
	}
	return true
}

// Population is an ordered collection of individuals.
type Population []*Individual

// Evaluated returns the members whose fitness is set.
func (p Population) Evaluated() Population {
	out := make(Population, 0, len(p))
	for _, ind := range p {
		if ind.Valid() {
			out = append(out, ind)
		}
	}
	return out
}

// Invalid returns the members whose fitness is unset.
func (p Population) Invalid() Population {
	var out Population
	for _, ind := range p {
		if !ind.Valid() {
			out = append(out, ind)
		}
	}
	return out
}

// Points returns the objective values of all evaluated members.
func (p Population) Points() []ObjectiveSpacePoint {
	out := make([]ObjectiveSpacePoint, 0, len(p))
	for _, ind := range p {
		if f, ok := ind.Fitness(); ok {
			out = append(out, f)
		}
	}
	return out
}
