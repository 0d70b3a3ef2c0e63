package algorithms

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/rand"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

const (
	Name = "NSGA-II"
)

// NSGA2Config holds configuration parameters for NSGA-II
type NSGA2Config struct {
	// PopulationSize is MU, the number of survivors per generation.
	PopulationSize int
	// MaxGenerations is N_GEN. Zero runs only the initial evaluation.
	MaxGenerations int
	// CrossoverProbability is the chance that a mating pair is blended.
	CrossoverProbability float64
	// MutationProbability is the chance that an offspring is mutated at all.
	MutationProbability float64
	// GeneMutationProbability is indpb, the per-component mutation chance.
	GeneMutationProbability float64
	MutationMu              float64
	MutationSigma           float64
	BlendAlpha              float64
	// PerturbationScale is the stddev of the noise added to seed vectors.
	PerturbationScale float64
	Seed              uint64

	// Dimension is the latent dimensionality. Zero takes it from the first seed.
	Dimension int
	// Workers bounds concurrent evaluations. Zero or one evaluates sequentially.
	Workers int
	// EvaluationTimeout fails a single evaluation attempt. Zero disables it.
	EvaluationTimeout time.Duration
	// RetryBackoff is the pause before the single retry of a failed evaluation.
	RetryBackoff time.Duration
}

// DefaultNSGA2Config returns the parameters the latent search was tuned with.
func DefaultNSGA2Config() NSGA2Config {
	return NSGA2Config{
		PopulationSize:          100,
		MaxGenerations:          250,
		CrossoverProbability:    0.9,
		MutationProbability:     0.1,
		GeneMutationProbability: 0.1,
		MutationMu:              0,
		MutationSigma:           1,
		BlendAlpha:              0.2,
		PerturbationScale:       0.1,
		Seed:                    42,
	}
}

// Validate returns a *framework.ConfigurationError listing every invalid field.
func (c NSGA2Config) Validate() error {
	return framework.NewConfigurationError(c.validate(field.NewPath("nsga2")))
}

func (c NSGA2Config) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if c.PopulationSize < 2 {
		errs = append(errs, field.Invalid(path.Child("populationSize"), c.PopulationSize, "must be at least 2"))
	}
	if c.MaxGenerations < 0 {
		errs = append(errs, field.Invalid(path.Child("maxGenerations"), c.MaxGenerations, "must not be negative"))
	}
	for name, p := range map[string]float64{
		"crossoverProbability":    c.CrossoverProbability,
		"mutationProbability":     c.MutationProbability,
		"geneMutationProbability": c.GeneMutationProbability,
	} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			errs = append(errs, field.Invalid(path.Child(name), p, "must be in [0, 1]"))
		}
	}
	if math.IsNaN(c.MutationSigma) || c.MutationSigma < 0 {
		errs = append(errs, field.Invalid(path.Child("mutationSigma"), c.MutationSigma, "must not be negative"))
	}
	if math.IsNaN(c.MutationMu) || math.IsInf(c.MutationMu, 0) {
		errs = append(errs, field.Invalid(path.Child("mutationMu"), c.MutationMu, "must be finite"))
	}
	if math.IsNaN(c.BlendAlpha) || c.BlendAlpha < 0 {
		errs = append(errs, field.Invalid(path.Child("blendAlpha"), c.BlendAlpha, "must not be negative"))
	}
	if math.IsNaN(c.PerturbationScale) || c.PerturbationScale < 0 {
		errs = append(errs, field.Invalid(path.Child("perturbationScale"), c.PerturbationScale, "must not be negative"))
	}
	if c.Dimension < 0 {
		errs = append(errs, field.Invalid(path.Child("dimension"), c.Dimension, "must not be negative"))
	}
	if c.Workers < 0 {
		errs = append(errs, field.Invalid(path.Child("workers"), c.Workers, "must not be negative"))
	}
	if c.EvaluationTimeout < 0 {
		errs = append(errs, field.Invalid(path.Child("evaluationTimeout"), c.EvaluationTimeout.String(), "must not be negative"))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, field.Invalid(path.Child("retryBackoff"), c.RetryBackoff.String(), "must not be negative"))
	}
	// Map iteration above is unordered.
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// Result is the outcome of a run.
type Result struct {
	Population  framework.Population
	Logbook     *Logbook
	ParetoFront *framework.ParetoFront
}

// NSGAII represents the NSGA-II algorithm configuration
type NSGAII struct {
	config    NSGA2Config
	evaluator framework.Evaluator
	operators Operators
	clock     clock.PassiveClock
}

// Option customizes an NSGAII instance.
type Option func(*NSGAII)

// WithOperators replaces the blend crossover and Gaussian mutation derived
// from the config.
func WithOperators(ops Operators) Option {
	return func(n *NSGAII) {
		if ops.Crossover != nil {
			n.operators.Crossover = ops.Crossover
		}
		if ops.Mutator != nil {
			n.operators.Mutator = ops.Mutator
		}
	}
}

// WithClock sets the clock used to time generations.
func WithClock(c clock.PassiveClock) Option {
	return func(n *NSGAII) {
		n.clock = c
	}
}

// NewNSGAII creates a new instance of NSGA-II with given parameters
func NewNSGAII(config NSGA2Config, evaluator framework.Evaluator, opts ...Option) (*NSGAII, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, framework.NewConfigurationError(field.ErrorList{
			field.Required(field.NewPath("evaluator"), "an evaluator is required"),
		})
	}
	n := &NSGAII{
		config:    config,
		evaluator: evaluator,
		operators: OperatorsFor(config),
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// CrowdingDistance calculates crowding distance for individuals in a front.
// The slice is reordered.
func CrowdingDistance(front []*framework.Individual) {
	if len(front) <= 2 {
		for i := range front {
			front[i].Distance = math.Inf(1)
		}
		return
	}

	for i := range front {
		front[i].Distance = 0
	}

	for m := 0; m < framework.NumObjectives; m++ {
		// Sort by each objective
		sort.SliceStable(front, func(i, j int) bool {
			return objective(front[i], m) < objective(front[j], m)
		})

		// Set boundary points to infinity
		front[0].Distance = math.Inf(1)
		front[len(front)-1].Distance = math.Inf(1)

		objectiveRange := objective(front[len(front)-1], m) - objective(front[0], m)
		if objectiveRange == 0 {
			continue
		}

		// Calculate distance for intermediate points
		for i := 1; i < len(front)-1; i++ {
			front[i].Distance += (objective(front[i+1], m) - objective(front[i-1], m)) / objectiveRange
		}
	}
}

func objective(ind *framework.Individual, m int) float64 {
	f, _ := ind.Fitness()
	return f[m]
}

// SelectParents runs n crowded binary tournaments over the population and
// returns the winners. Each tournament compares two distinct members.
func SelectParents(rng *rand.Rand, population framework.Population, n int) framework.Population {
	if len(population) == 0 {
		return nil
	}
	selected := make(framework.Population, n)
	for k := 0; k < n; k++ {
		if len(population) == 1 {
			selected[k] = population[0]
			continue
		}
		i := rng.Intn(len(population))
		j := rng.Intn(len(population) - 1)
		if j >= i {
			j++
		}
		selected[k] = crowdedTournament(rng, population[i], population[j])
	}
	return selected
}

// crowdedTournament prefers the lower rank, then the larger crowding distance,
// then flips a coin.
func crowdedTournament(rng *rand.Rand, a, b *framework.Individual) *framework.Individual {
	switch {
	case a.Rank < b.Rank:
		return a
	case b.Rank < a.Rank:
		return b
	case a.Distance > b.Distance:
		return a
	case b.Distance > a.Distance:
		return b
	}
	if rng.Float64() < 0.5 {
		return a
	}
	return b
}

// SelectNextGeneration reduces the pool to mu survivors: whole fronts in rank
// order, then the most isolated members of the first front that does not fit.
// A pool smaller than mu is returned whole.
func SelectNextGeneration(pool framework.Population, mu int) (framework.Population, error) {
	for _, ind := range pool {
		ind.ResetSelection()
	}
	fronts, err := framework.NonDominatedSort(pool)
	if err != nil {
		return nil, err
	}

	population := make(framework.Population, 0, mu)
	for _, front := range fronts {
		if len(population) >= mu {
			break
		}
		CrowdingDistance(front)
		if len(population)+len(front) <= mu {
			population = append(population, front...)
			continue
		}
		// If needed, add remaining individuals based on crowding distance
		sort.SliceStable(front, func(i, j int) bool {
			return front[i].Distance > front[j].Distance
		})
		population = append(population, front[:mu-len(population)]...)
	}
	return population, nil
}

// Run executes the NSGA-II algorithm starting from the given seed vectors.
// Runs share no state, so one NSGAII may run concurrently.
func (n *NSGAII) Run(ctx context.Context, seeds [][]float64) (*Result, error) {
	logger := klog.FromContext(ctx)
	startTime := n.clock.Now()
	// Every run replays the same random stream for a given seed.
	rng := rand.New(rand.NewSource(n.config.Seed))

	dim := 0
	if len(seeds) > 0 {
		dim = n.config.Dimension
		if dim == 0 {
			dim = len(seeds[0])
		}
		for i, s := range seeds {
			if err := framework.CheckDimension(s, dim, i); err != nil {
				return nil, err
			}
		}
	}

	population, err := framework.InitializePopulation(seeds, n.config.PerturbationScale, n.config.PopulationSize, rng)
	if err != nil {
		return nil, err
	}

	logger.V(2).Info("Starting evolution", "algorithm", Name,
		"populationSize", n.config.PopulationSize,
		"generations", n.config.MaxGenerations,
		"dimension", dim,
		"crossoverProbability", n.config.CrossoverProbability,
		"mutationProbability", n.config.MutationProbability,
		"workers", n.config.Workers)

	population, evals, err := n.evaluatePopulation(ctx, dim, 0, population)
	if err != nil {
		return nil, err
	}
	totalEvals := evals

	// Seed ranks and crowding distances for the first tournament round.
	population, err = SelectNextGeneration(population, len(population))
	if err != nil {
		return nil, &framework.RunError{Generation: 0, Err: err}
	}

	logbook := NewLogbook()
	archive := framework.NewParetoFront()
	if _, err := archive.Update(population); err != nil {
		return nil, &framework.RunError{Generation: 0, Err: err}
	}
	logbook.Record(0, evals, totalEvals, population)

	for gen := 1; gen <= n.config.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, &framework.RunError{Generation: gen, Err: err}
		}
		genStart := n.clock.Now()

		parents := SelectParents(rng, population, n.config.PopulationSize)
		offspring := n.vary(rng, parents)

		offspring, evals, err = n.evaluatePopulation(ctx, dim, gen, offspring)
		if err != nil {
			return nil, err
		}
		totalEvals += evals

		combined := make(framework.Population, 0, len(population)+len(offspring))
		combined = append(combined, population...)
		combined = append(combined, offspring...)
		population, err = SelectNextGeneration(combined, n.config.PopulationSize)
		if err != nil {
			return nil, &framework.RunError{Generation: gen, Err: err}
		}

		rec := logbook.Record(gen, evals, totalEvals, population)
		added, err := archive.Update(population)
		if err != nil {
			return nil, &framework.RunError{Generation: gen, Err: err}
		}

		logger.V(4).Info("Generation complete", "generation", gen,
			"evaluations", evals,
			"archiveSize", archive.Len(),
			"archiveAdded", added,
			"avg", rec.Avg,
			"max", rec.Max,
			"duration", n.clock.Since(genStart))
		if gen%10 == 0 || gen == n.config.MaxGenerations {
			logger.V(2).Info(fmt.Sprintf("Generation %d/%d: %s evaluations so far, archive holds %d",
				gen, n.config.MaxGenerations, humanize.Comma(int64(totalEvals)), archive.Len()))
		}
	}

	elapsed := n.clock.Since(startTime)
	logger.V(2).Info("Evolution complete", "algorithm", Name,
		"evaluations", humanize.Comma(int64(totalEvals)),
		"archiveSize", archive.Len(),
		"elapsed", elapsed)

	return &Result{
		Population:  population,
		Logbook:     logbook,
		ParetoFront: archive,
	}, nil
}

// vary clones the mating pool, shuffles it, blends consecutive pairs and
// mutates individual offspring. Clones untouched by both operators keep their
// parent's fitness.
func (n *NSGAII) vary(rng *rand.Rand, parents framework.Population) framework.Population {
	offspring := make(framework.Population, len(parents))
	for i, p := range parents {
		offspring[i] = p.Clone()
	}
	rng.Shuffle(len(offspring), func(i, j int) {
		offspring[i], offspring[j] = offspring[j], offspring[i]
	})

	for i := 0; i+1 < len(offspring); i += 2 {
		if rng.Float64() < n.config.CrossoverProbability {
			n.operators.Crossover.Crossover(rng, offspring[i], offspring[i+1])
		}
	}
	for _, child := range offspring {
		if rng.Float64() < n.config.MutationProbability {
			n.operators.Mutator.Mutate(rng, child)
		}
	}
	return offspring
}
