// Package multiobjective wires seed loading, evaluation, the NSGA-II search
// and result publishing into a single latent search.
package multiobjective

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
	"github.com/facegen/latentsearch/pkg/multiobjective/algorithms"
	"github.com/facegen/latentsearch/pkg/multiobjective/evaluator"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
	"github.com/facegen/latentsearch/pkg/multiobjective/results"
	"github.com/facegen/latentsearch/pkg/multiobjective/seeds"
	"github.com/facegen/latentsearch/pkg/multiobjective/util"
)

const (
	Name = "LatentSearch"
)

// LatentSearch is one configured search over the latent space.
type LatentSearch struct {
	args      *v1alpha1.LatentSearchArgs
	seeds     [][]float64
	evaluator framework.Evaluator
	cache     *evaluator.Cache
	producer  framework.ImageProducer
	nsga      *algorithms.NSGAII
	clock     clock.PassiveClock
}

// Option customizes a LatentSearch.
type Option func(*LatentSearch)

// WithEvaluator replaces the built-in evaluator named in the args.
func WithEvaluator(e framework.Evaluator) Option {
	return func(s *LatentSearch) {
		s.evaluator = e
	}
}

// WithImageProducer replaces the latent preview used for materialization.
func WithImageProducer(p framework.ImageProducer) Option {
	return func(s *LatentSearch) {
		s.producer = p
	}
}

// WithClock sets the clock for run names and timestamps.
func WithClock(c clock.PassiveClock) Option {
	return func(s *LatentSearch) {
		s.clock = c
	}
}

// New validates args, loads the seeds and prepares the search. args are
// defaulted in place.
func New(ctx context.Context, args *v1alpha1.LatentSearchArgs, opts ...Option) (*LatentSearch, error) {
	logger := klog.FromContext(ctx)
	logger.V(5).Info("creating instance of LatentSearch")

	v1alpha1.SetDefaults_LatentSearchArgs(args)
	config := NSGA2ConfigFromArgs(args)
	errs := v1alpha1.ValidateLatentSearchArgs(field.NewPath("args"), args)
	var cfgErr *framework.ConfigurationError
	if errors.As(config.Validate(), &cfgErr) {
		errs = append(errs, cfgErr.Errs...)
	}
	if err := framework.NewConfigurationError(errs); err != nil {
		return nil, err
	}

	s := &LatentSearch{
		args:     args,
		producer: util.LatentPreview{},
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.seeds, err = seeds.LoadCSV(args.SeedsPath)
	if err != nil {
		return nil, err
	}
	logger.V(2).Info("Loaded seeds", "path", args.SeedsPath, "count", len(s.seeds), "dimension", len(s.seeds[0]))

	if s.evaluator == nil {
		s.evaluator, err = EvaluatorByName(args.Evaluator, s.seeds)
		if err != nil {
			return nil, err
		}
	}
	if *args.CacheEvaluations {
		s.cache = evaluator.NewCache(s.evaluator, logger)
	}

	s.nsga, err = algorithms.NewNSGAII(config, s.searchEvaluator(), algorithms.WithClock(s.clock))
	if err != nil {
		return nil, err
	}
	if args.RunName == "" {
		args.RunName = fmt.Sprintf("run-%s", s.clock.Now().UTC().Format("20060102-150405"))
	}
	return s, nil
}

func (s *LatentSearch) Name() string {
	return Name
}

// Seeds returns the loaded seed vectors.
func (s *LatentSearch) Seeds() [][]float64 {
	return s.seeds
}

func (s *LatentSearch) searchEvaluator() framework.Evaluator {
	if s.cache != nil {
		return s.cache
	}
	return s.evaluator
}

// Run executes the search.
func (s *LatentSearch) Run(ctx context.Context) (*algorithms.Result, error) {
	logger := klog.FromContext(ctx).WithValues("run", s.args.RunName)
	ctx = klog.NewContext(ctx, logger)

	res, err := s.nsga.Run(ctx, s.seeds)
	if s.cache != nil {
		s.cache.LogStats()
	}
	if err != nil {
		return nil, err
	}
	logger.V(2).Info("Search finished", "population", len(res.Population), "paretoFront", res.ParetoFront.Len())
	return res, nil
}

// Publish writes the result document into the output directory and, as
// configured, stores the run, renders charts and materializes the Pareto
// front.
func (s *LatentSearch) Publish(ctx context.Context, res *algorithms.Result) (*v1alpha1.RunResult, error) {
	logger := klog.FromContext(ctx)
	out := results.NewRunResult(s.args.RunName, res, s.clock.Now())
	dir := filepath.Join(s.args.OutputDir, s.args.RunName)

	path := filepath.Join(dir, "result."+s.args.OutputFormat)
	if err := results.WriteFile(path, s.args.OutputFormat, out); err != nil {
		return nil, fmt.Errorf("writing result: %w", err)
	}
	logger.V(2).Info("Wrote result", "path", path)

	if s.args.StorePath != "" {
		if err := storeRun(ctx, s.args.StorePath, out); err != nil {
			return nil, fmt.Errorf("storing run: %w", err)
		}
		logger.V(2).Info("Stored run", "store", s.args.StorePath)
	}

	if *s.args.Plots {
		if err := s.plot(dir, res); err != nil {
			return nil, fmt.Errorf("plotting: %w", err)
		}
	}

	if *s.args.Previews {
		if _, err := results.Materialize(ctx, s.producer, res.ParetoFront.Items(), filepath.Join(dir, "pareto")); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *LatentSearch) plot(dir string, res *algorithms.Result) error {
	archive := make([]framework.ObjectiveSpacePoint, 0, res.ParetoFront.Len())
	for _, ind := range res.ParetoFront.Items() {
		f, _ := ind.Fitness()
		archive = append(archive, f)
	}
	series := []util.ScatterSeries{
		{Name: "Final Population", Points: res.Population.Points(), Symbol: "circle"},
		{Name: fmt.Sprintf("%s Pareto Front", algorithms.Name), Points: archive, Symbol: "triangle"},
	}
	if ref, ok := s.evaluator.(referenceFront); ok {
		series = append(series, util.ScatterSeries{Name: "True Pareto Front", Points: ref.TrueParetoFront(100), Symbol: "diamond"})
	}

	title := fmt.Sprintf("%s results for %s", algorithms.Name, s.args.RunName)
	if err := util.PlotParetoFront(filepath.Join(dir, "pareto_front.html"), title, series...); err != nil {
		return err
	}
	return util.PlotLogbook(filepath.Join(dir, "logbook.html"), res.Logbook)
}

func storeRun(ctx context.Context, path string, out *v1alpha1.RunResult) error {
	store := results.NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, out)
}

// NSGA2ConfigFromArgs converts defaulted args into search parameters.
func NSGA2ConfigFromArgs(args *v1alpha1.LatentSearchArgs) algorithms.NSGA2Config {
	config := algorithms.NSGA2Config{
		PopulationSize:          int(*args.PopulationSize),
		MaxGenerations:          int(*args.MaxGenerations),
		CrossoverProbability:    *args.CrossoverProbability,
		MutationProbability:     *args.MutationProbability,
		GeneMutationProbability: *args.GeneMutationProbability,
		MutationMu:              *args.MutationMu,
		MutationSigma:           *args.MutationSigma,
		BlendAlpha:              *args.BlendAlpha,
		PerturbationScale:       *args.PerturbationScale,
		Seed:                    *args.RandomSeed,
		Dimension:               int(args.Dimension),
		Workers:                 int(*args.Workers),
	}
	if args.EvaluationTimeout != nil {
		config.EvaluationTimeout = args.EvaluationTimeout.Duration
	}
	if args.RetryBackoff != nil {
		config.RetryBackoff = args.RetryBackoff.Duration
	}
	return config
}
