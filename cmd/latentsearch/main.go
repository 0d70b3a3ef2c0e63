package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
	"github.com/facegen/latentsearch/pkg/multiobjective"
	"github.com/facegen/latentsearch/pkg/multiobjective/results"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	klog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runSearch(ctx, args[1:], stdout)
	case "runs":
		return runRuns(ctx, args[1:], stdout)
	case "best":
		return runBest(ctx, args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: latentsearch <run|runs|best> [flags]", msg)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	goflags := flag.NewFlagSet(name, flag.ContinueOnError)
	klog.InitFlags(goflags)
	fs.AddGoFlagSet(goflags)
	return fs
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("run")
	configPath := fs.String("config", "", "LatentSearchArgs YAML file")
	seedsPath := fs.String("seeds", "", "CSV file with one latent vector per row")
	evaluator := fs.String("evaluator", v1alpha1.DefaultEvaluator, "built-in evaluator: surrogate or zdt1")
	runName := fs.String("run-name", "", "name of the run, defaults to a timestamp")
	populationSize := fs.Int32("population-size", v1alpha1.DefaultPopulationSize, "survivors per generation")
	generations := fs.Int32("generations", v1alpha1.DefaultMaxGenerations, "number of generations")
	randomSeed := fs.Uint64("random-seed", v1alpha1.DefaultRandomSeed, "seed of the random stream")
	workers := fs.Int32("workers", v1alpha1.DefaultWorkers, "concurrent evaluations")
	timeout := fs.Duration("evaluation-timeout", 0, "bound on a single evaluation, 0 disables it")
	outputDir := fs.String("output-dir", v1alpha1.DefaultOutputDir, "directory for results, charts and previews")
	format := fs.String("format", v1alpha1.DefaultOutputFormat, "result format: yaml or json")
	storePath := fs.String("store", "", "SQLite database that accumulates runs")
	plots := fs.Bool("plots", true, "render the Pareto front and convergence charts")
	previews := fs.Bool("previews", false, "write one preview image per Pareto solution")
	noCache := fs.Bool("no-cache", false, "disable the evaluation cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	searchArgs := &v1alpha1.LatentSearchArgs{}
	if *configPath != "" {
		loaded, err := v1alpha1.LoadLatentSearchArgs(*configPath)
		if err != nil {
			return err
		}
		searchArgs = loaded
	}

	// Flags given on the command line override the file.
	overrides := map[string]func(){
		"seeds":              func() { searchArgs.SeedsPath = *seedsPath },
		"evaluator":          func() { searchArgs.Evaluator = *evaluator },
		"run-name":           func() { searchArgs.RunName = *runName },
		"population-size":    func() { searchArgs.PopulationSize = ptr.To(*populationSize) },
		"generations":        func() { searchArgs.MaxGenerations = ptr.To(*generations) },
		"random-seed":        func() { searchArgs.RandomSeed = ptr.To(*randomSeed) },
		"workers":            func() { searchArgs.Workers = ptr.To(*workers) },
		"evaluation-timeout": func() { searchArgs.EvaluationTimeout = &metav1.Duration{Duration: *timeout} },
		"output-dir":         func() { searchArgs.OutputDir = *outputDir },
		"format":             func() { searchArgs.OutputFormat = *format },
		"store":              func() { searchArgs.StorePath = *storePath },
		"plots":              func() { searchArgs.Plots = ptr.To(*plots) },
		"previews":           func() { searchArgs.Previews = ptr.To(*previews) },
		"no-cache":           func() { searchArgs.CacheEvaluations = ptr.To(!*noCache) },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	logger := klog.FromContext(ctx)
	search, err := multiobjective.New(ctx, searchArgs)
	if err != nil {
		return err
	}
	res, err := search.Run(ctx)
	if err != nil {
		return err
	}
	out, err := search.Publish(ctx, res)
	if err != nil {
		return err
	}
	logger.V(1).Info("Run published", "run", out.RunName)

	fmt.Fprint(stdout, res.Logbook.String())
	fmt.Fprintf(stdout, "\n%s: %s evaluations, %d Pareto solutions, results in %s\n",
		out.RunName, humanize.Comma(int64(out.TotalEvaluations)), len(out.ParetoFront), searchArgs.OutputDir)
	return nil
}

func openStore(ctx context.Context, path string) (*results.SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("--store is required")
	}
	store := results.NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("runs")
	storePath := fs.String("store", "", "SQLite database that accumulates runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALGORITHM\tGENERATED\tEVALUATIONS\tPARETO")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			r.Name, r.Algorithm, humanize.Time(r.GeneratedAt), humanize.Comma(int64(r.TotalEvaluations)), r.ParetoSize)
	}
	return w.Flush()
}

func runBest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("best")
	storePath := fs.String("store", "", "SQLite database that accumulates runs")
	runName := fs.String("run-name", "", "run to inspect")
	objective := fs.String("objective", "gender", "objective to maximize: identity or gender")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runName == "" {
		return errors.New("--run-name is required")
	}

	store, err := openStore(ctx, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	latent, value, err := store.BestByObjective(ctx, *runName, *objective)
	if err != nil {
		return fmt.Errorf("run %s: %w", *runName, err)
	}
	fmt.Fprintf(stdout, "%s=%.4f\n%v\n", *objective, value, latent)
	return nil
}
