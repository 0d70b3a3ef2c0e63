package multiobjective

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2/ktesting"
	testingclock "k8s.io/utils/clock/testing"
	"k8s.io/utils/ptr"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
	"github.com/facegen/latentsearch/pkg/multiobjective/results"
)

var fixedTime = time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)

func writeSeeds(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "latents.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func smallArgs(dir, seedsPath string) *v1alpha1.LatentSearchArgs {
	return &v1alpha1.LatentSearchArgs{
		SeedsPath:         seedsPath,
		PopulationSize:    ptr.To[int32](16),
		MaxGenerations:    ptr.To[int32](8),
		MutationSigma:     ptr.To(0.2),
		PerturbationScale: ptr.To(0.05),
		Workers:           ptr.To[int32](4),
		OutputDir:         filepath.Join(dir, "out"),
	}
}

func TestLatentSearchEndToEnd(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	dir := t.TempDir()
	args := smallArgs(dir, writeSeeds(t, dir, "0.1,0.2,0.3,0.4", "0.5,0.5,0.5,0.5", "-0.3,0.1,0,0.2"))
	args.StorePath = filepath.Join(dir, "runs.db")
	args.Previews = ptr.To(true)

	search, err := New(ctx, args, WithClock(testingclock.NewFakePassiveClock(fixedTime)))
	require.NoError(t, err)
	assert.Equal(t, "run-20241105-093000", args.RunName)
	assert.Len(t, search.Seeds(), 3)

	res, err := search.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Population, 16)
	assert.Equal(t, 9, res.Logbook.Len())

	out, err := search.Publish(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, res.ParetoFront.Len(), len(out.ParetoFront))
	assert.True(t, out.GeneratedAt.Time.Equal(fixedTime))

	runDir := filepath.Join(args.OutputDir, args.RunName)
	for _, name := range []string{"result.yaml", "pareto_front.html", "logbook.html"} {
		assert.FileExists(t, filepath.Join(runDir, name))
	}
	previews, err := filepath.Glob(filepath.Join(runDir, "pareto", "pareto_*.png"))
	require.NoError(t, err)
	assert.Len(t, previews, res.ParetoFront.Len())

	loaded, err := results.ReadFile(filepath.Join(runDir, "result.yaml"))
	require.NoError(t, err)
	assert.Equal(t, out.TotalEvaluations, loaded.TotalEvaluations)

	store := results.NewSQLiteStore(args.StorePath)
	require.NoError(t, store.Init(ctx))
	defer store.Close()
	stored, ok, err := store.GetRun(ctx, args.RunName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(out.ParetoFront), len(stored.ParetoFront))

	// Every archived latent keeps the seed dimensionality.
	for _, sol := range out.ParetoFront {
		assert.Len(t, sol.Latent, 4)
	}
}

func TestLatentSearchZDT1WithReferenceFront(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	dir := t.TempDir()
	args := smallArgs(dir, writeSeeds(t, dir, "0.2,0.1,0.1", "0.8,0.1,0.1"))
	args.Evaluator = ZDT1Evaluator
	args.OutputFormat = "json"
	args.RunName = "zdt1"

	search, err := New(ctx, args)
	require.NoError(t, err)
	res, err := search.Run(ctx)
	require.NoError(t, err)
	_, err = search.Publish(ctx, res)
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(args.OutputDir, "zdt1", "pareto_front.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "True Pareto Front")
	assert.FileExists(t, filepath.Join(args.OutputDir, "zdt1", "result.json"))
}

func TestLatentSearchCustomEvaluator(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	dir := t.TempDir()
	args := smallArgs(dir, writeSeeds(t, dir, "1,0", "0,1"))
	args.Plots = ptr.To(false)

	var calls int
	eval := framework.EvaluatorFunc(func(_ context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
		calls++
		return framework.ObjectiveSpacePoint{vars[0], vars[1]}, nil
	})
	// Workers above one would race on calls.
	args.Workers = ptr.To[int32](1)

	search, err := New(ctx, args, WithEvaluator(eval))
	require.NoError(t, err)
	res, err := search.Run(ctx)
	require.NoError(t, err)

	last := res.Logbook.Records()[res.Logbook.Len()-1]
	// Cached clones never reach the evaluator twice.
	assert.LessOrEqual(t, calls, last.TotalEvals)
	assert.Positive(t, calls)
}

func TestNewRejectsInvalidArgs(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	args := &v1alpha1.LatentSearchArgs{
		PopulationSize: ptr.To[int32](1),
		Evaluator:      "stylegan",
	}

	_, err := New(ctx, args)
	var cfgErr *framework.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	var fields []string
	for _, e := range cfgErr.Errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"args.seedsPath", "args.evaluator", "nsga2.populationSize"}, fields)
}

func TestNewReportsSeedErrors(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	dir := t.TempDir()

	_, err := New(ctx, smallArgs(dir, filepath.Join(dir, "missing.csv")))
	var seedErr *framework.SeedLoadError
	require.ErrorAs(t, err, &seedErr)

	_, err = New(ctx, smallArgs(dir, writeSeeds(t, dir, "1,2", "3,oops")))
	require.ErrorAs(t, err, &seedErr)
	assert.Equal(t, 2, seedErr.Line)
}

func TestRunDimensionMismatch(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	dir := t.TempDir()
	args := smallArgs(dir, writeSeeds(t, dir, "1,2,3"))
	args.Dimension = 4

	search, err := New(ctx, args)
	require.NoError(t, err)
	_, err = search.Run(ctx)
	var dimErr *framework.DimensionMismatchError
	assert.True(t, errors.As(err, &dimErr))
}

func TestEvaluatorByName(t *testing.T) {
	seeds := [][]float64{{0.1, 0.2}}
	for _, name := range []string{SurrogateEvaluator, ZDT1Evaluator} {
		e, err := EvaluatorByName(name, seeds)
		require.NoError(t, err)
		f, err := e.Evaluate(context.Background(), seeds[0])
		require.NoError(t, err)
		assert.NoError(t, framework.CheckObjectives(f))
	}

	_, err := EvaluatorByName("stylegan", seeds)
	assert.Error(t, err)
	_, err = EvaluatorByName(SurrogateEvaluator, nil)
	assert.Error(t, err)
}
