package results

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
	"github.com/facegen/latentsearch/pkg/multiobjective/algorithms"
	"github.com/facegen/latentsearch/pkg/multiobjective/benchmarks"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

func runZDT1(t *testing.T) *algorithms.Result {
	t.Helper()
	config := algorithms.DefaultNSGA2Config()
	config.PopulationSize = 12
	config.MaxGenerations = 5
	config.MutationSigma = 0.1
	config.PerturbationScale = 0.05

	zdt1 := benchmarks.NewZDT1(3)
	nsga, err := algorithms.NewNSGAII(config, zdt1)
	require.NoError(t, err)
	res, err := nsga.Run(context.Background(), zdt1.Seeds(4))
	require.NoError(t, err)
	return res
}

func TestNewRunResult(t *testing.T) {
	res := runZDT1(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out := NewRunResult("zdt1-smoke", res, at)

	assert.Equal(t, v1alpha1.RunResultKind, out.Kind)
	assert.Equal(t, algorithms.Name, out.Algorithm)
	assert.Len(t, out.Population, 12)
	assert.Len(t, out.ParetoFront, res.ParetoFront.Len())
	require.Len(t, out.Logbook, 6)
	assert.Equal(t, out.Logbook[5].TotalEvaluations, out.TotalEvaluations)

	boundary := 0
	for _, s := range out.Population {
		require.NotNil(t, s.Rank)
		if s.CrowdingDistance == nil {
			boundary++
		}
	}
	assert.GreaterOrEqual(t, boundary, 2)
	for _, s := range out.ParetoFront {
		assert.Nil(t, s.Rank)
		assert.Len(t, s.Latent, 3)
	}
}

func TestWriteAndReadFile(t *testing.T) {
	out := NewRunResult("roundtrip", runZDT1(t), time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "nested", "result."+format)
			require.NoError(t, WriteFile(path, format, out))

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.True(t, out.GeneratedAt.Equal(got.GeneratedAt))
			if diff := cmp.Diff(out.ParetoFront, got.ParetoFront); diff != "" {
				t.Errorf("pareto front changed (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(out.Logbook, got.Logbook); diff != "" {
				t.Errorf("logbook changed (-want +got):\n%s", diff)
			}
		})
	}

	assert.Error(t, WriteFile(filepath.Join(dir, "result.xml"), "xml", out))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))

	_, _, err := store.GetRun(ctx, "x")
	assert.Error(t, err, "store is not initialized")

	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() {
		_ = store.Close()
	})

	res := runZDT1(t)
	first := NewRunResult("first", res, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	second := NewRunResult("second", res, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))
	// Saving again replaces the run.
	require.NoError(t, store.SaveRun(ctx, first))

	got, ok, err := store.GetRun(ctx, "first")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(first.ParetoFront, got.ParetoFront); diff != "" {
		t.Errorf("pareto front changed (-want +got):\n%s", diff)
	}

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].Name)
	assert.Equal(t, first.TotalEvaluations, runs[1].TotalEvaluations)
	assert.Equal(t, len(first.ParetoFront), runs[1].ParetoSize)

	// Archive members are sorted by descending identity.
	vec, value, err := store.BestByObjective(ctx, "first", "identity")
	require.NoError(t, err)
	assert.Equal(t, first.ParetoFront[0].Latent, vec)
	assert.Equal(t, first.ParetoFront[0].Objectives.Identity, value)

	_, _, err = store.BestByObjective(ctx, "first", "age")
	assert.Error(t, err)

	assert.Error(t, store.SaveRun(ctx, &v1alpha1.RunResult{}))
}

type solidProducer struct {
	fail bool
}

func (p solidProducer) Produce(_ context.Context, vars []float64) (image.Image, error) {
	if p.fail {
		return nil, errors.New("generator offline")
	}
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: uint8(len(vars))})
	return img, nil
}

func TestMaterialize(t *testing.T) {
	a := framework.NewIndividual([]float64{1, 2, 3})
	a.SetFitness(framework.ObjectiveSpacePoint{0.91234, 0.1})
	b := framework.NewIndividual([]float64{4, 5, 6})
	b.SetFitness(framework.ObjectiveSpacePoint{0.5, 0.75})

	dir := filepath.Join(t.TempDir(), "previews")
	paths, err := Materialize(context.Background(), solidProducer{}, []*framework.Individual{a, b}, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "pareto_000_f1=0.912_f2=0.100.png"), paths[0])
	assert.Equal(t, filepath.Join(dir, "pareto_001_f1=0.500_f2=0.750.png"), paths[1])

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	_, err = Materialize(context.Background(), solidProducer{fail: true}, []*framework.Individual{a}, dir)
	assert.Error(t, err)

	_, err = Materialize(context.Background(), solidProducer{}, []*framework.Individual{framework.NewIndividual([]float64{1})}, dir)
	assert.Error(t, err)
}
