// Package results converts a finished search into a RunResult document and
// persists it.
package results

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
	"github.com/facegen/latentsearch/pkg/multiobjective/algorithms"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// NewRunResult builds the persisted form of res.
func NewRunResult(runName string, res *algorithms.Result, generatedAt time.Time) *v1alpha1.RunResult {
	out := &v1alpha1.RunResult{
		TypeMeta:    metav1.TypeMeta{APIVersion: v1alpha1.GroupVersion, Kind: v1alpha1.RunResultKind},
		RunName:     runName,
		Algorithm:   algorithms.Name,
		GeneratedAt: ptr.To(metav1.NewTime(generatedAt)),
		Population:  make([]v1alpha1.Solution, 0, len(res.Population)),
	}
	for _, ind := range res.Population {
		out.Population = append(out.Population, solution(ind, true))
	}
	if res.ParetoFront != nil {
		items := res.ParetoFront.Items()
		out.ParetoFront = make([]v1alpha1.Solution, 0, len(items))
		for _, ind := range items {
			out.ParetoFront = append(out.ParetoFront, solution(ind, false))
		}
	}
	if res.Logbook != nil {
		for _, rec := range res.Logbook.Records() {
			out.Logbook = append(out.Logbook, v1alpha1.GenerationRecord{
				Generation:       rec.Gen,
				Evaluations:      rec.Evals,
				TotalEvaluations: rec.TotalEvals,
				Avg:              objectives(rec.Avg),
				Std:              objectives(rec.Std),
				Min:              objectives(rec.Min),
				Max:              objectives(rec.Max),
			})
		}
		if n := len(out.Logbook); n > 0 {
			out.TotalEvaluations = out.Logbook[n-1].TotalEvaluations
		}
	}
	return out
}

func solution(ind *framework.Individual, withSelection bool) v1alpha1.Solution {
	f, _ := ind.Fitness()
	s := v1alpha1.Solution{
		Objectives: objectives(f),
		Latent:     append([]float64(nil), ind.Variables()...),
	}
	if withSelection && ind.Rank != framework.Unranked {
		s.Rank = ptr.To(ind.Rank)
		if !math.IsInf(ind.Distance, 0) {
			s.CrowdingDistance = ptr.To(ind.Distance)
		}
	}
	return s
}

func objectives(p framework.ObjectiveSpacePoint) v1alpha1.ObjectiveValues {
	if len(p) < framework.NumObjectives {
		return v1alpha1.ObjectiveValues{}
	}
	return v1alpha1.ObjectiveValues{Identity: p[0], Gender: p[1]}
}

// WriteFile encodes result as "yaml" or "json" into path, creating parent
// directories as needed.
func WriteFile(path, format string, result *v1alpha1.RunResult) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(result)
	case "json":
		data, err = json.MarshalIndent(result, "", "  ")
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding run result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile decodes a result written by WriteFile in either format.
func ReadFile(path string) (*v1alpha1.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result := &v1alpha1.RunResult{}
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return result, nil
}
