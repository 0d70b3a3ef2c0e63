/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GroupVersion of the documents in this package.
	GroupVersion = "latentsearch.facegen.io/v1alpha1"

	LatentSearchArgsKind = "LatentSearchArgs"
	RunResultKind        = "RunResult"
)

// LatentSearchArgs configures one multi-objective search over latent vectors.
// Unset fields are filled in by SetDefaults_LatentSearchArgs.
type LatentSearchArgs struct {
	metav1.TypeMeta `json:",inline"`

	// RunName identifies the run in the result store. Defaults to a timestamp.
	RunName string `json:"runName,omitempty"`

	// PopulationSize is the number of survivors kept each generation
	PopulationSize *int32 `json:"populationSize,omitempty"`

	// MaxGenerations is the number of generations after the initial evaluation
	MaxGenerations *int32 `json:"maxGenerations,omitempty"`

	// CrossoverProbability is the chance that a pair of offspring is blended
	CrossoverProbability *float64 `json:"crossoverProbability,omitempty"`

	// MutationProbability is the chance that an offspring is mutated
	MutationProbability *float64 `json:"mutationProbability,omitempty"`

	// GeneMutationProbability is the per-component mutation chance
	GeneMutationProbability *float64 `json:"geneMutationProbability,omitempty"`

	// MutationMu and MutationSigma parameterize the Gaussian mutation noise
	MutationMu    *float64 `json:"mutationMu,omitempty"`
	MutationSigma *float64 `json:"mutationSigma,omitempty"`

	// BlendAlpha widens the blend crossover interval beyond the parents
	BlendAlpha *float64 `json:"blendAlpha,omitempty"`

	// PerturbationScale is the standard deviation of the noise added to seeds
	PerturbationScale *float64 `json:"perturbationScale,omitempty"`

	// RandomSeed makes a run reproducible
	RandomSeed *uint64 `json:"randomSeed,omitempty"`

	// Dimension of the latent space. Zero takes it from the seeds.
	Dimension int32 `json:"dimension,omitempty"`

	// Workers bounds the number of concurrent evaluations
	Workers *int32 `json:"workers,omitempty"`

	// EvaluationTimeout bounds a single evaluation attempt. Zero disables it.
	EvaluationTimeout *metav1.Duration `json:"evaluationTimeout,omitempty"`

	// RetryBackoff is the pause before a failed evaluation is retried
	RetryBackoff *metav1.Duration `json:"retryBackoff,omitempty"`

	// SeedsPath is a CSV file with one latent vector per row
	SeedsPath string `json:"seedsPath"`

	// Evaluator names the built-in objective evaluator
	// +kubebuilder:validation:Enum=surrogate;zdt1
	Evaluator string `json:"evaluator,omitempty"`

	// CacheEvaluations memoizes evaluator results by latent vector
	CacheEvaluations *bool `json:"cacheEvaluations,omitempty"`

	// OutputDir receives the result document, charts and previews
	OutputDir string `json:"outputDir,omitempty"`

	// OutputFormat of the result document
	// +kubebuilder:validation:Enum=yaml;json
	OutputFormat string `json:"outputFormat,omitempty"`

	// StorePath is an optional SQLite database that accumulates runs
	StorePath string `json:"storePath,omitempty"`

	// Plots renders the Pareto front and convergence charts
	Plots *bool `json:"plots,omitempty"`

	// Previews writes one image per archived solution
	Previews *bool `json:"previews,omitempty"`
}

// RunResult is the persisted outcome of a search.
type RunResult struct {
	metav1.TypeMeta `json:",inline"`

	// RunName identifies the run
	RunName string `json:"runName"`

	// Algorithm that produced the result
	Algorithm string `json:"algorithm"`

	// GeneratedAt indicates when the run finished
	GeneratedAt *metav1.Time `json:"generatedAt"`

	// TotalEvaluations is the number of successful evaluator calls
	TotalEvaluations int `json:"totalEvaluations"`

	// Population is the final population in selection order
	Population []Solution `json:"population"`

	// ParetoFront holds every non-dominated solution seen during the run
	ParetoFront []Solution `json:"paretoFront"`

	// Logbook has one entry per generation, starting with generation 0
	Logbook []GenerationRecord `json:"logbook"`
}

// Solution is one evaluated latent vector.
type Solution struct {
	// Rank is the non-domination rank, 0 for the best front. Absent for archive members.
	Rank *int `json:"rank,omitempty"`

	// CrowdingDistance is absent for boundary members whose distance is infinite
	CrowdingDistance *float64 `json:"crowdingDistance,omitempty"`

	// Objectives contains the individual objective values
	Objectives ObjectiveValues `json:"objectives"`

	// Latent is the latent vector
	Latent []float64 `json:"latent"`
}

// ObjectiveValues contains the values for each optimization objective
type ObjectiveValues struct {
	// Identity measures how well the source identity is preserved
	Identity float64 `json:"identity"`

	// Gender measures the shift towards the target gender
	Gender float64 `json:"gender"`
}

// GenerationRecord holds the statistics of one generation's survivors
type GenerationRecord struct {
	Generation       int             `json:"generation"`
	Evaluations      int             `json:"evaluations"`
	TotalEvaluations int             `json:"totalEvaluations"`
	Avg              ObjectiveValues `json:"avg"`
	Std              ObjectiveValues `json:"std"`
	Min              ObjectiveValues `json:"min"`
	Max              ObjectiveValues `json:"max"`
}
