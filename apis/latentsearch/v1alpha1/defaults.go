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
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

var (
	DefaultPopulationSize          int32   = 100
	DefaultMaxGenerations          int32   = 250
	DefaultCrossoverProbability            = 0.9
	DefaultMutationProbability             = 0.1
	DefaultGeneMutationProbability         = 0.1
	DefaultMutationMu                      = 0.0
	DefaultMutationSigma                   = 1.0
	DefaultBlendAlpha                      = 0.2
	DefaultPerturbationScale               = 0.1
	DefaultRandomSeed              uint64  = 42
	DefaultWorkers                 int32   = 1
	DefaultRetryBackoff                    = metav1.Duration{Duration: 100 * time.Millisecond}
	DefaultEvaluator                       = "surrogate"
	DefaultOutputDir                       = "results"
	DefaultOutputFormat                    = "yaml"
)

// SetDefaults_LatentSearchArgs sets the default parameters for a latent search.
func SetDefaults_LatentSearchArgs(obj *LatentSearchArgs) {
	if obj.APIVersion == "" {
		obj.APIVersion = GroupVersion
	}
	if obj.Kind == "" {
		obj.Kind = LatentSearchArgsKind
	}
	if obj.PopulationSize == nil {
		obj.PopulationSize = ptr.To(DefaultPopulationSize)
	}
	if obj.MaxGenerations == nil {
		obj.MaxGenerations = ptr.To(DefaultMaxGenerations)
	}
	if obj.CrossoverProbability == nil {
		obj.CrossoverProbability = ptr.To(DefaultCrossoverProbability)
	}
	if obj.MutationProbability == nil {
		obj.MutationProbability = ptr.To(DefaultMutationProbability)
	}
	if obj.GeneMutationProbability == nil {
		obj.GeneMutationProbability = ptr.To(DefaultGeneMutationProbability)
	}
	if obj.MutationMu == nil {
		obj.MutationMu = ptr.To(DefaultMutationMu)
	}
	if obj.MutationSigma == nil {
		obj.MutationSigma = ptr.To(DefaultMutationSigma)
	}
	if obj.BlendAlpha == nil {
		obj.BlendAlpha = ptr.To(DefaultBlendAlpha)
	}
	if obj.PerturbationScale == nil {
		obj.PerturbationScale = ptr.To(DefaultPerturbationScale)
	}
	if obj.RandomSeed == nil {
		obj.RandomSeed = ptr.To(DefaultRandomSeed)
	}
	if obj.Workers == nil {
		obj.Workers = ptr.To(DefaultWorkers)
	}
	if obj.EvaluationTimeout == nil {
		obj.EvaluationTimeout = &metav1.Duration{}
	}
	if obj.RetryBackoff == nil {
		obj.RetryBackoff = ptr.To(DefaultRetryBackoff)
	}
	if obj.Evaluator == "" {
		obj.Evaluator = DefaultEvaluator
	}
	if obj.CacheEvaluations == nil {
		obj.CacheEvaluations = ptr.To(true)
	}
	if obj.OutputDir == "" {
		obj.OutputDir = DefaultOutputDir
	}
	if obj.OutputFormat == "" {
		obj.OutputFormat = DefaultOutputFormat
	}
	if obj.Plots == nil {
		obj.Plots = ptr.To(true)
	}
	if obj.Previews == nil {
		obj.Previews = ptr.To(false)
	}
}
