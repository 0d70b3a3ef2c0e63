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
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"
)

var (
	knownEvaluators    = sets.New("surrogate", "zdt1")
	knownOutputFormats = sets.New("yaml", "json")
)

// ValidateLatentSearchArgs checks the fields the search parameters do not
// cover. It expects defaulted args.
func ValidateLatentSearchArgs(path *field.Path, args *LatentSearchArgs) field.ErrorList {
	var errs field.ErrorList
	if args.APIVersion != GroupVersion {
		errs = append(errs, field.Invalid(path.Child("apiVersion"), args.APIVersion, fmt.Sprintf("must be %s", GroupVersion)))
	}
	if args.Kind != LatentSearchArgsKind {
		errs = append(errs, field.Invalid(path.Child("kind"), args.Kind, fmt.Sprintf("must be %s", LatentSearchArgsKind)))
	}
	if args.SeedsPath == "" {
		errs = append(errs, field.Required(path.Child("seedsPath"), "a seed CSV is required"))
	}
	if !knownEvaluators.Has(args.Evaluator) {
		errs = append(errs, field.NotSupported(path.Child("evaluator"), args.Evaluator, sets.List(knownEvaluators)))
	}
	if !knownOutputFormats.Has(args.OutputFormat) {
		errs = append(errs, field.NotSupported(path.Child("outputFormat"), args.OutputFormat, sets.List(knownOutputFormats)))
	}
	if args.Dimension < 0 {
		errs = append(errs, field.Invalid(path.Child("dimension"), args.Dimension, "must not be negative"))
	}
	return errs
}

// LoadLatentSearchArgs reads a YAML or JSON document and applies defaults.
// Unknown fields are rejected.
func LoadLatentSearchArgs(path string) (*LatentSearchArgs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	args := &LatentSearchArgs{}
	if err := yaml.UnmarshalStrict(data, args); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	SetDefaults_LatentSearchArgs(args)
	return args, nil
}
