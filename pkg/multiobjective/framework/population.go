package framework

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// InitializePopulation builds populationSize individuals from the seed
// vectors. Individual i starts from seed i mod len(seeds), so seeds are reused
// in order when there are fewer seeds than individuals, and every component is
// perturbed with independent Normal(0, perturbationScale) noise drawn from src.
func InitializePopulation(seeds [][]float64, perturbationScale float64, populationSize int, src rand.Source) (Population, error) {
	if len(seeds) == 0 {
		return nil, &SeedLoadError{Source: "seed vectors", Err: errors.New("no seed vectors")}
	}
	if populationSize < 0 {
		return nil, fmt.Errorf("population size must not be negative, got %d", populationSize)
	}
	if perturbationScale < 0 {
		return nil, fmt.Errorf("perturbation scale must not be negative, got %v", perturbationScale)
	}

	d := len(seeds[0])
	for i, s := range seeds {
		if err := CheckDimension(s, d, i); err != nil {
			return nil, err
		}
	}

	noise := distuv.Normal{Mu: 0, Sigma: perturbationScale, Src: src}
	population := make(Population, populationSize)
	for i := 0; i < populationSize; i++ {
		seed := seeds[i%len(seeds)]
		vars := make([]float64, d)
		for j, v := range seed {
			if perturbationScale == 0 {
				vars[j] = v
				continue
			}
			vars[j] = v + noise.Rand()
		}
		population[i] = NewIndividual(vars)
	}
	return population, nil
}
