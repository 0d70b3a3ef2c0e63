package framework

import "fmt"

// NonDominatedSort performs non-dominated sorting on the population. Every
// individual gets its Rank set and the fronts are returned in rank order.
// All individuals must be evaluated.
func NonDominatedSort(population []*Individual) ([][]*Individual, error) {
	for i, ind := range population {
		if !ind.Valid() {
			return nil, fmt.Errorf("individual %d has no fitness", i)
		}
	}
	if len(population) == 0 {
		return nil, nil
	}

	var fronts [][]*Individual
	dominated := make([][]int, len(population))
	domCount := make([]int, len(population))

	// Calculate domination for each individual
	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			if Dominates(population[i], population[j]) {
				dominated[i] = append(dominated[i], j)
				domCount[j]++
			} else if Dominates(population[j], population[i]) {
				dominated[j] = append(dominated[j], i)
				domCount[i]++
			}
		}
	}

	// Find first front
	currentFront := []*Individual{}
	currentFrontIndices := []int{}
	for i := 0; i < len(population); i++ {
		if domCount[i] == 0 {
			population[i].Rank = 0
			currentFront = append(currentFront, population[i])
			currentFrontIndices = append(currentFrontIndices, i)
		}
	}
	fronts = append(fronts, currentFront)

	// Find subsequent fronts
	frontIndex := 0
	for len(currentFront) > 0 {
		nextFront := []*Individual{}
		nextFrontIndices := []int{}
		for _, idx := range currentFrontIndices {
			for _, dominatedIdx := range dominated[idx] {
				domCount[dominatedIdx]--
				if domCount[dominatedIdx] == 0 {
					population[dominatedIdx].Rank = frontIndex + 1
					nextFront = append(nextFront, population[dominatedIdx])
					nextFrontIndices = append(nextFrontIndices, dominatedIdx)
				}
			}
		}
		frontIndex++
		if len(nextFront) > 0 {
			fronts = append(fronts, nextFront)
		}
		currentFront = nextFront
		currentFrontIndices = nextFrontIndices
	}

	return fronts, nil
}

// Dominates checks if individual a dominates individual b. Both objectives are
// maximized: a must be at least as good everywhere and strictly better once.
func Dominates(a, b *Individual) bool {
	return DominatesPoint(a.fitness, b.fitness)
}

// DominatesPoint is Dominates on raw objective values.
func DominatesPoint(a, b ObjectiveSpacePoint) bool {
	better := false
	for i := 0; i < len(a); i++ {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			better = true
		}
	}
	return better
}
