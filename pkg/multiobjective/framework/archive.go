package framework

import (
	"fmt"
	"sort"
)

// ParetoFront is an archive holding the non-dominated subset of every
// individual ever inserted. Members are private clones, so later changes to a
// population never leak into the archive.
type ParetoFront struct {
	items []*Individual
}

// NewParetoFront returns an empty archive.
func NewParetoFront() *ParetoFront {
	return &ParetoFront{}
}

// Insert offers a single individual to the archive and reports whether it was
// added. An individual is rejected when a member dominates it or carries an
// identical vector; otherwise every member it dominates is removed.
func (pf *ParetoFront) Insert(ind *Individual) (bool, error) {
	if !ind.Valid() {
		return false, fmt.Errorf("cannot archive an individual without fitness")
	}
	for _, m := range pf.items {
		if Dominates(m, ind) || m.SameVariables(ind) {
			return false, nil
		}
	}

	kept := pf.items[:0]
	for _, m := range pf.items {
		if !Dominates(ind, m) {
			kept = append(kept, m)
		}
	}
	// Zero the tail so removed members can be collected.
	for i := len(kept); i < len(pf.items); i++ {
		pf.items[i] = nil
	}
	pf.items = append(kept, ind.Clone())
	return true, nil
}

// Update inserts every individual of the population and returns how many were
// added.
func (pf *ParetoFront) Update(population []*Individual) (int, error) {
	added := 0
	for i, ind := range population {
		ok, err := pf.Insert(ind)
		if err != nil {
			return added, fmt.Errorf("individual %d: %w", i, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Len is the number of archived individuals.
func (pf *ParetoFront) Len() int {
	return len(pf.items)
}

// Items returns the members sorted by descending first objective, ties broken
// by descending second objective.
func (pf *ParetoFront) Items() []*Individual {
	out := make([]*Individual, len(pf.items))
	copy(out, pf.items)
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].fitness, out[j].fitness
		if fi[0] != fj[0] {
			return fi[0] > fj[0]
		}
		return fi[1] > fj[1]
	})
	return out
}
