package benchmarks

import (
	"context"
	"errors"
	"math"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

const (
	SurrogateName = "IdentityGenderSurrogate"
)

// IdentityGenderSurrogate stands in for the identity and gender scoring
// networks so the search can run without a generator.
//
// f1 (identity) is 1/(1+d) where d is the RMS distance to the anchor latent.
// f2 (gender) is a logistic score of the projection onto a fixed direction.
// Moving along the direction raises f2 and lowers f1, giving a trade-off front.
type IdentityGenderSurrogate struct {
	anchor    []float64
	direction []float64
	// Steepness scales the projection before the logistic function.
	Steepness float64
}

// NewIdentityGenderSurrogate anchors identity at anchor. The gender direction
// alternates sign across components and has unit length.
func NewIdentityGenderSurrogate(anchor []float64) (*IdentityGenderSurrogate, error) {
	if len(anchor) == 0 {
		return nil, errors.New("surrogate anchor must not be empty")
	}
	dir := make([]float64, len(anchor))
	norm := math.Sqrt(float64(len(anchor)))
	for i := range dir {
		dir[i] = 1 / norm
		if i%2 == 1 {
			dir[i] = -dir[i]
		}
	}
	return &IdentityGenderSurrogate{
		anchor:    append([]float64(nil), anchor...),
		direction: dir,
		Steepness: 1,
	}, nil
}

func (s *IdentityGenderSurrogate) Name() string {
	return SurrogateName
}

func (s *IdentityGenderSurrogate) Dimension() int {
	return len(s.anchor)
}

func (s *IdentityGenderSurrogate) Evaluate(_ context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
	if err := framework.CheckDimension(vars, len(s.anchor), -1); err != nil {
		return nil, err
	}
	var sq, proj float64
	for i, v := range vars {
		d := v - s.anchor[i]
		sq += d * d
		proj += d * s.direction[i]
	}
	rms := math.Sqrt(sq / float64(len(vars)))
	identity := 1 / (1 + rms)
	gender := 1 / (1 + math.Exp(-s.Steepness*proj))
	return framework.ObjectiveSpacePoint{identity, gender}, nil
}
