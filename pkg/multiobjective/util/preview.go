package util

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// LatentPreview is an ImageProducer that draws the latent vector itself as a
// grayscale tile, one square cell per component. It stands in for a
// generator when none is available.
type LatentPreview struct {
	// CellSize is the side of one cell in pixels. Defaults to 8.
	CellSize int
}

var _ framework.ImageProducer = LatentPreview{}

// Produce lays components out row by row on the smallest square grid that
// holds them. A component maps to brightness through a logistic curve, so 0 is
// mid gray.
func (p LatentPreview) Produce(ctx context.Context, vars []float64) (image.Image, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("cannot render an empty latent vector")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell := p.CellSize
	if cell <= 0 {
		cell = 8
	}

	side := int(math.Ceil(math.Sqrt(float64(len(vars)))))
	img := image.NewGray(image.Rect(0, 0, side*cell, side*cell))
	for i, v := range vars {
		shade := color.Gray{Y: uint8(math.Round(255 / (1 + math.Exp(-v))))}
		x0, y0 := (i%side)*cell, (i/side)*cell
		for y := y0; y < y0+cell; y++ {
			for x := x0; x < x0+cell; x++ {
				img.SetGray(x, y, shade)
			}
		}
	}
	return img, nil
}
