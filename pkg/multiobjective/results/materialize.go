package results

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// PreviewFileName names the image of the i-th archived solution.
func PreviewFileName(i int, f framework.ObjectiveSpacePoint) string {
	return fmt.Sprintf("pareto_%03d_f1=%.3f_f2=%.3f.png", i, f[0], f[1])
}

// Materialize renders every member of front through producer and writes one
// PNG per member into dir. It returns the written paths in front order.
func Materialize(ctx context.Context, producer framework.ImageProducer, front []*framework.Individual, dir string) ([]string, error) {
	logger := klog.FromContext(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(front))
	for i, ind := range front {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		f, ok := ind.Fitness()
		if !ok {
			return paths, fmt.Errorf("solution %d has no fitness", i)
		}
		img, err := producer.Produce(ctx, ind.Variables())
		if err != nil {
			return paths, fmt.Errorf("rendering solution %d: %w", i, err)
		}

		path := filepath.Join(dir, PreviewFileName(i, f))
		if err := writePNG(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		logger.V(4).Info("Wrote preview", "path", path)
	}
	logger.V(2).Info("Materialized Pareto front", "images", len(paths), "dir", dir)
	return paths, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
