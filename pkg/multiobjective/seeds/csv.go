// Package seeds loads the latent vectors that start a search.
package seeds

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// LoadCSV reads seed vectors from a CSV file, one vector per row.
func LoadCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &framework.SeedLoadError{Source: path, Err: err}
	}
	defer f.Close()
	return Read(f, path)
}

// Read parses seed vectors from r. Rows keep their order and must all have the
// same number of finite numeric fields. source names r in errors, which carry
// the line number in r.
func Read(r io.Reader, source string) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	// Arity is checked below to report it as a dimension problem.
	reader.FieldsPerRecord = -1

	var vectors [][]float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			loadErr := &framework.SeedLoadError{Source: source, Err: err}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				loadErr.Line = parseErr.Line
			}
			return nil, loadErr
		}
		line, _ := reader.FieldPos(0)

		vec := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, &framework.SeedLoadError{Source: source, Line: line, Err: fmt.Errorf("column %d: %w", i+1, err)}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &framework.SeedLoadError{Source: source, Line: line, Err: fmt.Errorf("column %d: not a finite number", i+1)}
			}
			vec[i] = v
		}
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return nil, &framework.SeedLoadError{
				Source: source,
				Line:   line,
				Err:    &framework.DimensionMismatchError{Want: len(vectors[0]), Got: len(vec), Index: len(vectors)},
			}
		}
		vectors = append(vectors, vec)
	}

	if len(vectors) == 0 {
		return nil, &framework.SeedLoadError{Source: source, Err: errors.New("no seed vectors")}
	}
	return vectors, nil
}
