package algorithms

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// GenerationStats is one logbook row. Avg, Std, Min and Max hold one value per
// objective, computed over the surviving population of the generation. Std is
// the population standard deviation.
type GenerationStats struct {
	Gen int
	// Evals is the number of successful evaluations in this generation.
	Evals int
	// TotalEvals is the cumulative number of successful evaluations.
	TotalEvals int

	Avg framework.ObjectiveSpacePoint
	Std framework.ObjectiveSpacePoint
	Min framework.ObjectiveSpacePoint
	Max framework.ObjectiveSpacePoint
}

// Logbook is the append-only record of per-generation statistics.
type Logbook struct {
	records []GenerationStats
}

func NewLogbook() *Logbook {
	return &Logbook{}
}

// Record computes statistics over the evaluated members of population and
// appends them.
func (l *Logbook) Record(gen, evals, totalEvals int, population framework.Population) GenerationStats {
	rec := GenerationStats{
		Gen:        gen,
		Evals:      evals,
		TotalEvals: totalEvals,
		Avg:        make(framework.ObjectiveSpacePoint, framework.NumObjectives),
		Std:        make(framework.ObjectiveSpacePoint, framework.NumObjectives),
		Min:        make(framework.ObjectiveSpacePoint, framework.NumObjectives),
		Max:        make(framework.ObjectiveSpacePoint, framework.NumObjectives),
	}

	points := population.Points()
	if len(points) > 0 {
		column := make([]float64, len(points))
		for m := 0; m < framework.NumObjectives; m++ {
			for i, p := range points {
				column[i] = p[m]
			}
			rec.Avg[m], rec.Std[m] = stat.PopMeanStdDev(column, nil)
			rec.Min[m] = floats.Min(column)
			rec.Max[m] = floats.Max(column)
		}
	}

	l.records = append(l.records, rec)
	return rec
}

// Records returns a copy of the rows in generation order.
func (l *Logbook) Records() []GenerationStats {
	return append([]GenerationStats(nil), l.records...)
}

// Len is the number of rows.
func (l *Logbook) Len() int {
	return len(l.records)
}

// Select returns one column of the logbook for objective m. Valid fields are
// "avg", "std", "min" and "max".
func (l *Logbook) Select(fieldName string, m int) ([]float64, error) {
	out := make([]float64, len(l.records))
	for i, rec := range l.records {
		var p framework.ObjectiveSpacePoint
		switch fieldName {
		case "avg":
			p = rec.Avg
		case "std":
			p = rec.Std
		case "min":
			p = rec.Min
		case "max":
			p = rec.Max
		default:
			return nil, fmt.Errorf("unknown logbook field %q", fieldName)
		}
		out[i] = p[m]
	}
	return out, nil
}

// String renders the logbook as an aligned table.
func (l *Logbook) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "gen\tevals\tstd\tmin\tavg\tmax")
	for _, rec := range l.records {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			rec.Gen, rec.Evals, formatPoint(rec.Std), formatPoint(rec.Min), formatPoint(rec.Avg), formatPoint(rec.Max))
	}
	w.Flush()
	return b.String()
}

func formatPoint(p framework.ObjectiveSpacePoint) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%.4g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
