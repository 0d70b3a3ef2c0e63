package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/facegen/latentsearch/pkg/multiobjective/algorithms"
	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// ScatterSeries is one named set of points in objective space.
type ScatterSeries struct {
	Name   string
	Points []framework.ObjectiveSpacePoint
	// Symbol is an echarts symbol name. Defaults to "circle".
	Symbol string
}

// PlotParetoFront renders the given series as an identity/gender scatter
// plot into an HTML file at path.
func PlotParetoFront(path, title string, series ...ScatterSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("nothing to plot for %s", title)
	}

	// Create scatter chart
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "f1 identity",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "f2 gender",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	for _, s := range series {
		for i, p := range s.Points {
			if len(p) != framework.NumObjectives {
				return fmt.Errorf("series %q point %d has %d objectives, can only plot 2D", s.Name, i, len(p))
			}
		}
		symbol := s.Symbol
		if symbol == "" {
			symbol = "circle"
		}
		data := make([]opts.ScatterData, len(s.Points))
		for i, p := range s.Points {
			data[i] = opts.ScatterData{
				Value:      []float64{p[0], p[1]},
				Symbol:     symbol,
				SymbolSize: 10,
			}
		}
		scatter.AddSeries(s.Name, data)
	}
	scatter.SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{
			Show: opts.Bool(false),
		}),
		charts.WithEmphasisOpts(opts.Emphasis{}),
	)

	return render(path, scatter)
}

// PlotLogbook renders the per-generation average and maximum of both
// objectives as a line chart into an HTML file at path.
func PlotLogbook(path string, logbook *algorithms.Logbook) error {
	records := logbook.Records()
	if len(records) == 0 {
		return fmt.Errorf("logbook is empty")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s convergence", algorithms.Name),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "generation"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "fitness"}),
	)

	gens := make([]string, len(records))
	for i, rec := range records {
		gens[i] = strconv.Itoa(rec.Gen)
	}
	line.SetXAxis(gens)

	names := [framework.NumObjectives]string{"f1 identity", "f2 gender"}
	for m := 0; m < framework.NumObjectives; m++ {
		for _, stat := range []string{"avg", "max"} {
			values, err := logbook.Select(stat, m)
			if err != nil {
				return err
			}
			data := make([]opts.LineData, len(values))
			for i, v := range values {
				data[i] = opts.LineData{Value: v}
			}
			line.AddSeries(fmt.Sprintf("%s %s", names[m], stat), data)
		}
	}

	return render(path, line)
}

type renderer interface {
	Render(w io.Writer) error
}

func render(path string, chart renderer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Create HTML file
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return chart.Render(f)
}
