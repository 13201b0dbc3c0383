package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/porosim/internal/storage"
)

// Series names accepted by PlotRun.
const (
	SeriesDt       = "dt"
	SeriesCFL      = "cfl"
	SeriesPressure = "pressure"
	SeriesSw       = "sw"
)

// PlotRun renders one diagnostic series of a stored run as an ascii chart.
func PlotRun(steps []storage.StepRecord, series string, width, height int) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("viz: run has no steps")
	}

	values := make([]float64, len(steps))
	var caption string
	for i, s := range steps {
		switch series {
		case SeriesDt:
			values[i] = s.Dt
			caption = "step size (s)"
		case SeriesCFL:
			values[i] = s.CFL
			caption = "realized CFL"
		case SeriesPressure:
			values[i] = s.MeanPressure
			caption = "mean pressure (Pa)"
		case SeriesSw:
			values[i] = s.MeanSw
			caption = "mean water saturation"
		default:
			return "", fmt.Errorf("viz: unknown series %q", series)
		}
	}

	return asciigraph.Plot(values,
		asciigraph.Height(height), asciigraph.Width(width),
		asciigraph.Caption(caption)), nil
}

// SummaryTable renders run metadata for terminal listing.
func SummaryTable(runs []storage.RunMetadata) string {
	if len(runs) == 0 {
		return MetricLabel.Render("no runs recorded")
	}

	var b strings.Builder
	b.WriteString(MetricLabel.Render(fmt.Sprintf("%-28s %-20s %8s %8s %12s", "id", "scenario", "steps", "rejects", "final t")))
	b.WriteString("\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%-28s %-20s %8d %8d %12s\n",
			r.ID, r.Scenario, r.AcceptedSteps, r.TotalRejects, formatSeconds(r.FinalTime)))
	}
	return strings.TrimRight(b.String(), "\n")
}
