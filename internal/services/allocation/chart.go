package allocation

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rmfonseca/fiiboard/internal/models"
)

// RenderAllocationChart renders a PNG bar chart of the invested amount per
// allocation line. Returns raw PNG bytes.
func RenderAllocationChart(result *models.AllocationResult) ([]byte, error) {
	if result == nil || len(result.Lines) == 0 {
		return nil, fmt.Errorf("nothing to render: allocation has no lines")
	}

	bars := make([]chart.Value, len(result.Lines))
	for i, line := range result.Lines {
		bars[i] = chart.Value{
			Label: line.Ticker,
			Value: line.InvestedAmount,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("2563eb"), // blue-600
				StrokeColor: drawing.ColorFromHex("1e40af"), // blue-800
				StrokeWidth: 1.0,
			},
		}
	}

	graph := chart.BarChart{
		Title:    fmt.Sprintf("Alocação sugerida (%s)", result.RiskProfile),
		Width:    900,
		Height:   400,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("R$%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
