package display

import (
	"bytes"
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// emptyDonutSVG: go-chart не рисует кольцо с нулевой суммой.
const emptyDonutSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">` +
	`<circle cx="%d" cy="%d" r="%d" fill="none" stroke="#d0d7de" stroke-width="24"/>` +
	`<text x="50%%" y="50%%" text-anchor="middle" font-family="sans-serif" font-size="14" fill="#57606a">No requests</text></svg>`

var (
	colorAvg     = drawing.ColorFromHex("4e79a7")
	colorP95     = drawing.ColorFromHex("f28e2b")
	colorP99     = drawing.ColorFromHex("e15759")
	colorSuccess = drawing.ColorFromHex("59a14f")
	colorErrors  = drawing.ColorFromHex("e15759")
)

// SVGRenderer рисует графики через go-chart в SVG.
type SVGRenderer struct {
	Width  int
	Height int
}

func NewSVGRenderer(width, height int) SVGRenderer {
	if width <= 0 {
		width = 480
	}
	if height <= 0 {
		height = 320
	}
	return SVGRenderer{Width: width, Height: height}
}

func (r SVGRenderer) Redraw(kind ChartKind, data Dataset) ([]byte, error) {
	if len(data.Labels) != len(data.Values) {
		return nil, fmt.Errorf("chart %s: %d labels for %d values", kind, len(data.Labels), len(data.Values))
	}
	switch kind {
	case ChartLatency:
		return r.bars(data)
	case ChartSplit:
		return r.donut(data)
	default:
		return nil, fmt.Errorf("unknown chart %q", kind)
	}
}

func (r SVGRenderer) bars(data Dataset) ([]byte, error) {
	palette := []drawing.Color{colorAvg, colorP95, colorP99}
	top := 1.0
	bars := make([]chart.Value, 0, len(data.Values))
	for i, v := range data.Values {
		v = clean(v)
		top = math.Max(top, v)
		bars = append(bars, chart.Value{
			Label: data.Labels[i],
			Value: v,
			Style: chart.Style{FillColor: palette[i%len(palette)], StrokeColor: palette[i%len(palette)]},
		})
	}

	bc := chart.BarChart{
		Title:      "Latency (ms)",
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      r.Width,
		Height:     r.Height,
		BarWidth:   60,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render latency chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (r SVGRenderer) donut(data Dataset) ([]byte, error) {
	palette := []drawing.Color{colorSuccess, colorErrors}
	var total float64
	values := make([]chart.Value, 0, len(data.Values))
	for i, v := range data.Values {
		v = clean(v)
		total += v
		values = append(values, chart.Value{
			Label: data.Labels[i],
			Value: v,
			Style: chart.Style{FillColor: palette[i%len(palette)]},
		})
	}

	if total <= 0 {
		side := min(r.Width, r.Height)
		return []byte(fmt.Sprintf(emptyDonutSVG, r.Width, r.Height, r.Width/2, r.Height/2, side/3)), nil
	}

	dc := chart.DonutChart{
		Title:  "Requests",
		Width:  r.Width,
		Height: r.Height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := dc.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render split chart: %w", err)
	}
	return buf.Bytes(), nil
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
