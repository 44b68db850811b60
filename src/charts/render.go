// Package charts renders PNG charts from query results with go-chart.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	Width  = 1000
	Height = 600

	maxLabelLen = 14
	maxXTicks   = 12
)

var ErrNoData = errors.New("no data to plot")

// BarSpec describes a categorical bar chart.
type BarSpec struct {
	Title  string
	XLabel string
	YLabel string
	Labels []string
	Values []float64
}

// RenderBar draws a bar chart whose y axis always includes zero.
func RenderBar(spec BarSpec) ([]byte, error) {
	if len(spec.Values) == 0 {
		return nil, ErrNoData
	}
	if len(spec.Labels) != len(spec.Values) {
		return nil, fmt.Errorf("bar chart has %d labels for %d values", len(spec.Labels), len(spec.Values))
	}

	bars := make([]chart.Value, len(spec.Values))
	lo, hi := 0.0, 0.0
	for i, v := range spec.Values {
		bars[i] = chart.Value{Label: truncate(spec.Labels[i], maxLabelLen), Value: v}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		hi = lo + 1
	}

	barWidth := (Width - 120) / len(bars) * 3 / 4
	barWidth = max(4, min(60, barWidth))

	graph := chart.BarChart{
		Title:      spec.Title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 40}},
		BarWidth:   barWidth,
		BarSpacing: max(2, barWidth/3),
		XAxis:      chart.Style{FontSize: axisFontSize(len(bars))},
		YAxis: chart.YAxis{
			Name:           spec.YLabel,
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: numberFormatter,
		},
		Bars:     bars,
		Elements: []chart.Renderable{xAxisTitle(spec.XLabel)},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

// LineSeries is one y series of a line chart.
type LineSeries struct {
	Name      string
	Values    []float64
	Secondary bool
}

// LineSpec describes a line or scatter chart. When XValues is nil the points
// are spaced evenly and labelled with XLabels.
type LineSpec struct {
	Title   string
	XLabel  string
	YLabel  string
	Y2Label string
	XValues []float64
	XLabels []string
	Series  []LineSeries
	Scatter bool
}

// RenderLine draws one or more series against a shared x axis.
func RenderLine(spec LineSpec) ([]byte, error) {
	if len(spec.Series) == 0 {
		return nil, ErrNoData
	}
	n := len(spec.Series[0].Values)
	if n < 2 {
		return nil, fmt.Errorf("%w: a line chart needs at least two points", ErrNoData)
	}

	xs := spec.XValues
	var ticks []chart.Tick
	if xs == nil {
		xs = make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
		}
		step := (n + maxXTicks - 1) / maxXTicks
		for i := 0; i < n && i < len(spec.XLabels); i += step {
			ticks = append(ticks, chart.Tick{Value: float64(i), Label: truncate(spec.XLabels[i], maxLabelLen)})
		}
	}

	graph := chart.Chart{
		Title:      spec.Title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:           spec.XLabel,
			Ticks:          ticks,
			ValueFormatter: numberFormatter,
		},
		YAxis: chart.YAxis{
			Name:           spec.YLabel,
			ValueFormatter: numberFormatter,
		},
	}

	for _, s := range spec.Series {
		if len(s.Values) != len(xs) {
			return nil, fmt.Errorf("series %q has %d values for %d x values", s.Name, len(s.Values), len(xs))
		}
		series := chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
		}
		if spec.Scatter {
			series.Style = chart.Style{StrokeWidth: chart.Disabled, DotWidth: 5}
		}
		if s.Secondary {
			series.YAxis = chart.YAxisSecondary
			graph.YAxisSecondary = chart.YAxis{Name: spec.Y2Label, ValueFormatter: numberFormatter}
		}
		graph.Series = append(graph.Series, series)
	}
	if len(spec.Series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render line chart: %w", err)
	}
	return buf.Bytes(), nil
}

// PieSpec describes a pie chart. Values must be positive.
type PieSpec struct {
	Title  string
	Labels []string
	Values []float64
}

func RenderPie(spec PieSpec) ([]byte, error) {
	if len(spec.Values) == 0 {
		return nil, ErrNoData
	}
	values := make([]chart.Value, 0, len(spec.Values))
	for i, v := range spec.Values {
		if v < 0 {
			return nil, fmt.Errorf("pie chart value for %q is negative", spec.Labels[i])
		}
		if v == 0 {
			continue
		}
		values = append(values, chart.Value{Label: truncate(spec.Labels[i], maxLabelLen), Value: v})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: every pie value is zero", ErrNoData)
	}

	graph := chart.PieChart{
		Title:  spec.Title,
		Width:  Height,
		Height: Height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// xAxisTitle draws label centered below the canvas; bar charts have no axis name.
func xAxisTitle(label string) chart.Renderable {
	return func(r chart.Renderer, box chart.Box, defaults chart.Style) {
		if label == "" {
			return
		}
		style := chart.Style{FontSize: 11, FontColor: chart.DefaultTextColor}.InheritFrom(defaults)
		style.GetTextOptions().WriteToRenderer(r)
		tb := r.MeasureText(label)
		chart.Draw.Text(r, label, box.Left+(box.Width()-tb.Width())/2, box.Bottom+45, style)
	}
}

func numberFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return FormatNumber(f)
	}
	return fmt.Sprint(v)
}

func axisFontSize(bars int) float64 {
	switch {
	case bars > 30:
		return 6
	case bars > 15:
		return 8
	default:
		return 10
	}
}
