package tool_linechart

import (
	"context"
	"fmt"
	"strings"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "line_chart_tool"

const maxSeries = 2

const lineChartPrompt = `Creates a line chart of one or two series from intermediary_table, usually a trend over time. With two y columns the second one is drawn against a secondary y axis, for example a budget total next to a package count.
Example: sql_query "SELECT strftime('%Y-%m', tanggal_umumkan_paket) AS bulan, COUNT(kode_rup) AS jumlah_paket, SUM(total_pagu) AS total_pagu FROM intermediary_table GROUP BY bulan ORDER BY bulan", x_column "bulan", y_columns ["total_pagu", "jumlah_paket"], y_labels ["Total Budget", "Number of Packages"], chart_title "Procurement Trends Over Time", image_filename "procurement_trends.png".
Returns the saved image path and statistics for each series.`

type LineChartInput struct {
	SQLQuery       string   `json:"sql_query" required:"true" description:"SQL query against intermediary_table, ordered along the x axis"`
	XColumn        string   `json:"x_column" required:"true" description:"Column for the x axis, usually a time period"`
	YColumns       []string `json:"y_columns" required:"true" minItems:"1" maxItems:"2" description:"One or two numeric columns to plot. The second uses a secondary axis."`
	XLabel         string   `json:"x_label,omitempty" description:"Label for the x axis"`
	YLabels        []string `json:"y_labels,omitempty" description:"Labels for the y axes, in the same order as y_columns"`
	ChartTitle     string   `json:"chart_title" required:"true" description:"Title for the chart"`
	ImageFilename  string   `json:"image_filename" required:"true" description:"File name for the image, for example trend.png"`
	ImageDirectory string   `json:"image_directory,omitempty" description:"Directory to save the image in. Defaults to the configured image directory."`
}

func makeLineChartHandler(env *toolsutil.ChartEnv) func(context.Context, LineChartInput) (*charts.Result, error) {
	return func(ctx context.Context, input LineChartInput) (*charts.Result, error) {
		logger := toolsutil.GetLogger()

		if len(input.YColumns) == 0 || len(input.YColumns) > maxSeries {
			return nil, fmt.Errorf("%w: y_columns takes one or two columns, got %d", toolsutil.ErrInvalidParams, len(input.YColumns))
		}
		if len(input.YLabels) > 0 && len(input.YLabels) != len(input.YColumns) {
			return nil, fmt.Errorf("%w: y_labels must have one label per y column", toolsutil.ErrInvalidParams)
		}

		columns := append([]string{input.XColumn}, input.YColumns...)
		rs, err := env.Load(ctx, input.SQLQuery, columns...)
		if err != nil {
			logger.Error("line chart query failed", "error", err)
			return nil, err
		}

		x, series, err := buildSeries(rs, input)
		if err != nil {
			return nil, err
		}

		spec := charts.LineSpec{
			Title:   input.ChartTitle,
			XLabel:  input.XLabel,
			XLabels: x.labels,
			XValues: x.values,
			Series:  series,
		}
		spec.YLabel = series[0].Name
		if len(series) > 1 {
			spec.Y2Label = series[1].Name
		}

		png, err := charts.RenderLine(spec)
		if err != nil {
			return nil, err
		}
		path, err := env.Save(input.ImageDirectory, input.ImageFilename, png)
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Line chart saved to %s. Plotted %d points of %s over %s from %s to %s.",
			path, len(x.labels), strings.Join(input.YColumns, " and "), input.XColumn, x.labels[0], x.labels[len(x.labels)-1])
		for i, s := range series {
			st := charts.Summarize(s.Values)
			peak, trough := charts.PeakAndTrough(s.Values)
			fmt.Fprintf(&b, " %s: %s; first %s, last %s; peak %s (%s), lowest %s (%s)", s.Name, st,
				charts.FormatNumber(s.Values[0]), charts.FormatNumber(s.Values[len(s.Values)-1]),
				x.periods[peak], charts.FormatNumber(s.Values[peak]),
				x.periods[trough], charts.FormatNumber(s.Values[trough]))
			if i == 1 {
				b.WriteString(" (secondary axis)")
			}
			b.WriteString(".")
		}

		logger.Info("line chart created", "path", path, "points", len(x.labels), "series", len(series))
		return &charts.Result{
			Type: charts.TypeLine,
			Visualization: map[string]any{
				"x_column":  input.XColumn,
				"y_columns": input.YColumns,
				"x_label":   input.XLabel,
				"y_labels":  input.YLabels,
			},
			SQLQuery:   input.SQLQuery,
			ChartTitle: input.ChartTitle,
			ImagePath:  path,
			Summary:    b.String(),
			Data:       rs,
		}, nil
	}
}

// xAxis holds one entry per plotted row. periods name the row in summaries,
// "Mar 2024" for a month.
type xAxis struct {
	labels  []string
	periods []string
	values  []float64
}

// buildSeries drops rows with a null in any y column. The x axis is numeric
// when every x value is a number, otherwise points are evenly spaced.
func buildSeries(rs *datastore.ResultSet, input LineChartInput) (xAxis, []charts.LineSeries, error) {
	series := make([]charts.LineSeries, len(input.YColumns))
	for i, col := range input.YColumns {
		series[i].Name = col
		if len(input.YLabels) > 0 && input.YLabels[i] != "" {
			series[i].Name = input.YLabels[i]
		}
		series[i].Secondary = i == 1
	}

	var x xAxis
	numericX := true

rows:
	for r, row := range rs.Rows {
		ys := make([]float64, len(input.YColumns))
		for i, col := range input.YColumns {
			v := row[col]
			if v == nil {
				continue rows
			}
			f, ok := charts.ToFloat(v)
			if !ok {
				return xAxis{}, nil, fmt.Errorf("column %q has a non-numeric value %q at row %d", col, charts.Label(v), r)
			}
			ys[i] = f
		}
		xv := row[input.XColumn]
		if f, ok := charts.ToFloat(xv); ok && numericX {
			x.values = append(x.values, f)
		} else {
			numericX = false
		}
		x.labels = append(x.labels, charts.Label(xv))
		x.periods = append(x.periods, charts.PeriodLabel(xv))
		for i := range series {
			series[i].Values = append(series[i].Values, ys[i])
		}
	}

	if len(x.labels) < 2 {
		return xAxis{}, nil, fmt.Errorf("%w: a line chart needs at least two rows with values, got %d", charts.ErrNoData, len(x.labels))
	}
	if !numericX {
		x.values = nil
	}
	return x, series, nil
}

// Tool returns the line_chart_tool definition using GenericTool
func Tool(env *toolsutil.ChartEnv) (agent.Tool, error) {
	return agent.NewGenericTool(Name, lineChartPrompt, makeLineChartHandler(env))
}
