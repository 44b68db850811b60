package tool_barchart

import (
	"context"
	"fmt"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "bar_chart_tool"

const barChartPrompt = `Creates a bar chart from data in intermediary_table. If the user does not say what to plot, use satuan_kerja on the x axis and total_pagu on the y axis.
Example: sql_query "SELECT satuan_kerja, SUM(total_pagu) AS total FROM intermediary_table GROUP BY satuan_kerja", x_column "satuan_kerja", y_column "total", chart_title "Total Budget by Work Unit", image_filename "budget_by_unit.png".
Returns the saved image path and summary statistics of the plotted values.`

type BarChartInput struct {
	SQLQuery       string `json:"sql_query" required:"true" description:"SQL query against intermediary_table that returns the x and y columns"`
	XColumn        string `json:"x_column" required:"true" description:"Column with the bar categories"`
	YColumn        string `json:"y_column" required:"true" description:"Column with the numeric bar heights"`
	XLabel         string `json:"x_label,omitempty" description:"Label for the x axis"`
	YLabel         string `json:"y_label,omitempty" description:"Label for the y axis"`
	ChartTitle     string `json:"chart_title" required:"true" description:"Title for the chart"`
	ImageFilename  string `json:"image_filename" required:"true" description:"File name for the image, for example bar_chart.png"`
	ImageDirectory string `json:"image_directory,omitempty" description:"Directory to save the image in. Defaults to the configured image directory."`
}

func makeBarChartHandler(env *toolsutil.ChartEnv) func(context.Context, BarChartInput) (*charts.Result, error) {
	return func(ctx context.Context, input BarChartInput) (*charts.Result, error) {
		logger := toolsutil.GetLogger()

		rs, err := env.Load(ctx, input.SQLQuery, input.XColumn, input.YColumn)
		if err != nil {
			logger.Error("bar chart query failed", "error", err)
			return nil, err
		}

		labels, values, err := charts.Series(input.YColumn, rs.Column(input.XColumn), rs.Column(input.YColumn))
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: column %q has only null values", charts.ErrNoData, input.YColumn)
		}

		yLabel := input.YLabel
		if yLabel == "" {
			yLabel = input.YColumn
		}
		png, err := charts.RenderBar(charts.BarSpec{
			Title:  input.ChartTitle,
			XLabel: input.XLabel,
			YLabel: yLabel,
			Labels: labels,
			Values: values,
		})
		if err != nil {
			return nil, err
		}

		path, err := env.Save(input.ImageDirectory, input.ImageFilename, png)
		if err != nil {
			return nil, err
		}

		stats := charts.Summarize(values)
		hi, lo := 0, 0
		for i, v := range values {
			if v > values[hi] {
				hi = i
			}
			if v < values[lo] {
				lo = i
			}
		}

		summary := fmt.Sprintf("Bar chart saved to %s. Plotted %d bars of %s by %s. %s: %s. Highest: %s (%s). Lowest: %s (%s).",
			path, len(values), input.YColumn, input.XColumn, input.YColumn, stats,
			labels[hi], charts.FormatNumber(values[hi]), labels[lo], charts.FormatNumber(values[lo]))

		logger.Info("bar chart created", "path", path, "bars", len(values))
		return &charts.Result{
			Type: charts.TypeBar,
			Visualization: map[string]any{
				"x_column": input.XColumn,
				"y_column": input.YColumn,
				"x_label":  input.XLabel,
				"y_label":  input.YLabel,
			},
			SQLQuery:   input.SQLQuery,
			ChartTitle: input.ChartTitle,
			ImagePath:  path,
			Summary:    summary,
			Data:       rs,
		}, nil
	}
}

// Tool returns the bar_chart_tool definition using GenericTool
func Tool(env *toolsutil.ChartEnv) (agent.Tool, error) {
	return agent.NewGenericTool(Name, barChartPrompt, makeBarChartHandler(env))
}
