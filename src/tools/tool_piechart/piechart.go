package tool_piechart

import (
	"context"
	"fmt"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "pie_chart_tool"

const pieChartPrompt = `Creates a pie chart from data in intermediary_table. If the user does not say what to show, show the distribution of procurement packages by work unit.
Example: sql_query "SELECT satuan_kerja, COUNT(kode_rup) AS jumlah_paket FROM intermediary_table GROUP BY satuan_kerja", label_column "satuan_kerja", value_column "jumlah_paket", chart_title "Packages by Work Unit", image_filename "work_unit_pie.png".
Returns the saved image path and each slice's share of the total.`

type PieChartInput struct {
	SQLQuery       string `json:"sql_query" required:"true" description:"SQL query against intermediary_table that returns the label and value columns"`
	LabelColumn    string `json:"label_column" required:"true" description:"Column with the slice labels"`
	ValueColumn    string `json:"value_column" required:"true" description:"Column with the non-negative slice values"`
	ChartTitle     string `json:"chart_title" required:"true" description:"Title for the chart"`
	ImageFilename  string `json:"image_filename" required:"true" description:"File name for the image, for example pie_chart.png"`
	ImageDirectory string `json:"image_directory,omitempty" description:"Directory to save the image in. Defaults to the configured image directory."`
}

func makePieChartHandler(env *toolsutil.ChartEnv) func(context.Context, PieChartInput) (*charts.Result, error) {
	return func(ctx context.Context, input PieChartInput) (*charts.Result, error) {
		logger := toolsutil.GetLogger()

		rs, err := env.Load(ctx, input.SQLQuery, input.LabelColumn, input.ValueColumn)
		if err != nil {
			logger.Error("pie chart query failed", "error", err)
			return nil, err
		}

		labels, values, err := charts.Series(input.ValueColumn, rs.Column(input.LabelColumn), rs.Column(input.ValueColumn))
		if err != nil {
			return nil, err
		}

		png, err := charts.RenderPie(charts.PieSpec{Title: input.ChartTitle, Labels: labels, Values: values})
		if err != nil {
			return nil, err
		}
		path, err := env.Save(input.ImageDirectory, input.ImageFilename, png)
		if err != nil {
			return nil, err
		}

		shares, total := charts.Shares(labels, values)
		summary := fmt.Sprintf("Pie chart saved to %s. %d slices of %s by %s, total %s. Shares: %s.",
			path, len(shares), input.ValueColumn, input.LabelColumn, charts.FormatNumber(total), charts.FormatShares(shares))

		logger.Info("pie chart created", "path", path, "slices", len(shares))
		return &charts.Result{
			Type: charts.TypePie,
			Visualization: map[string]any{
				"label_column": input.LabelColumn,
				"value_column": input.ValueColumn,
			},
			SQLQuery:   input.SQLQuery,
			ChartTitle: input.ChartTitle,
			ImagePath:  path,
			Summary:    summary,
			Data:       rs,
		}, nil
	}
}

// Tool returns the pie_chart_tool definition using GenericTool
func Tool(env *toolsutil.ChartEnv) (agent.Tool, error) {
	return agent.NewGenericTool(Name, pieChartPrompt, makePieChartHandler(env))
}
