package tool_histogram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "histogram_tool"

const (
	defaultBins      = 12
	maxBins          = 100
	maxCategories    = 30
	summaryTopValues = 5
)

// Distribution modes chosen from the column's values.
const (
	ModeNumeric     = "numeric"
	ModeMonthly     = "monthly"
	ModeCategorical = "categorical"
)

const histogramPrompt = `Creates a histogram of one column from intermediary_table. If the user does not say what to show, show the distribution of procurement announcement dates over the months.
Numeric columns are split into equal-width bins. Date columns are counted per month of the year (Jan to Dec). Text columns are counted per distinct value, most frequent first, and bins is ignored.
Example: sql_query "SELECT tanggal_umumkan_paket FROM intermediary_table", x_column "tanggal_umumkan_paket", x_label "Month of Announcement", y_label "Frequency", chart_title "Monthly Procurement Announcements", image_filename "announcement_histogram.png", bins 12.
Returns the saved image path and a description of the distribution.`

type HistogramInput struct {
	SQLQuery       string `json:"sql_query" required:"true" description:"SQL query against intermediary_table that returns the x column"`
	XColumn        string `json:"x_column" required:"true" description:"Column whose distribution is plotted"`
	XLabel         string `json:"x_label,omitempty" description:"Label for the x axis"`
	YLabel         string `json:"y_label,omitempty" description:"Label for the y axis"`
	ChartTitle     string `json:"chart_title" required:"true" description:"Title for the chart"`
	ImageFilename  string `json:"image_filename" required:"true" description:"File name for the image, for example histogram.png"`
	ImageDirectory string `json:"image_directory,omitempty" description:"Directory to save the image in. Defaults to the configured image directory."`
	Bins           int    `json:"bins,omitempty" default:"12" description:"Number of bins for numeric columns. Default is 12."`
}

// distribution is the bar data of one histogram.
type distribution struct {
	mode    string
	labels  []string
	counts  []float64
	summary string
}

func makeHistogramHandler(env *toolsutil.ChartEnv) func(context.Context, HistogramInput) (*charts.Result, error) {
	return func(ctx context.Context, input HistogramInput) (*charts.Result, error) {
		logger := toolsutil.GetLogger()

		bins := input.Bins
		if bins == 0 {
			bins = defaultBins
		}
		if bins < 0 || bins > maxBins {
			return nil, fmt.Errorf("%w: bins must be between 1 and %d", toolsutil.ErrInvalidParams, maxBins)
		}

		rs, err := env.Load(ctx, input.SQLQuery, input.XColumn)
		if err != nil {
			logger.Error("histogram query failed", "error", err)
			return nil, err
		}

		var values []any
		for _, v := range rs.Column(input.XColumn) {
			if v != nil {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: column %q has only null values", charts.ErrNoData, input.XColumn)
		}

		dist := distribute(input.XColumn, values, bins)

		yLabel := input.YLabel
		if yLabel == "" {
			yLabel = "Frequency"
		}
		xLabel := input.XLabel
		if xLabel == "" {
			xLabel = input.XColumn
		}
		png, err := charts.RenderBar(charts.BarSpec{
			Title:  input.ChartTitle,
			XLabel: xLabel,
			YLabel: yLabel,
			Labels: dist.labels,
			Values: dist.counts,
		})
		if err != nil {
			return nil, err
		}
		path, err := env.Save(input.ImageDirectory, input.ImageFilename, png)
		if err != nil {
			return nil, err
		}

		summary := fmt.Sprintf("Histogram saved to %s. %s", path, dist.summary)
		logger.Info("histogram created", "path", path, "mode", dist.mode, "values", len(values))

		vis := map[string]any{
			"x_column": input.XColumn,
			"x_label":  input.XLabel,
			"y_label":  input.YLabel,
			"mode":     dist.mode,
		}
		if dist.mode == ModeNumeric {
			vis["bins"] = bins
		}
		return &charts.Result{
			Type:          charts.TypeHistogram,
			Visualization: vis,
			SQLQuery:      input.SQLQuery,
			ChartTitle:    input.ChartTitle,
			ImagePath:     path,
			Summary:       summary,
			Data:          rs,
		}, nil
	}
}

// distribute picks numeric bins when every value is a number, months when
// every value is a date, and category counts otherwise.
func distribute(column string, values []any, bins int) distribution {
	if nums, ok := allNumbers(values); ok {
		return numericDistribution(column, nums, bins)
	}
	if times, ok := allTimes(values); ok {
		return monthlyDistribution(column, times)
	}
	return categoricalDistribution(column, values)
}

func allNumbers(values []any) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		if _, isBool := v.(bool); isBool {
			return nil, false
		}
		f, ok := charts.ToFloat(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func allTimes(values []any) ([]time.Time, bool) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		t, ok := charts.ToTime(v)
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

func numericDistribution(column string, nums []float64, bins int) distribution {
	buckets := charts.Bins(nums, bins)
	d := distribution{mode: ModeNumeric}
	top := 0
	for i, b := range buckets {
		d.labels = append(d.labels, b.Label())
		d.counts = append(d.counts, float64(b.Count))
		if b.Count > buckets[top].Count {
			top = i
		}
	}
	st := charts.Summarize(nums)
	d.summary = fmt.Sprintf("%d values of %s in %d bins; min %s, max %s, mean %s. Most values (%d) fall in %s.",
		st.Count, column, len(buckets), charts.FormatNumber(st.Min), charts.FormatNumber(st.Max),
		charts.FormatNumber(st.Mean), buckets[top].Count, buckets[top].Label())
	return d
}

func monthlyDistribution(column string, times []time.Time) distribution {
	counts := charts.MonthCounts(times)
	d := distribution{mode: ModeMonthly, labels: charts.MonthNames[:]}
	for _, c := range counts {
		d.counts = append(d.counts, float64(c))
	}
	peak, trough := charts.PeakAndTrough(counts[:])
	d.summary = fmt.Sprintf("%d dates of %s counted per month of the year. Peak month: %s (%d). Lowest month: %s (%d).",
		len(times), column, charts.MonthNames[peak], counts[peak], charts.MonthNames[trough], counts[trough])
	return d
}

func categoricalDistribution(column string, values []any) distribution {
	labels := make([]string, len(values))
	for i, v := range values {
		labels[i] = charts.Label(v)
	}
	freqs := charts.Frequencies(labels)

	d := distribution{mode: ModeCategorical}
	shown := freqs
	if len(shown) > maxCategories {
		shown = shown[:maxCategories]
	}
	for _, f := range shown {
		d.labels = append(d.labels, f.Label)
		d.counts = append(d.counts, float64(f.Count))
	}

	top := freqs
	if len(top) > summaryTopValues {
		top = top[:summaryTopValues]
	}
	parts := make([]string, len(top))
	for i, f := range top {
		parts[i] = fmt.Sprintf("%s (%d)", f.Label, f.Count)
	}
	d.summary = fmt.Sprintf("%d values of %s in %d categories. Most frequent: %s.",
		len(values), column, len(freqs), strings.Join(parts, ", "))
	if len(freqs) > maxCategories {
		d.summary += fmt.Sprintf(" Only the %d most frequent categories are drawn.", maxCategories)
	}
	return d
}

// Tool returns the histogram_tool definition using GenericTool
func Tool(env *toolsutil.ChartEnv) (agent.Tool, error) {
	return agent.NewGenericTool(Name, histogramPrompt, makeHistogramHandler(env))
}
