package tools

// Barrel re-exports of every data tool and a constructor for the registry
// the run driver dispatches through.

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/datastore"
	tool_barchart "github.com/elee1766/dataagent/src/tools/tool_barchart"
	tool_histogram "github.com/elee1766/dataagent/src/tools/tool_histogram"
	tool_linechart "github.com/elee1766/dataagent/src/tools/tool_linechart"
	tool_piechart "github.com/elee1766/dataagent/src/tools/tool_piechart"
	tool_querydata "github.com/elee1766/dataagent/src/tools/tool_querydata"
	tool_schemacheck "github.com/elee1766/dataagent/src/tools/tool_schemacheck"
	tool_similarkeywords "github.com/elee1766/dataagent/src/tools/tool_similarkeywords"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// Tool name constants - re-exported from individual packages
const (
	SimilarKeywordsName = tool_similarkeywords.Name
	SchemaCheckName     = tool_schemacheck.Name
	QueryDataName       = tool_querydata.Name
	BarChartName        = tool_barchart.Name
	LineChartName       = tool_linechart.Name
	PieChartName        = tool_piechart.Name
	HistogramName       = tool_histogram.Name
)

// ChartToolNames are the tools whose results carry chart metadata.
var ChartToolNames = []string{BarChartName, LineChartName, PieChartName, HistogramName}

// IsChartTool reports whether name renders a chart.
func IsChartTool(name string) bool {
	for _, n := range ChartToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// Deps are the resources the tools operate on.
type Deps struct {
	Primary  *datastore.Primary
	Scratch  *datastore.Scratch
	Keywords *tool_similarkeywords.Index
	Fs       afero.Fs
	ImageDir string
}

func SimilarKeywordsTool(ix *tool_similarkeywords.Index) (agent.Tool, error) {
	return tool_similarkeywords.Tool(ix)
}
func SchemaCheckTool(p *datastore.Primary) (agent.Tool, error) { return tool_schemacheck.Tool(p) }
func QueryDataTool(p *datastore.Primary, s *datastore.Scratch) (agent.Tool, error) {
	return tool_querydata.Tool(p, s)
}
func BarChartTool(env *toolsutil.ChartEnv) (agent.Tool, error)  { return tool_barchart.Tool(env) }
func LineChartTool(env *toolsutil.ChartEnv) (agent.Tool, error) { return tool_linechart.Tool(env) }
func PieChartTool(env *toolsutil.ChartEnv) (agent.Tool, error)  { return tool_piechart.Tool(env) }
func HistogramTool(env *toolsutil.ChartEnv) (agent.Tool, error) { return tool_histogram.Tool(env) }

// All builds every tool. The keyword tool is left out when no index is given.
func All(d Deps) ([]agent.Tool, error) {
	env := &toolsutil.ChartEnv{Fs: d.Fs, Scratch: d.Scratch, ImageDir: d.ImageDir}

	var out []agent.Tool
	add := func(t agent.Tool, err error) error {
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}

	steps := []func() error{
		func() error { return add(SchemaCheckTool(d.Primary)) },
		func() error { return add(QueryDataTool(d.Primary, d.Scratch)) },
		func() error { return add(BarChartTool(env)) },
		func() error { return add(LineChartTool(env)) },
		func() error { return add(PieChartTool(env)) },
		func() error { return add(HistogramTool(env)) },
	}
	if d.Keywords != nil {
		steps = append(steps, func() error { return add(SimilarKeywordsTool(d.Keywords)) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to build tool: %w", err)
		}
	}
	return out, nil
}

// NewToolbox registers every tool with logging and tracing middleware.
func NewToolbox(d Deps, logger *slog.Logger) (*agent.DefaultToolbox, error) {
	all, err := All(d)
	if err != nil {
		return nil, err
	}
	tb := agent.NewToolbox[agent.Tool]()
	tb.RegisterMiddleware(agent.TracingMiddleware())
	if logger != nil {
		tb.RegisterMiddleware(agent.LoggingMiddleware(logger))
	}
	for _, t := range all {
		if err := tb.RegisterTool(t); err != nil {
			return nil, err
		}
	}
	return tb, nil
}
