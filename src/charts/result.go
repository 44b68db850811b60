package charts

import "github.com/elee1766/dataagent/src/datastore"

// Chart types reported in chart metadata.
const (
	TypeBar       = "bar"
	TypeLine      = "line"
	TypePie       = "pie"
	TypeHistogram = "histogram"
	TypeScatter   = "scatter"
)

// Result describes a rendered chart and the rows it was drawn from.
type Result struct {
	Type          string               `json:"type"`
	Visualization map[string]any       `json:"visualization"`
	SQLQuery      string               `json:"sql_query"`
	ChartTitle    string               `json:"chart_title"`
	ImagePath     string               `json:"image_path"`
	Summary       string               `json:"summary"`
	Data          *datastore.ResultSet `json:"-"`
}

// ToolText is what the model sees.
func (r *Result) ToolText() string {
	return r.Summary
}
