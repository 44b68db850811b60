package visualize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/elee1766/dataagent/src/charts"
)

// Suggestion is the chart the model proposes for a result.
type Suggestion struct {
	ChartType string `json:"chart_type"`
	XAxis     string `json:"x_axis"`
	YAxis     string `json:"y_axis"`
	Title     string `json:"title"`
}

var fencedRe = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// ParseSuggestion reads the JSON object inside the first fenced block of
// content. Unfenced content is accepted when it is a JSON object by itself.
func ParseSuggestion(content string) (*Suggestion, bool) {
	raw := strings.TrimSpace(content)
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, false
	}
	if s.Title == "" {
		s.Title = "Data Visualization"
	}
	return &s, true
}

// Kind normalizes the suggested chart type to bar, line or scatter. It
// returns "" for anything else.
func (s *Suggestion) Kind() string {
	switch strings.ToLower(strings.TrimSpace(s.ChartType)) {
	case "bar", "bar chart":
		return charts.TypeBar
	case "line", "line chart":
		return charts.TypeLine
	case "scatter", "scatter plot", "scatter chart":
		return charts.TypeScatter
	}
	return ""
}

// Complete reports whether type and both axes are present.
func (s *Suggestion) Complete() bool {
	return s.ChartType != "" && s.XAxis != "" && s.YAxis != ""
}
