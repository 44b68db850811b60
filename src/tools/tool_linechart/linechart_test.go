package tool_linechart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/tools/tooltest"
)

func TestLineChartTool(t *testing.T) {
	tests := []struct {
		name        string
		args        string
		expectError string
		check       func(t *testing.T, res *charts.Result, text string)
	}{
		{
			name: "two series with secondary axis",
			args: `{"sql_query":"SELECT * FROM intermediary_table ORDER BY bulan","x_column":"bulan","y_columns":["total_pagu","jumlah_paket"],"y_labels":["Total Budget","Packages"],"chart_title":"Trend","image_filename":"trend.png"}`,
			check: func(t *testing.T, res *charts.Result, text string) {
				assert.Equal(t, charts.TypeLine, res.Type)
				assert.Contains(t, text, "Plotted 3 points of total_pagu and jumlah_paket over bulan from 2024-01 to 2024-04.")
				assert.Contains(t, text, "Total Budget: min 900, max 2400, mean 1600, sum 4800; first 1500, last 2400; peak Apr 2024 (2400), lowest Feb 2024 (900).")
				assert.Contains(t, text, "Packages: min 2, max 5")
				assert.Contains(t, text, "peak Feb 2024 (5), lowest Apr 2024 (2) (secondary axis).")
				assert.Contains(t, text, "(secondary axis)")
			},
		},
		{
			name: "single series",
			args: `{"sql_query":"SELECT bulan, total_pagu FROM intermediary_table","x_column":"bulan","y_columns":["total_pagu"],"chart_title":"Budget","image_filename":"budget"}`,
			check: func(t *testing.T, res *charts.Result, text string) {
				assert.Equal(t, "images/budget.png", res.ImagePath)
				assert.Contains(t, text, "Plotted 4 points")
				assert.Contains(t, text, "peak Apr 2024 (2400), lowest Mar 2024 (100).")
				assert.NotContains(t, text, "secondary")
			},
		},
		{
			name:        "three series",
			args:        `{"sql_query":"SELECT * FROM intermediary_table","x_column":"bulan","y_columns":["a","b","c"],"chart_title":"x","image_filename":"x.png"}`,
			expectError: "y_columns takes one or two columns",
		},
		{
			name:        "label count mismatch",
			args:        `{"sql_query":"SELECT * FROM intermediary_table","x_column":"bulan","y_columns":["total_pagu"],"y_labels":["a","b"],"chart_title":"x","image_filename":"x.png"}`,
			expectError: "one label per y column",
		},
		{
			name:        "missing y column",
			args:        `{"sql_query":"SELECT * FROM intermediary_table","x_column":"bulan","y_columns":["total_pagu","nilai"],"chart_title":"x","image_filename":"x.png"}`,
			expectError: "column not found in query result: nilai",
		},
		{
			name:        "single point",
			args:        `{"sql_query":"SELECT * FROM intermediary_table WHERE bulan = '2024-01'","x_column":"bulan","y_columns":["total_pagu"],"chart_title":"x","image_filename":"x.png"}`,
			expectError: "needs at least two rows",
		},
		{
			name:        "empty y_columns",
			args:        `{"sql_query":"SELECT * FROM intermediary_table","x_column":"bulan","y_columns":[],"chart_title":"x","image_filename":"x.png"}`,
			expectError: "y_columns takes one or two columns, got 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tooltest.NewChartEnv(t)
			tooltest.Seed(t, env, []string{"bulan", "jumlah_paket", "total_pagu"},
				[]any{"2024-01", int64(3), 1500.0},
				[]any{"2024-02", int64(5), 900.0},
				[]any{"2024-03", nil, 100.0},
				[]any{"2024-04", int64(2), 2400.0},
			)
			tool, err := Tool(env)
			require.NoError(t, err)

			resp := tooltest.Execute(t, tool, tt.args)
			if tt.expectError != "" {
				assert.True(t, resp.IsError)
				assert.Contains(t, string(resp.Content), tt.expectError)
				assert.Empty(t, tooltest.Files(t, env.Fs, "."))
				return
			}
			require.False(t, resp.IsError, string(resp.Content))
			res := resp.Value.(*charts.Result)
			assert.Equal(t, []string{res.ImagePath}, tooltest.Files(t, env.Fs, "images"))
			tt.check(t, res, string(resp.Content))
		})
	}
}

func TestLineChartDateAxisPeriods(t *testing.T) {
	env := tooltest.NewChartEnv(t)
	tooltest.Seed(t, env, []string{"tanggal", "total_pagu"},
		[]any{"2023-11-01", 400.0},
		[]any{"2023-12-01", 1200.0},
		[]any{"2024-01-01", 150.0},
		[]any{"2024-02-01", 700.0},
		[]any{"2024-02-17", 300.0},
	)
	tool, err := Tool(env)
	require.NoError(t, err)

	resp := tooltest.Execute(t, tool, `{"sql_query":"SELECT * FROM intermediary_table ORDER BY tanggal","x_column":"tanggal","y_columns":["total_pagu"],"chart_title":"Budget","image_filename":"budget.png"}`)
	require.False(t, resp.IsError, string(resp.Content))
	text := string(resp.Content)
	assert.Contains(t, text, "from 2023-11-01 to 2024-02-17.")
	assert.Contains(t, text, "peak Dec 2023 (1200), lowest Jan 2024 (150).")

	resp = tooltest.Execute(t, tool, `{"sql_query":"SELECT * FROM intermediary_table ORDER BY tanggal DESC LIMIT 2","x_column":"tanggal","y_columns":["total_pagu"],"chart_title":"Budget","image_filename":"budget.png"}`)
	require.False(t, resp.IsError, string(resp.Content))
	assert.Contains(t, string(resp.Content), "peak Feb 2024 (700), lowest 2024-02-17 (300).")
}

func TestLineChartImageFile(t *testing.T) {
	env := tooltest.NewChartEnv(t)
	tooltest.Seed(t, env, []string{"bulan", "total_pagu"},
		[]any{"2024-01", 1500.0},
		[]any{"2024-02", 900.0},
	)
	tool, err := Tool(env)
	require.NoError(t, err)

	tooltest.CheckImageFile(t, env, tool, "images/same.png",
		`{"sql_query":"SELECT * FROM intermediary_table ORDER BY bulan","x_column":"bulan","y_columns":["total_pagu"],"chart_title":"Trend","image_filename":"same.png"}`,
		`{"sql_query":"SELECT * FROM intermediary_table","x_column":"bulan","y_columns":["nilai"],"chart_title":"Trend","image_filename":"same.png"}`,
	)
}
