package tool_piechart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/tools/tooltest"
)

func TestPieChartTool(t *testing.T) {
	tests := []struct {
		name        string
		args        string
		expectError string
		check       func(t *testing.T, res *charts.Result, text string)
	}{
		{
			name: "packages per unit",
			args: `{"sql_query":"SELECT satuan_kerja, COUNT(*) AS jumlah_paket FROM intermediary_table GROUP BY satuan_kerja ORDER BY satuan_kerja","label_column":"satuan_kerja","value_column":"jumlah_paket","chart_title":"Packages","image_filename":"pie.png"}`,
			check: func(t *testing.T, res *charts.Result, text string) {
				assert.Equal(t, charts.TypePie, res.Type)
				assert.Equal(t, "jumlah_paket", res.Visualization["value_column"])
				assert.Contains(t, text, "Pie chart saved to images/pie.png. 2 slices of jumlah_paket by satuan_kerja, total 4.")
				assert.Contains(t, text, "Dinas A: 3 (75.0%); Dinas B: 1 (25.0%)")
			},
		},
		{
			name:        "negative value",
			args:        `{"sql_query":"SELECT satuan_kerja, -1 AS v FROM intermediary_table","label_column":"satuan_kerja","value_column":"v","chart_title":"x","image_filename":"x.png"}`,
			expectError: "is negative",
		},
		{
			name:        "all zero",
			args:        `{"sql_query":"SELECT satuan_kerja, 0 AS v FROM intermediary_table","label_column":"satuan_kerja","value_column":"v","chart_title":"x","image_filename":"x.png"}`,
			expectError: "every pie value is zero",
		},
		{
			name:        "missing label column",
			args:        `{"sql_query":"SELECT satuan_kerja FROM intermediary_table","label_column":"unit","value_column":"satuan_kerja","chart_title":"x","image_filename":"x.png"}`,
			expectError: "column not found in query result: unit",
		},
		{
			name:        "no rows",
			args:        `{"sql_query":"SELECT satuan_kerja, 1 AS v FROM intermediary_table WHERE 1 = 0","label_column":"satuan_kerja","value_column":"v","chart_title":"x","image_filename":"x.png"}`,
			expectError: "query returned no rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tooltest.NewChartEnv(t)
			tooltest.Seed(t, env, []string{"satuan_kerja", "kode_rup"},
				[]any{"Dinas A", "R1"},
				[]any{"Dinas A", "R2"},
				[]any{"Dinas B", "R3"},
				[]any{"Dinas A", "R4"},
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
			tt.check(t, resp.Value.(*charts.Result), string(resp.Content))
		})
	}
}

func TestPieChartImageFile(t *testing.T) {
	env := tooltest.NewChartEnv(t)
	tooltest.Seed(t, env, []string{"satuan_kerja", "kode_rup"},
		[]any{"Dinas A", "R1"},
		[]any{"Dinas B", "R2"},
	)
	tool, err := Tool(env)
	require.NoError(t, err)

	tooltest.CheckImageFile(t, env, tool, "images/same.png",
		`{"sql_query":"SELECT satuan_kerja, COUNT(*) AS n FROM intermediary_table GROUP BY satuan_kerja","label_column":"satuan_kerja","value_column":"n","chart_title":"Packages","image_filename":"same.png"}`,
		`{"sql_query":"SELECT satuan_kerja, 0 AS n FROM intermediary_table","label_column":"satuan_kerja","value_column":"n","chart_title":"Packages","image_filename":"same.png"}`,
	)
}
