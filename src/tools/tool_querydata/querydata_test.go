package tool_querydata

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

func setup(t *testing.T) (*datastore.Primary, *datastore.Scratch) {
	t.Helper()
	dir := t.TempDir()

	primary, err := datastore.OpenPrimary(datastore.DriverSQLite, filepath.Join(dir, "primary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { primary.Close() })
	_, err = primary.DB().Exec(`
		CREATE TABLE data_pengadaan (satuan_kerja TEXT, total_pagu REAL);
		INSERT INTO data_pengadaan VALUES ('A', 1), ('B', 2), ('C', 3), ('D', 4), ('E', 5), ('F', 6), ('G', 7);
	`)
	require.NoError(t, err)

	scratch, err := datastore.OpenScratch(filepath.Join(dir, "scratch.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { scratch.Close() })
	return primary, scratch
}

func call(args string) *aisdk.ToolCall {
	return &aisdk.ToolCall{ID: "call_1", Type: "function", Function: aisdk.FunctionCall{Name: Name, Arguments: args}}
}

func TestQueryDataTool(t *testing.T) {
	primary, scratch := setup(t)
	tool, err := Tool(primary, scratch)
	require.NoError(t, err)
	assert.Equal(t, Name, tool.GetName())
	assert.Equal(t, []string{"query"}, tool.GetParameters().Required)

	ctx := toolsutil.WithSession(context.Background(), "s1")

	tests := []struct {
		name        string
		args        string
		expectError string
		check       func(t *testing.T, out map[string]any)
	}{
		{
			name: "stores result and previews five rows",
			args: `{"query":"SELECT satuan_kerja, total_pagu FROM data_pengadaan ORDER BY total_pagu"}`,
			check: func(t *testing.T, out map[string]any) {
				schema := out["schema"].(map[string]any)
				assert.Equal(t, []any{"satuan_kerja", "total_pagu"}, schema["columns"])
				assert.Len(t, out["first_rows"], 5)
				assert.Equal(t, float64(7), out["row_count"])
			},
		},
		{
			name: "empty result is stored",
			args: `{"query":"SELECT satuan_kerja FROM data_pengadaan WHERE total_pagu > 100"}`,
			check: func(t *testing.T, out map[string]any) {
				assert.Empty(t, out["first_rows"])
				assert.Equal(t, float64(0), out["row_count"])
			},
		},
		{
			name:        "rejects modification",
			args:        `{"query":"DELETE FROM data_pengadaan"}`,
			expectError: "query is not allowed",
		},
		{
			name:        "bad sql",
			args:        `{"query":"SELECT nope FROM data_pengadaan"}`,
			expectError: "query failed",
		},
		{
			name:        "missing query",
			args:        `{}`,
			expectError: "required field 'query' is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tool.Execute(ctx, call(tt.args))
			require.NoError(t, err)
			if tt.expectError != "" {
				assert.True(t, resp.IsError)
				assert.Contains(t, string(resp.Content), tt.expectError)
				return
			}
			require.False(t, resp.IsError, string(resp.Content))
			var out map[string]any
			require.NoError(t, json.Unmarshal(resp.Content, &out))
			tt.check(t, out)
		})
	}
}

func TestQueryDataReplacesScratch(t *testing.T) {
	primary, scratch := setup(t)
	tool, err := Tool(primary, scratch)
	require.NoError(t, err)
	ctx := toolsutil.WithSession(context.Background(), "s1")
	table := scratch.TableFor("s1")

	_, err = tool.Execute(ctx, call(`{"query":"SELECT * FROM data_pengadaan"}`))
	require.NoError(t, err)
	first, err := scratch.All(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 7, first.Len())

	// same query, same contents
	_, err = tool.Execute(ctx, call(`{"query":"SELECT * FROM data_pengadaan"}`))
	require.NoError(t, err)
	again, err := scratch.All(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = tool.Execute(ctx, call(`{"query":"SELECT satuan_kerja FROM data_pengadaan WHERE total_pagu < 3"}`))
	require.NoError(t, err)
	latest, err := scratch.All(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"satuan_kerja"}, latest.Columns)
	assert.Equal(t, 2, latest.Len())

	// a failed query leaves the previous result in place
	resp, err := tool.Execute(ctx, call(`{"query":"DROP TABLE data_pengadaan"}`))
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	kept, err := scratch.All(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, latest, kept)
}
