// Package tooltest provides fixtures for tool tests.
package tooltest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// Session is the session id the fixtures seed data for.
const Session = "test-session"

// NewChartEnv returns a chart environment with an in-memory filesystem and a
// temporary scratch database.
func NewChartEnv(t *testing.T) *toolsutil.ChartEnv {
	t.Helper()
	scratch, err := datastore.OpenScratch(filepath.Join(t.TempDir(), "scratch.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { scratch.Close() })
	return &toolsutil.ChartEnv{Fs: afero.NewMemMapFs(), Scratch: scratch, ImageDir: "images"}
}

// Seed stores rows as the session's intermediary data.
func Seed(t *testing.T, env *toolsutil.ChartEnv, columns []string, rows ...[]any) {
	t.Helper()
	rs := &datastore.ResultSet{Columns: columns}
	for _, r := range rows {
		require.Len(t, r, len(columns))
		rec := make(map[string]any, len(columns))
		for i, c := range columns {
			rec[c] = r[i]
		}
		rs.Rows = append(rs.Rows, rec)
	}
	ctx := context.Background()
	require.NoError(t, env.Scratch.Replace(ctx, env.Scratch.TableFor(Session), rs))
}

// Context carries the fixture session.
func Context() context.Context {
	return toolsutil.WithSession(context.Background(), Session)
}

// Execute runs tool with raw JSON arguments in the fixture session.
func Execute(t *testing.T, tool agent.Tool, args string) *aisdk.ToolResponse {
	t.Helper()
	resp, err := tool.Execute(Context(), &aisdk.ToolCall{
		ID:       "call_test",
		Type:     "function",
		Function: aisdk.FunctionCall{Name: tool.GetName(), Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

// Files lists every file under dir.
func Files(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	var out []string
	exists, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	if !exists {
		return nil
	}
	require.NoError(t, afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			out = append(out, path)
		}
		return nil
	}))
	return out
}

// CheckImageFile pins the image file contract of a chart tool. A stale file
// at path survives a failing call, successful calls replace it with a PNG
// each time, and a later failing call leaves the last PNG untouched.
func CheckImageFile(t *testing.T, env *toolsutil.ChartEnv, tool agent.Tool, path, okArgs, failArgs string) {
	t.Helper()
	stale := []byte("stale bytes")
	require.NoError(t, env.Fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(env.Fs, path, stale, 0o644))

	resp := Execute(t, tool, failArgs)
	require.True(t, resp.IsError, string(resp.Content))
	data, err := afero.ReadFile(env.Fs, path)
	require.NoError(t, err)
	assert.Equal(t, stale, data, "failing call touched the existing file")

	for i := range 2 {
		resp := Execute(t, tool, okArgs)
		require.False(t, resp.IsError, "call %d: %s", i, string(resp.Content))
		data, err := afero.ReadFile(env.Fs, path)
		require.NoError(t, err)
		require.Greater(t, len(data), 4)
		assert.Equal(t, "\x89PNG", string(data[:4]), "call %d did not overwrite", i)
	}
	assert.Equal(t, []string{path}, Files(t, env.Fs, filepath.Dir(path)))

	before, err := afero.ReadFile(env.Fs, path)
	require.NoError(t, err)
	resp = Execute(t, tool, failArgs)
	require.True(t, resp.IsError, string(resp.Content))
	after, err := afero.ReadFile(env.Fs, path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failing call touched the existing file")
}
