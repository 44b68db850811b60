package rundriver

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/storage"
	"github.com/elee1766/dataagent/src/tools"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// ChartInfo is the metadata of one chart rendered during a run.
type ChartInfo struct {
	Type          string           `json:"type"`
	Visualization map[string]any   `json:"visualization"`
	SQLQuery      string           `json:"sql_query"`
	ChartTitle    string           `json:"chart_title"`
	ImagePath     string           `json:"image_path"`
	Data          []map[string]any `json:"data,omitempty"`
	// SnapshotError is set when a requery snapshot failed.
	SnapshotError string `json:"snapshot_error,omitempty"`
}

// resolveBatch turns every pending call into exactly one output, in order.
// Calls run one at a time since a chart usually reads what the query before
// it wrote.
func (d *Driver) resolveBatch(ctx context.Context, threadID, runID string, calls []aisdk.ToolCall) ([]aisdk.ToolOutput, []ChartInfo) {
	outputs := make([]aisdk.ToolOutput, 0, len(calls))
	var infos []ChartInfo

	for _, call := range calls {
		var snapshot *datastore.ResultSet
		var snapshotErr error
		if d.policy.SnapshotMode == SnapshotRequery && tools.IsChartTool(call.Function.Name) {
			snapshot, snapshotErr = d.requery(ctx, call)
		}

		d.emit(Event{Type: EventToolCall, ThreadID: threadID, RunID: runID, Tool: call.Function.Name})
		res := d.toolbox.Dispatch(ctx, call)
		outputs = append(outputs, res.Output)

		if res.Failed() {
			d.emit(Event{Type: EventToolError, ThreadID: threadID, RunID: runID, Tool: call.Function.Name})
		} else {
			d.emit(Event{Type: EventToolResult, ThreadID: threadID, RunID: runID, Tool: call.Function.Name})
		}
		d.recordTool(ctx, threadID, runID, res)

		if res.Failed() {
			continue
		}
		result, ok := res.Response.Value.(*charts.Result)
		if !ok || result == nil {
			continue
		}
		info := ChartInfo{
			Type:          result.Type,
			Visualization: result.Visualization,
			SQLQuery:      result.SQLQuery,
			ChartTitle:    result.ChartTitle,
			ImagePath:     result.ImagePath,
			Data:          result.Data.Records(),
		}
		if d.policy.SnapshotMode == SnapshotRequery {
			info.Data = snapshot.Records()
			if snapshotErr != nil {
				info.SnapshotError = snapshotErr.Error()
			}
		}
		infos = append(infos, info)
	}
	return outputs, infos
}

// requery runs the chart call's sql_query against the session's scratch table.
func (d *Driver) requery(ctx context.Context, call aisdk.ToolCall) (*datastore.ResultSet, error) {
	if d.scratch == nil {
		return nil, datastore.ErrNoScratchData
	}
	var args struct {
		SQLQuery string `json:"sql_query"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(call.Function.Arguments)), &args); err != nil {
		return nil, err
	}
	table := d.scratch.TableFor(toolsutil.SessionFrom(ctx))
	rs, err := d.scratch.Query(ctx, table, args.SQLQuery)
	if err != nil {
		d.logger.Warn("chart snapshot query failed", "tool", call.Function.Name, "error", err)
		return nil, err
	}
	return rs, nil
}

func (d *Driver) recordTool(ctx context.Context, threadID, runID string, res agent.Result) {
	if d.recorder == nil {
		return
	}
	exec := &storage.ToolExecution{
		RunID:      runID,
		ThreadID:   threadID,
		ToolCallID: res.Call.ID,
		ToolName:   res.Call.Function.Name,
		Input:      res.Call.Function.Arguments,
		Output:     res.Output.Output,
		IsError:    res.Failed(),
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if exec.IsError && res.Response != nil {
		exec.Error = string(res.Response.Content)
	}
	if err := d.recorder.RecordToolExecution(ctx, exec); err != nil {
		d.logger.Warn("failed to record tool execution", "tool", exec.ToolName, "error", err)
	}
}
