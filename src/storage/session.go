package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// GetSession retrieves a session mapping by id. A missing session is (nil, nil).
func GetSession(ctx context.Context, db sqlscan.Querier, sessionID string) (*Session, error) {
	query := `SELECT session_id, thread_id, created_at, updated_at FROM sessions WHERE session_id = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// InsertSession stores a mapping unless one already exists for the session.
// It reports whether this call created the row.
func InsertSession(ctx context.Context, db Execer, session *Session) (bool, error) {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	query := `INSERT INTO sessions (session_id, thread_id, created_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id) DO NOTHING`
	res, err := db.ExecContext(ctx, query, session.SessionID, session.ThreadID, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TouchSession bumps updated_at for a session.
func TouchSession(ctx context.Context, db Execer, sessionID string) error {
	query := `UPDATE sessions SET updated_at = ? WHERE session_id = ?`
	_, err := db.ExecContext(ctx, query, time.Now().UTC(), sessionID)
	return err
}

// ListSessions returns sessions, most recently used first.
func ListSessions(ctx context.Context, db sqlscan.Querier, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT session_id, thread_id, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT ?`
	var sessions []*Session
	if err := sqlscan.Select(ctx, db, &sessions, query, limit); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpsertRun inserts a run or updates its mutable fields.
func UpsertRun(ctx context.Context, db Execer, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Charts == nil {
		run.Charts = JSONStringArray{}
	}

	query := `INSERT INTO runs (id, session_id, thread_id, status, error, charts, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		error = excluded.error,
		charts = excluded.charts,
		finished_at = excluded.finished_at`
	_, err := db.ExecContext(ctx, query, run.ID, run.SessionID, run.ThreadID, run.Status, run.Error, run.Charts, run.StartedAt, run.FinishedAt)
	return err
}

// GetRun retrieves a run by id. A missing run is (nil, nil).
func GetRun(ctx context.Context, db sqlscan.Querier, id string) (*Run, error) {
	query := `SELECT id, session_id, thread_id, status, error, charts, started_at, finished_at FROM runs WHERE id = ?`
	var r Run
	err := sqlscan.Get(ctx, db, &r, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the runs of a session, newest first.
func ListRuns(ctx context.Context, db sqlscan.Querier, sessionID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, thread_id, status, error, charts, started_at, finished_at
	FROM runs WHERE session_id = ? ORDER BY started_at DESC LIMIT ?`
	var runs []*Run
	if err := sqlscan.Select(ctx, db, &runs, query, sessionID, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// CreateToolExecution records one dispatched tool call.
func CreateToolExecution(ctx context.Context, db Execer, exec *ToolExecution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tool_executions
	(id, run_id, thread_id, tool_call_id, tool_name, input, output, error, is_error, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		exec.ID, exec.RunID, exec.ThreadID, exec.ToolCallID, exec.ToolName,
		exec.Input, exec.Output, exec.Error, exec.IsError, exec.DurationMs, exec.CreatedAt)
	return err
}

// ListToolExecutions returns the tool executions of a run in execution order.
func ListToolExecutions(ctx context.Context, db sqlscan.Querier, runID string) ([]*ToolExecution, error) {
	query := `SELECT id, run_id, thread_id, tool_call_id, tool_name, input, output, error, is_error, duration_ms, created_at
	FROM tool_executions WHERE run_id = ? ORDER BY created_at, rowid`
	var execs []*ToolExecution
	if err := sqlscan.Select(ctx, db, &execs, query, runID); err != nil {
		return nil, err
	}
	return execs, nil
}
