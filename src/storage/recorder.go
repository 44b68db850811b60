package storage

import (
	"context"
)

// Recorder persists run and tool execution history for the run driver.
type Recorder struct {
	db *DB
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) RecordRun(ctx context.Context, run *Run) error {
	return UpsertRun(ctx, r.db.db, run)
}

func (r *Recorder) RecordToolExecution(ctx context.Context, exec *ToolExecution) error {
	return CreateToolExecution(ctx, r.db.db, exec)
}
