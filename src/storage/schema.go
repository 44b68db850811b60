package storage

import "time"

// Session maps an HTTP session id to a hosted conversation thread.
type Session struct {
	SessionID string    `json:"session_id" db:"session_id"`
	ThreadID  string    `json:"thread_id" db:"thread_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Run is one driven assistant run.
type Run struct {
	ID         string          `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	ThreadID   string          `json:"thread_id" db:"thread_id"`
	Status     string          `json:"status" db:"status"`
	Error      string          `json:"error" db:"error"`
	Charts     JSONStringArray `json:"charts" db:"charts"` // image paths
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}

type ToolExecution struct {
	ID         string    `json:"id" db:"id"`
	RunID      string    `json:"run_id" db:"run_id"`
	ThreadID   string    `json:"thread_id" db:"thread_id"`
	ToolCallID string    `json:"tool_call_id" db:"tool_call_id"`
	ToolName   string    `json:"tool_name" db:"tool_name"`
	Input      string    `json:"input" db:"input"`
	Output     string    `json:"output" db:"output"`
	Error      string    `json:"error" db:"error"`
	IsError    bool      `json:"is_error" db:"is_error"`
	DurationMs int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MigrationStatus reports whether one embedded migration has been applied.
type MigrationStatus struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}
