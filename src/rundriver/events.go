package rundriver

import (
	"fmt"
	"time"

	"github.com/elee1766/dataagent/src/aisdk"
)

// EventType labels a progress event.
type EventType string

const (
	EventRunCreated   EventType = "run_created"
	EventStatus       EventType = "status"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventToolError    EventType = "tool_error"
	EventRunCompleted EventType = "run_completed"
)

// Event reports driver progress to an observer, e.g. a UI spinner.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ThreadID  string          `json:"thread_id"`
	RunID     string          `json:"run_id"`
	Status    aisdk.RunStatus `json:"status,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Message   string          `json:"message"`
}

func (d *Driver) emit(e Event) {
	if d.onProgress == nil {
		return
	}
	e.Timestamp = time.Now()
	if e.Message == "" {
		e.Message = defaultMessage(e)
	}
	d.onProgress(e)
}

func defaultMessage(e Event) string {
	switch e.Type {
	case EventRunCreated:
		return "Run started"
	case EventStatus:
		return fmt.Sprintf("Run status: %s", e.Status)
	case EventToolCall:
		return fmt.Sprintf("Running %s", e.Tool)
	case EventToolResult:
		return fmt.Sprintf("%s finished", e.Tool)
	case EventToolError:
		return fmt.Sprintf("%s failed", e.Tool)
	case EventRunCompleted:
		return "Run completed"
	}
	return string(e.Type)
}
