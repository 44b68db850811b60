package aisdk

import "strings"

// RunStatus is the lifecycle label a hosted run reports.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal reports whether the run will not change status again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// Succeeded reports whether the status is the single success outcome.
func (s RunStatus) Succeeded() bool {
	return s == RunStatusCompleted
}

// Assistant is a hosted assistant definition.
type Assistant struct {
	ID           string      `json:"id,omitempty"`
	Object       string      `json:"object,omitempty"`
	Name         string      `json:"name"`
	Model        string      `json:"model"`
	Instructions string      `json:"instructions"`
	Tools        []*ChatTool `json:"tools"`
	CreatedAt    int64       `json:"created_at,omitempty"`
}

// Thread is a hosted conversation handle.
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

// CreateMessageRequest appends a message to a thread.
type CreateMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadMessage is a message stored on a hosted thread.
type ThreadMessage struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	RunID     string           `json:"run_id,omitempty"`
	Content   []MessageContent `json:"content"`
	CreatedAt int64            `json:"created_at"`
}

type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

type MessageText struct {
	Value       string `json:"value"`
	Annotations []any  `json:"annotations,omitempty"`
}

// Text joins every text part of the message.
func (m *ThreadMessage) Text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// MessageList is one page of thread messages.
type MessageList struct {
	Object  string          `json:"object"`
	Data    []ThreadMessage `json:"data"`
	FirstID string          `json:"first_id"`
	LastID  string          `json:"last_id"`
	HasMore bool            `json:"has_more"`
}

// ListMessagesParams narrows a message listing.
type ListMessagesParams struct {
	Limit int
	Order string // "asc" or "desc"
	RunID string
}

// CreateRunRequest starts a run on a thread.
type CreateRunRequest struct {
	AssistantID            string `json:"assistant_id"`
	Model                  string `json:"model,omitempty"`
	Instructions           string `json:"instructions,omitempty"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

// Run is one hosted attempt to advance a thread by a turn.
type Run struct {
	ID             string          `json:"id"`
	Object         string          `json:"object"`
	ThreadID       string          `json:"thread_id"`
	AssistantID    string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
	CreatedAt      int64           `json:"created_at"`
	CompletedAt    int64           `json:"completed_at,omitempty"`
}

// PendingToolCalls returns the calls of a requires_action episode.
func (r *Run) PendingToolCalls() []ToolCall {
	if r == nil || r.RequiredAction == nil {
		return nil
	}
	return r.RequiredAction.SubmitToolOutputs.ToolCalls
}

type RequiredAction struct {
	Type              string            `json:"type"`
	SubmitToolOutputs SubmitToolOutputs `json:"submit_tool_outputs"`
}

type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// RunError is the service's explanation of a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitToolOutputsRequest is the atomic batch for one requires_action episode.
type SubmitToolOutputsRequest struct {
	ToolOutputs []ToolOutput `json:"tool_outputs"`
}
