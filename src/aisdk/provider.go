package aisdk

import (
	"context"
)

// Completer produces chat completions (text, JSON suggestions, vision).
type Completer interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

// AssistantClient is the thread/run surface of a hosted assistant service.
type AssistantClient interface {
	CreateThread(ctx context.Context) (*Thread, error)
	AddMessage(ctx context.Context, threadID string, req *CreateMessageRequest) (*ThreadMessage, error)
	CreateRun(ctx context.Context, threadID string, req *CreateRunRequest) (*Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID string, params *ListMessagesParams) (*MessageList, error)
}

// AssistantManager creates hosted assistant definitions.
type AssistantManager interface {
	CreateAssistant(ctx context.Context, assistant *Assistant) (*Assistant, error)
}
