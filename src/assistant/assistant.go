// Package assistant defines the hosted data assistant: its instructions and
// the tool declarations it is created with.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/aisdk"
)

const (
	DefaultName  = "Data Agent"
	DefaultModel = "gpt-4o"
)

// Options selects the assistant's identity.
type Options struct {
	Name  string
	Model string
	// Now stamps the instructions; defaults to time.Now.
	Now func() time.Time
}

// Definition builds the assistant declaration for every tool in toolbox.
func Definition(opts Options, toolbox *agent.DefaultToolbox) (*aisdk.Assistant, error) {
	if toolbox == nil {
		return nil, errors.New("toolbox is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tools := toolbox.Tools()
	if len(tools) == 0 {
		return nil, errors.New("no tools registered")
	}
	return &aisdk.Assistant{
		Name:         opts.Name,
		Model:        opts.Model,
		Instructions: Instructions(opts.Now()),
		Tools:        agent.ToChatTools(tools),
	}, nil
}

// Deploy creates the assistant on the hosted service and returns it with
// its service-assigned id.
func Deploy(ctx context.Context, mgr aisdk.AssistantManager, def *aisdk.Assistant, logger *slog.Logger) (*aisdk.Assistant, error) {
	if logger == nil {
		logger = slog.Default()
	}
	created, err := mgr.CreateAssistant(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	if created.ID == "" {
		return nil, errors.New("service returned an assistant without an id")
	}
	logger.Info("assistant created", "id", created.ID, "name", created.Name, "model", created.Model, "tools", len(def.Tools))
	return created, nil
}
