package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/elee1766/dataagent/src/aisdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ToolExecutor is a function type for tool execution
type ToolExecutor func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)

// DefaultToolbox is the toolbox over the Tool interface.
type DefaultToolbox = Toolbox[Tool]

// Toolbox is the registry that resolves tool calls to tools.
type Toolbox[T Tool] struct {
	tools      map[string]T
	middleware []ToolMiddleware
}

// ToolMiddleware is a function that wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// NewToolbox creates a new tool manager.
func NewToolbox[T Tool]() *Toolbox[T] {
	return &Toolbox[T]{
		tools: make(map[string]T),
	}
}

// RegisterTool registers a tool.
func (tm *Toolbox[T]) RegisterTool(tool T) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := tm.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}

	tm.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware that will be applied to all tool executions.
// Middleware is applied in the order it's registered (first registered = outermost layer).
func (tm *Toolbox[T]) RegisterMiddleware(middleware ToolMiddleware) {
	tm.middleware = append(tm.middleware, middleware)
}

// Tools returns the registered tools sorted by name.
func (tm *Toolbox[T]) Tools() []T {
	names := make([]string, 0, len(tm.tools))
	for name := range tm.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		out = append(out, tm.tools[name])
	}
	return out
}

// ExecuteTool executes a tool call with middleware applied.
func (tm *Toolbox[T]) ExecuteTool(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	tool, exists := tm.tools[call.Function.Name]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", call.Function.Name)
	}

	toolExecutor := ToolExecutor(func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return tool.Execute(ctx, call)
	})

	finalExecutor := toolExecutor
	for i := len(tm.middleware) - 1; i >= 0; i-- {
		finalExecutor = tm.middleware[i](finalExecutor)
	}

	return finalExecutor(ctx, call)
}

// Result is the outcome of dispatching one tool call.
type Result struct {
	Call     aisdk.ToolCall
	Output   aisdk.ToolOutput
	Response *aisdk.ToolResponse
	Duration time.Duration
}

// Failed reports whether the call produced an error payload.
func (r Result) Failed() bool {
	return r.Response == nil || r.Response.IsError
}

// Dispatch resolves one tool call into exactly one output. It never returns
// an error: unknown tools, malformed arguments, handler errors and panics
// all become {"error": "..."} outputs.
func (tm *Toolbox[T]) Dispatch(ctx context.Context, call aisdk.ToolCall) (res Result) {
	start := time.Now()
	res.Call = call
	res.Output.ToolCallID = call.ID

	fail := func(msg string) {
		res.Response = errorResponse(msg)
		res.Output.Output = aisdk.ErrorOutput(msg)
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprintf("tool %s panicked: %v", call.Function.Name, r))
			slog.Default().Error("tool panic", "tool", call.Function.Name, "panic", r, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
	}()

	if !tm.HasTool(call.Function.Name) {
		fail(fmt.Sprintf("unknown tool: %s", call.Function.Name))
		return res
	}

	if args := strings.TrimSpace(call.Function.Arguments); args != "" {
		var parsed any
		if err := json.Unmarshal([]byte(args), &parsed); err != nil {
			fail(fmt.Sprintf("invalid arguments: %v", err))
			return res
		}
	}

	resp, err := tm.ExecuteTool(ctx, &call)
	switch {
	case err != nil:
		fail(err.Error())
	case resp == nil:
		fail(fmt.Sprintf("tool %s returned no response", call.Function.Name))
	case resp.IsError:
		res.Response = resp
		res.Output.Output = aisdk.ErrorOutput(string(resp.Content))
	default:
		res.Response = resp
		res.Output.Output = string(resp.Content)
	}
	return res
}

// GetTool returns a specific tool by name.
func (tm *Toolbox[T]) GetTool(name string) (T, bool) {
	tool, exists := tm.tools[name]
	return tool, exists
}

// HasTool checks if a tool is available.
func (tm *Toolbox[T]) HasTool(name string) bool {
	_, exists := tm.tools[name]
	return exists
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			logger.Info("executing tool", "tool", call.Function.Name, "call_id", call.ID)
			logger.Debug("tool arguments", "tool", call.Function.Name, "params", call.Function.Arguments)
			start := time.Now()
			result, err := next(ctx, call)
			switch {
			case err != nil:
				logger.Warn("tool execution failed", "tool", call.Function.Name, "error", err)
			case result != nil && result.IsError:
				logger.Warn("tool reported error", "tool", call.Function.Name, "error", string(result.Content))
			default:
				logger.Info("tool execution completed", "tool", call.Function.Name, "duration", time.Since(start))
			}
			return result, err
		}
	}
}

// TracingMiddleware wraps each tool execution in a span.
func TracingMiddleware() ToolMiddleware {
	tracer := otel.Tracer("github.com/elee1766/dataagent/src/agent")
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			ctx, span := tracer.Start(ctx, "tool "+call.Function.Name)
			defer span.End()
			span.SetAttributes(
				attribute.String("tool.name", call.Function.Name),
				attribute.String("tool.call_id", call.ID),
			)

			result, err := next(ctx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if result != nil && result.IsError {
				span.SetStatus(codes.Error, string(result.Content))
			}
			return result, err
		}
	}
}
