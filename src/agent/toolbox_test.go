package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text  string `json:"text" required:"true" description:"Text to echo"`
	Times int    `json:"times,omitempty"`
}

type echoOutput struct {
	Text string `json:"text"`
}

type summaryOutput struct {
	Path string
}

func (s summaryOutput) ToolText() string { return "saved to " + s.Path }

func newTestToolbox(t *testing.T) *DefaultToolbox {
	t.Helper()
	tb := NewToolbox[Tool]()

	require.NoError(t, tb.RegisterTool(MustNewGenericTool("echo", "echo text",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			return echoOutput{Text: in.Text}, nil
		})))
	require.NoError(t, tb.RegisterTool(MustNewGenericTool("fail", "always fails",
		func(ctx context.Context, in struct{}) (echoOutput, error) {
			return echoOutput{}, errors.New("column 'x' not found")
		})))
	require.NoError(t, tb.RegisterTool(MustNewGenericTool("boom", "panics",
		func(ctx context.Context, in struct{}) (echoOutput, error) {
			panic("kaboom")
		})))
	require.NoError(t, tb.RegisterTool(MustNewGenericTool("summary", "text result",
		func(ctx context.Context, in struct{}) (summaryOutput, error) {
			return summaryOutput{Path: "/images/a.png"}, nil
		})))
	return tb
}

func TestRegisterTool(t *testing.T) {
	tb := newTestToolbox(t)

	err := tb.RegisterTool(MustNewGenericTool("echo", "dup",
		func(ctx context.Context, in echoInput) (echoOutput, error) { return echoOutput{}, nil }))
	assert.Error(t, err)

	err = tb.RegisterTool(MustNewGenericTool("", "nameless",
		func(ctx context.Context, in echoInput) (echoOutput, error) { return echoOutput{}, nil }))
	assert.Error(t, err)

	names := []string{}
	for _, tool := range tb.Tools() {
		names = append(names, tool.GetName())
	}
	assert.Equal(t, []string{"boom", "echo", "fail", "summary"}, names)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name       string
		call       aisdk.ToolCall
		wantFailed bool
		wantOutput string
		wantErrSub string
	}{
		{
			name:       "success",
			call:       aisdk.ToolCall{ID: "c1", Function: aisdk.FunctionCall{Name: "echo", Arguments: `{"text":"hi"}`}},
			wantOutput: `{"text":"hi"}`,
		},
		{
			name:       "unknown tool",
			call:       aisdk.ToolCall{ID: "c2", Function: aisdk.FunctionCall{Name: "nope", Arguments: `{}`}},
			wantFailed: true,
			wantErrSub: "unknown tool: nope",
		},
		{
			name:       "invalid json",
			call:       aisdk.ToolCall{ID: "c3", Function: aisdk.FunctionCall{Name: "echo", Arguments: `{"text":`}},
			wantFailed: true,
			wantErrSub: "invalid arguments",
		},
		{
			name:       "wrong argument type",
			call:       aisdk.ToolCall{ID: "c4", Function: aisdk.FunctionCall{Name: "echo", Arguments: `{"text":5}`}},
			wantFailed: true,
			wantErrSub: "failed to parse input",
		},
		{
			name:       "missing required field",
			call:       aisdk.ToolCall{ID: "c5", Function: aisdk.FunctionCall{Name: "echo", Arguments: `{}`}},
			wantFailed: true,
			wantErrSub: "required field 'text' is missing",
		},
		{
			name:       "handler error",
			call:       aisdk.ToolCall{ID: "c6", Function: aisdk.FunctionCall{Name: "fail", Arguments: ``}},
			wantFailed: true,
			wantErrSub: "column 'x' not found",
		},
		{
			name:       "handler panic",
			call:       aisdk.ToolCall{ID: "c7", Function: aisdk.FunctionCall{Name: "boom", Arguments: `  `}},
			wantFailed: true,
			wantErrSub: "kaboom",
		},
		{
			name:       "text result",
			call:       aisdk.ToolCall{ID: "c8", Function: aisdk.FunctionCall{Name: "summary"}},
			wantOutput: "saved to /images/a.png",
		},
	}

	tb := newTestToolbox(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() {
				res = tb.Dispatch(context.Background(), tt.call)
			})

			assert.Equal(t, tt.call.ID, res.Output.ToolCallID)
			assert.Equal(t, tt.wantFailed, res.Failed())
			require.NotNil(t, res.Response)

			if !tt.wantFailed {
				assert.Equal(t, tt.wantOutput, res.Output.Output)
				return
			}

			var payload map[string]string
			require.NoError(t, json.Unmarshal([]byte(res.Output.Output), &payload), "error output must be JSON")
			assert.Contains(t, payload["error"], tt.wantErrSub)
		})
	}
}

func TestDispatchKeepsStructuredValue(t *testing.T) {
	tb := newTestToolbox(t)
	res := tb.Dispatch(context.Background(), aisdk.ToolCall{ID: "c", Function: aisdk.FunctionCall{Name: "summary"}})

	value, ok := res.Response.Value.(summaryOutput)
	require.True(t, ok)
	assert.Equal(t, "/images/a.png", value.Path)
}

func TestMiddlewareOrder(t *testing.T) {
	tb := newTestToolbox(t)
	var order []string
	mark := func(name string) ToolMiddleware {
		return func(next ToolExecutor) ToolExecutor {
			return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
				order = append(order, name)
				return next(ctx, call)
			}
		}
	}
	tb.RegisterMiddleware(mark("outer"))
	tb.RegisterMiddleware(mark("inner"))
	tb.RegisterMiddleware(TracingMiddleware())

	res := tb.Dispatch(context.Background(), aisdk.ToolCall{Function: aisdk.FunctionCall{Name: "echo", Arguments: `{"text":"x"}`}})
	assert.False(t, res.Failed())
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestGenericToolSchema(t *testing.T) {
	tool := MustNewGenericTool("echo", "echo text",
		func(ctx context.Context, in echoInput) (echoOutput, error) { return echoOutput{}, nil })

	schema := tool.GetParameters()
	require.NotNil(t, schema)
	assert.Equal(t, []string{"text"}, schema.Required)
	assert.Contains(t, schema.Properties, "text")
	assert.Contains(t, schema.Properties, "times")

	chat := ToChatTool(tool)
	assert.Equal(t, "function", chat.Type)
	assert.Equal(t, "echo", chat.Function.Name)
}

func TestNewGenericToolRejectsNonStruct(t *testing.T) {
	_, err := NewGenericTool("bad", "bad",
		func(ctx context.Context, in string) (echoOutput, error) { return echoOutput{}, nil })
	assert.Error(t, err)
}
