package oaiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryCount: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestCreateChatCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("OpenAI-Beta"))

		var req aisdk.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, []string{"#"}, req.Stop)

		w.Write([]byte(`{"id":"c1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"SELECT 1"}}],"usage":{"total_tokens":7}}`))
	})

	resp, err := client.CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []*aisdk.Message{{Role: "user", Content: "hi"}},
		Stop:     []string{"#"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", resp.FirstContent())
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestCreateChatCompletionEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body), "body must be replayed on every attempt")
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"object":"list","data":[{"index":0,"embedding":[0.1,0.2]}]}`))
	})

	resp, err := client.CreateEmbedding(context.Background(), &aisdk.EmbeddingRequest{Model: "e", Input: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []float32{0.1, 0.2}, resp.Data[0].Embedding)
}

func TestRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.RetrieveRun(context.Background(), "thread_1", "run_1")
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("X-Request-Id", "req_1")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key","param":null}}`))
	})

	_, err := client.CreateThread(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.Equal(t, "", apiErr.Param)
	assert.Equal(t, "req_1", apiErr.RequestID)
}

func TestRateLimitRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`))
	})

	_, err := client.CreateThread(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRateLimit())
	assert.Equal(t, 2*time.Second, GetRetryDelay(apiErr, 1, time.Second))
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CreateThread(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAssistantEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads":
			w.Write([]byte(`{"id":"thread_1","object":"thread"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/messages":
			var req aisdk.CreateMessageRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "user", req.Role)
			w.Write([]byte(`{"id":"msg_1","role":"user"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/runs":
			var req aisdk.CreateRunRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "asst_1", req.AssistantID)
			w.Write([]byte(`{"id":"run_1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/runs/run_1":
			w.Write([]byte(`{"id":"run_1","status":"requires_action","required_action":{"type":"submit_tool_outputs","submit_tool_outputs":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"schema_check","arguments":"{}"}}]}}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/runs/run_1/submit_tool_outputs":
			var req aisdk.SubmitToolOutputsRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if assert.Len(t, req.ToolOutputs, 1) {
				assert.Equal(t, "call_1", req.ToolOutputs[0].ToolCallID)
			}
			w.Write([]byte(`{"id":"run_1","status":"in_progress"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/messages":
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			assert.Equal(t, "desc", r.URL.Query().Get("order"))
			w.Write([]byte(`{"data":[{"id":"msg_2","role":"assistant","content":[{"type":"text","text":{"value":"done","annotations":[]}}]}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	thread, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", thread.ID)

	_, err = client.AddMessage(ctx, thread.ID, &aisdk.CreateMessageRequest{Role: "user", Content: "hello"})
	require.NoError(t, err)

	run, err := client.CreateRun(ctx, thread.ID, &aisdk.CreateRunRequest{AssistantID: "asst_1"})
	require.NoError(t, err)
	assert.Equal(t, aisdk.RunStatusQueued, run.Status)

	run, err = client.RetrieveRun(ctx, thread.ID, run.ID)
	require.NoError(t, err)
	calls := run.PendingToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "schema_check", calls[0].Function.Name)
	assert.Equal(t, "{}", calls[0].Function.Arguments)

	run, err = client.SubmitToolOutputs(ctx, thread.ID, run.ID, []aisdk.ToolOutput{{ToolCallID: "call_1", Output: "{}"}})
	require.NoError(t, err)
	assert.Equal(t, aisdk.RunStatusInProgress, run.Status)

	list, err := client.ListMessages(ctx, thread.ID, &aisdk.ListMessagesParams{Limit: 1, Order: "desc"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "done", list.Data[0].Text())
}

func TestSpanPath(t *testing.T) {
	assert.Equal(t, "/threads/{id}/runs/{id}", spanPath("/threads/thread_abc/runs/run_def"))
	assert.Equal(t, "/threads/{id}/messages", spanPath("/threads/thread_abc/messages?limit=1"))
}

func TestStatefulPostNotRetried(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
	}{
		{name: "add message", call: func(c *Client) error {
			_, err := c.AddMessage(context.Background(), "thread_1", &aisdk.CreateMessageRequest{Role: "user", Content: "hi"})
			return err
		}},
		{name: "create run", call: func(c *Client) error {
			_, err := c.CreateRun(context.Background(), "thread_1", &aisdk.CreateRunRequest{AssistantID: "asst_1"})
			return err
		}},
		{name: "submit tool outputs", call: func(c *Client) error {
			_, err := c.SubmitToolOutputs(context.Background(), "thread_1", "run_1", nil)
			return err
		}},
		{name: "create thread", call: func(c *Client) error {
			_, err := c.CreateThread(context.Background())
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"upstream broke","type":"server_error"}}`))
			})

			err := tt.call(client)
			require.Error(t, err)
			assert.Equal(t, int32(1), attempts.Load(), "a request with side effects is sent once")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			assert.Equal(t, "upstream broke", apiErr.Message)
		})
	}
}

// flakyTransport fails the first attempts with err before handing requests
// to the default transport.
type flakyTransport struct {
	failures int
	err      error
	attempts atomic.Int32
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if int(f.attempts.Add(1)) <= f.failures {
		if r.Body != nil {
			r.Body.Close()
		}
		return nil, f.err
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestTransportFailureRetries(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	midStream := io.ErrUnexpectedEOF

	tests := []struct {
		name     string
		err      error
		post     bool
		attempts int32
		wantErr  bool
	}{
		{name: "post never sent is retried", err: dialErr, post: true, attempts: 3},
		{name: "post that may have arrived is not retried", err: midStream, post: true, attempts: 1, wantErr: true},
		{name: "get is retried after any failure", err: midStream, attempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"id":"run_1","status":"queued"}`))
			})
			transport := &flakyTransport{failures: 2, err: tt.err}
			client.httpClient.Transport = transport

			var err error
			if tt.post {
				_, err = client.CreateRun(context.Background(), "thread_1", &aisdk.CreateRunRequest{AssistantID: "asst_1"})
			} else {
				_, err = client.RetrieveRun(context.Background(), "thread_1", "run_1")
			}
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.attempts, transport.attempts.Load())
		})
	}
}

func TestCancelRun(t *testing.T) {
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/threads/thread_1/runs/run_1/cancel", r.URL.Path)
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"run_1","status":"cancelling"}`))
	})

	run, err := client.CancelRun(context.Background(), "thread_1", "run_1")
	require.NoError(t, err)
	assert.Equal(t, aisdk.RunStatusCancelling, run.Status)
	assert.Equal(t, int32(2), attempts.Load(), "cancel is safe to repeat")
}
