package oaiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elee1766/dataagent/src/aisdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

var (
	_ aisdk.Completer        = (*Client)(nil)
	_ aisdk.Embedder         = (*Client)(nil)
	_ aisdk.AssistantClient  = (*Client)(nil)
	_ aisdk.AssistantManager = (*Client)(nil)
)

var tracer = otel.Tracer("github.com/elee1766/dataagent/src/oaiclient")

// Client talks to an OpenAI-compatible API: chat completions, embeddings,
// assistants, threads and runs.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "openai_client"),
	}
}

// CreateChatCompletion sends a chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	var result aisdk.ChatCompletionResponse
	if err := c.do(ctx, http.MethodPost, "/chat/completions", req, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	c.logger.Info("chat completion successful", "model", result.Model, "usage_total", result.Usage.TotalTokens)
	return &result, nil
}

// CreateEmbedding returns one vector per input.
func (c *Client) CreateEmbedding(ctx context.Context, req *aisdk.EmbeddingRequest) (*aisdk.EmbeddingResponse, error) {
	var result aisdk.EmbeddingResponse
	if err := c.do(ctx, http.MethodPost, "/embeddings", req, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(req.Input) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmptyResponse, len(result.Data), len(req.Input))
	}
	return &result, nil
}

// CreateAssistant registers an assistant definition.
func (c *Client) CreateAssistant(ctx context.Context, assistant *aisdk.Assistant) (*aisdk.Assistant, error) {
	var result aisdk.Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", assistant, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateThread opens an empty conversation.
func (c *Client) CreateThread(ctx context.Context) (*aisdk.Thread, error) {
	var result aisdk.Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddMessage appends a message to a thread.
func (c *Client) AddMessage(ctx context.Context, threadID string, req *aisdk.CreateMessageRequest) (*aisdk.ThreadMessage, error) {
	var result aisdk.ThreadMessage
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateRun starts a run of an assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, req *aisdk.CreateRunRequest) (*aisdk.Run, error) {
	var result aisdk.Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetrieveRun polls a run's current state.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*aisdk.Run, error) {
	var result aisdk.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitToolOutputs resumes a run waiting on tool calls.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []aisdk.ToolOutput) (*aisdk.Run, error) {
	var result aisdk.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/submit_tool_outputs"
	if err := c.do(ctx, http.MethodPost, path, &aisdk.SubmitToolOutputsRequest{ToolOutputs: outputs}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelRun asks the service to stop a run that is still active.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*aisdk.Run, error) {
	var result aisdk.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMessages lists a thread's messages, newest first unless Order says otherwise.
func (c *Client) ListMessages(ctx context.Context, threadID string, params *aisdk.ListMessagesParams) (*aisdk.MessageList, error) {
	q := url.Values{}
	if params != nil {
		if params.Limit > 0 {
			q.Set("limit", strconv.Itoa(params.Limit))
		}
		if params.Order != "" {
			q.Set("order", params.Order)
		}
		if params.RunID != "" {
			q.Set("run_id", params.RunID)
		}
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result aisdk.MessageList
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do marshals in, performs the request with retries and decodes into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	ctx, span := tracer.Start(ctx, method+" "+spanPath(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := c.logger.With("method", method, "path", path)

	var body []byte
	if in != nil {
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	httpReq, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.doRequestWithRetry(httpReq)
	if err != nil {
		logger.Error("request failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("received error response", "status_code", resp.StatusCode)
		return c.handleError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Error("failed to decode response", "error", err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(path, "/threads") || strings.HasPrefix(path, "/assistants") {
		req.Header.Set("OpenAI-Beta", "assistants=v2")
	}
	if c.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.Organization)
	}

	return req, nil
}

// doRequestWithRetry performs an HTTP request with a linearly growing delay
// between attempts. Requests without side effects are retried on transport
// failures and 5xx responses. Requests that create or change state are only
// retried when the connection was never established, so a run or message is
// never created twice.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error

	logger := c.logger.With("url", req.URL.Path)
	safe := retrySafe(req.Method, req.URL.Path)

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	attempts := 0
	for i := 0; i < c.config.RetryCount; i++ {
		if i > 0 {
			timer := time.NewTimer(GetRetryDelay(lastErr, i, c.config.RetryDelay))
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}

		reqCopy := req.Clone(req.Context())
		if bodyBytes != nil {
			reqCopy.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		attempts++
		resp, err := c.httpClient.Do(reqCopy)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = err
			if !safe && !neverSent(err) {
				logger.Warn("request with side effects failed, not retrying", "error", err)
				return nil, fmt.Errorf("request failed: %w", err)
			}
			logger.Debug("request attempt failed", "attempt", i+1, "error", err)
			continue
		}

		// Success, client error, or a server error we may not repeat
		if resp.StatusCode < 500 || !safe {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		logger.Debug("server error, retrying", "attempt", i+1, "status_code", resp.StatusCode)
	}

	logger.Error("request failed after all retries", "attempts", attempts, "error", lastErr)
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// retrySafe reports whether repeating the request cannot duplicate state on
// the service. Cancelling a run twice leaves it cancelled.
func retrySafe(method, path string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete:
		return true
	case http.MethodPost:
		return strings.HasSuffix(path, "/chat/completions") ||
			strings.HasSuffix(path, "/embeddings") ||
			strings.HasSuffix(path, "/cancel")
	}
	return false
}

// neverSent reports whether err happened before the request reached the
// service.
func neverSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	requestID := resp.Header.Get("X-Request-Id")

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RequestID:  requestID,
		}
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
		Code:       stringify(errResp.Error.Code),
		Param:      stringify(errResp.Error.Param),
		Details:    errResp.Error.Details,
		RequestID:  requestID,
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if apiErr.Details == nil {
				apiErr.Details = make(map[string]interface{})
			}
			if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil {
				apiErr.Details["retry_after"] = secs
			} else {
				apiErr.Details["retry_after"] = retryAfter
			}
		}
	}

	return apiErr
}

// spanPath drops ids from a path so span names stay low-cardinality.
func spanPath(path string) string {
	path, _, _ = strings.Cut(path, "?")
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, "thread_") || strings.HasPrefix(s, "run_") || strings.HasPrefix(s, "asst_") {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}
