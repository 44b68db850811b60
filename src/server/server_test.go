package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/oaiclient"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/session"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
	"github.com/elee1766/dataagent/src/visualize"
)

type turnCall struct {
	threadID, assistantID, message, session string
}

type fakeTurner struct {
	mu     sync.Mutex
	calls  []turnCall
	result *rundriver.TurnResult
	err    error

	// active tracks overlapping turns per session.
	active  sync.Map
	overlap atomic.Bool
	delay   time.Duration
}

func (f *fakeTurner) Turn(ctx context.Context, threadID, assistantID, message string) (*rundriver.TurnResult, error) {
	sess := toolsutil.SessionFrom(ctx)
	if _, busy := f.active.LoadOrStore(sess, true); busy {
		f.overlap.Store(true)
	}
	defer f.active.Delete(sess)
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls = append(f.calls, turnCall{threadID, assistantID, message, sess})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &rundriver.TurnResult{Response: "echo: " + message}, nil
}

type fakeVisualizer struct {
	res *visualize.Result
	err error
}

func (f *fakeVisualizer) Run(context.Context, visualize.Request) (*visualize.Result, error) {
	return f.res, f.err
}

type testEnv struct {
	srv     *Server
	turner  *fakeTurner
	fs      afero.Fs
	threads atomic.Int32
}

func newTestEnv(t *testing.T, vis Visualizer) *testEnv {
	t.Helper()
	env := &testEnv{turner: &fakeTurner{}, fs: afero.NewMemMapFs()}
	store := session.NewMemoryStore(func(context.Context) (string, error) {
		return fmt.Sprintf("thread_%d", env.threads.Add(1)), nil
	})
	srv, err := New(Config{
		Turner:       env.turner,
		Sessions:     store,
		Visualizer:   vis,
		AssistantID:  "asst_test",
		Fs:           env.fs,
		ImageDir:     "images",
		Version:      "test",
		NewSessionID: func() string { return "fresh-id" },
	})
	require.NoError(t, err)
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Turner: &fakeTurner{}, Sessions: session.NewMemoryStore(nil)})
	assert.Error(t, err, "assistant id is required")
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/chat", `{"message":"  hello  ","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hello", body["response"])
	assert.Equal(t, "s1", body["session_id"])
	assert.NotContains(t, body, "data")
	assert.NotContains(t, body, "charts_info")

	rec, _ = env.do(t, http.MethodPost, "/chat", `{"message":"again","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, toolsutil.DefaultSession, body["session_id"])

	require.Len(t, env.turner.calls, 3)
	assert.Equal(t, turnCall{"thread_1", "asst_test", "hello", "s1"}, env.turner.calls[0])
	assert.Equal(t, "thread_1", env.turner.calls[1].threadID, "a session keeps its thread")
	assert.Equal(t, "thread_2", env.turner.calls[2].threadID)
	assert.Equal(t, toolsutil.DefaultSession, env.turner.calls[2].session)
}

func TestChatDataAndCharts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.turner.result = &rundriver.TurnResult{
		Response: "done",
		Rows: &datastore.ResultSet{
			Columns: []string{"satuan_kerja", "total"},
			Rows:    []map[string]any{{"satuan_kerja": "Dinas A", "total": 10.0}},
		},
		Charts: []rundriver.ChartInfo{{
			Type:       "bar",
			ChartTitle: "Totals",
			ImagePath:  "images/bar.png",
		}},
	}

	rec, body := env.do(t, http.MethodPost, "/chat", `{"message":"chart it"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Dinas A", data[0].(map[string]any)["satuan_kerja"])

	charts := body["charts_info"].([]any)
	require.Len(t, charts, 1)
	chart := charts[0].(map[string]any)
	assert.Equal(t, "bar", chart["type"])
	assert.Equal(t, "images/bar.png", chart["image_path"])
	assert.Equal(t, "/images/bar.png", chart["image_url"])
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{name: "missing message", body: `{"session_id":"x"}`, status: http.StatusBadRequest, msg: "no message provided"},
		{name: "blank message", body: `{"message":"   "}`, status: http.StatusBadRequest, msg: "no message provided"},
		{name: "malformed body", body: `{"message":`, status: http.StatusBadRequest, msg: "invalid request body"},
		{name: "run timeout", body: `{"message":"hi"}`, err: fmt.Errorf("drive: %w", rundriver.ErrRunTimeout), status: http.StatusGatewayTimeout, msg: timeoutErrorMessage},
		{name: "run failed", body: `{"message":"hi"}`, err: fmt.Errorf("%w: failed", rundriver.ErrRunFailed), status: http.StatusInternalServerError, msg: hostedErrorMessage},
		{name: "hosted api error", body: `{"message":"hi"}`, err: &oaiclient.APIError{StatusCode: 503, Message: "overloaded"}, status: http.StatusInternalServerError, msg: hostedErrorMessage},
		{name: "unexpected", body: `{"message":"hi"}`, err: errors.New("disk on fire"), status: http.StatusInternalServerError, msg: internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.turner.err = tt.err

			rec, body := env.do(t, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["error"])
			assert.NotContains(t, rec.Body.String(), "disk on fire", "causes stay in the logs")
		})
	}
}

func TestChatThreadCreationFailure(t *testing.T) {
	srv, err := New(Config{
		Turner: &fakeTurner{},
		Sessions: session.NewMemoryStore(func(context.Context) (string, error) {
			return "", &oaiclient.APIError{StatusCode: 401, Message: "bad key"}
		}),
		AssistantID: "asst",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), hostedErrorMessage)
}

func TestChatSerialisesSameSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.turner.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, _ := env.do(t, http.MethodPost, "/chat", `{"message":"hi","session_id":"shared"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.False(t, env.turner.overlap.Load())
	assert.Len(t, env.turner.calls, 4)
	assert.Equal(t, int32(1), env.threads.Load())
	assert.Equal(t, 0, env.srv.locks.len())
}

func TestNewThread(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, body := env.do(t, http.MethodPost, "/api/new-thread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh-id", body["session_id"])

	assert.Len(t, newSessionID(), 22)
	assert.NotEqual(t, newSessionID(), newSessionID())
}

func TestVisualize(t *testing.T) {
	env := newTestEnv(t, &fakeVisualizer{res: &visualize.Result{
		ImageFilePath: "images/visualization_20240506_070809.png",
		Insights:      "up and to the right",
		SQLQuery:      "SELECT 1",
	}})

	rec, body := env.do(t, http.MethodPost, "/visualize", `{"user_request":"plot it"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "images/visualization_20240506_070809.png", body["image_file_path"])
	assert.Equal(t, "up and to the right", body["insights"])
	assert.Equal(t, "/images/visualization_20240506_070809.png", body["image_url"])
}

func TestVisualizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{name: "input error", err: &visualize.Error{Status: 400, Message: "the query returned no data"}, status: 400, msg: "the query returned no data"},
		{name: "internal", err: &visualize.Error{Status: 500, Message: "failed to save chart", Err: errors.New("eio")}, status: 500, msg: internalErrorMessage},
		{name: "hosted", err: &visualize.Error{Status: 500, Message: "could not get insights from image", Err: &oaiclient.APIError{StatusCode: 500}}, status: 500, msg: hostedErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeVisualizer{err: tt.err})
			rec, body := env.do(t, http.MethodPost, "/visualize", `{"sql_query":"SELECT 1"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["error"])
		})
	}

	env := newTestEnv(t, nil)
	rec, _ := env.do(t, http.MethodPost, "/visualize", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImages(t *testing.T) {
	env := newTestEnv(t, nil)
	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, afero.WriteFile(env.fs, "images/bar.png", png, 0o644))
	require.NoError(t, afero.WriteFile(env.fs, "secret.txt", []byte("nope"), 0o644))

	rec, _ := env.do(t, http.MethodGet, "/images/bar.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	for _, target := range []string{"/images/missing.png", "/images/../secret.txt", "/images/%2e%2e/secret.txt", "/images/"} {
		rec, _ := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestImageURL(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, "/images/a/b.png", env.srv.imageURL("images/a/b.png"))
	assert.Equal(t, "", env.srv.imageURL("elsewhere/b.png"))
	assert.Equal(t, "", env.srv.imageURL(""))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, body := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["uptime"])
}

func TestServeShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.len())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired
	unlockB()
	assert.Equal(t, 0, k.len())
}
