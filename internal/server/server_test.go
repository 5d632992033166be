package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tyson/internal/agent"
	"github.com/harunnryd/tyson/internal/config"
	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/model"
	"github.com/harunnryd/tyson/internal/model/contract"
	"github.com/harunnryd/tyson/internal/session"
	"github.com/harunnryd/tyson/internal/tool"
	"github.com/harunnryd/tyson/internal/tool/builtin"

	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	steps []func() (*contract.Completion, error)
	calls int
}

func (c *scriptedClient) step() func() (*contract.Completion, error) {
	s := c.steps[0]
	if len(c.steps) > 1 {
		c.steps = c.steps[1:]
	}
	c.calls++
	return s
}

func (c *scriptedClient) Complete(_ context.Context, _ contract.CompletionRequest) (*contract.Completion, error) {
	return c.step()()
}

func (c *scriptedClient) Stream(_ context.Context, _ contract.CompletionRequest, onDelta model.StreamFunc) (*contract.Completion, error) {
	resp, err := c.step()()
	if err != nil {
		return nil, err
	}
	for _, word := range strings.SplitAfter(resp.Content, " ") {
		onDelta(word)
	}
	return resp, nil
}

func (c *scriptedClient) ListModels() []string { return []string{"fake"} }

func answer(text string) func() (*contract.Completion, error) {
	return func() (*contract.Completion, error) {
		return &contract.Completion{Content: text}, nil
	}
}

func newTestServer(t *testing.T, client model.Client) (*Server, *session.Store) {
	t.Helper()

	store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions"), nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	registry := tool.NewRegistry()
	registry.Register(builtin.NewCalculateTool())
	runner := tool.NewRunner(registry, time.Second)

	a := agent.New(client, runner, agent.Options{
		Model:        "fake",
		SystemPrompt: "You are helpful.",
		RetryBackoff: time.Millisecond,
	})

	return New(config.ServerConfig{Port: 0}, a, store, "fake", registry.Len()), store
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, handler http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestServer_Root(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	var resp struct {
		Service string `json:"service"`
		Model   string `json:"model"`
		Tools   int    `json:"tools"`
	}
	rec := getJSON(t, srv.Handler(), "/", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tyson", resp.Service)
	require.Equal(t, 1, resp.Tools)
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	var resp map[string]string
	rec := getJSON(t, srv.Handler(), "/health", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", resp["status"])
}

func TestServer_Chat_MintsSessionID(t *testing.T) {
	srv, store := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hello there")}})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
		Success   bool   `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello there", resp.Response)
	require.NotEmpty(t, resp.SessionID)
	require.True(t, resp.Success)

	// The turn was persisted under the minted session.
	tr, err := store.LoadTranscript(resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, 3, tr.Len()) // system, user, assistant
}

func TestServer_Chat_ResumesSession(t *testing.T) {
	client := &scriptedClient{steps: []func() (*contract.Completion, error){
		answer("first answer"),
		answer("second answer"),
	}}
	srv, store := newTestServer(t, client)

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "first"})
	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = postJSON(t, srv.Handler(), "/chat", map[string]interface{}{
		"message":    "second",
		"session_id": resp.SessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	tr, err := store.LoadTranscript(resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, 5, tr.Len()) // system, user, assistant, user, assistant
}

func TestServer_Chat_MissingMessage(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}

func TestServer_Chat_AuthFailure(t *testing.T) {
	client := &scriptedClient{steps: []func() (*contract.Completion, error){
		func() (*contract.Completion, error) {
			return nil, tysonErrors.Wrap(tysonErrors.ErrAuthentication, "401")
		},
	}}
	srv, _ := newTestServer(t, client)

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "hi"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Chat_Streaming(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("The answer is 4.")}})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{
		"message": "2+2?",
		"stream":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, `"chunk"`)
	require.Contains(t, body, `"done":true`)
	require.Contains(t, body, "session_id")
}

func TestServer_HistoryAndClear(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "hello"})

	var resp struct {
		Count int `json:"count"`
	}
	getJSON(t, srv.Handler(), "/history", &resp)
	require.Equal(t, 3, resp.Count)

	rec := postJSON(t, srv.Handler(), "/clear", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	getJSON(t, srv.Handler(), "/history", &resp)
	require.Equal(t, 1, resp.Count) // system prompt re-seeded
}

func TestServer_SessionsListing(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "hello"})

	var resp struct {
		Count int `json:"count"`
	}
	getJSON(t, srv.Handler(), "/sessions", &resp)
	require.Equal(t, 1, resp.Count)
}

func TestServer_SessionHistory_Unknown(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	rec := getJSON(t, srv.Handler(), "/sessions/nope/history", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ClearSession(t *testing.T) {
	srv, store := newTestServer(t, &scriptedClient{steps: []func() (*contract.Completion, error){answer("hi")}})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]interface{}{"message": "hello"})
	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = postJSON(t, srv.Handler(), "/clear/"+resp.SessionID, map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	tr, err := store.LoadTranscript(resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, 0, tr.Len())

	rec = postJSON(t, srv.Handler(), "/clear/unknown-session", map[string]interface{}{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
