package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/harunnryd/tyson/internal/agent"
	"github.com/harunnryd/tyson/internal/config"
	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/logger"
	"github.com/harunnryd/tyson/internal/session"
)

const Version = "1.0.0"

// Server exposes the conversation loop over HTTP. One agent instance serves
// all requests; turns are serialized because the loop mutates the attached
// transcript.
type Server struct {
	agent  *agent.Agent
	store  *session.Store
	model  string
	tools  int
	server *http.Server

	mu sync.Mutex // one turn at a time
}

func New(cfg config.ServerConfig, a *agent.Agent, store *session.Store, modelName string, toolCount int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		agent: a,
		store: store,
		model: modelName,
		tools: toolCount,
	}

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /sessions/{id}/history", s.handleSessionHistory)
	mux.HandleFunc("POST /clear/{id}", s.handleClearSession)

	readTimeout, _ := config.DurationOrDefault(cfg.ReadTimeout, config.DefaultServerReadTimeout)
	writeTimeout, _ := config.DurationOrDefault(cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	idleTimeout, _ := config.DurationOrDefault(cfg.IdleTimeout, config.DefaultServerIdleTimeout)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start runs the listener in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("Starting HTTP server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "tyson",
		"version": Version,
		"model":   s.model,
		"tools":   s.tools,
		"endpoints": []string{
			"GET /health",
			"POST /chat",
			"GET /history",
			"POST /clear",
			"GET /sessions",
			"GET /sessions/{id}/history",
			"POST /clear/{id}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing required field: message")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}
	ctx := logger.WithSessionID(r.Context(), sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.attachSession(sessionID); err != nil {
		s.writeTurnError(w, err)
		return
	}

	if req.Stream {
		s.streamChat(ctx, w, sessionID, req.Message)
		return
	}

	answer, err := s.agent.Chat(ctx, req.Message)
	s.persistSession(sessionID)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response":   answer,
		"session_id": sessionID,
		"success":    true,
	})
}

// streamChat answers over SSE: one data event per text fragment, then a
// terminal event carrying the session id.
func (s *Server) streamChat(ctx context.Context, w http.ResponseWriter, sessionID, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	prevStream := s.agent.Streaming()
	s.agent.SetStreaming(true)
	s.agent.SetHooks(agent.Hooks{OnDelta: func(fragment string) {
		chunk, _ := json.Marshal(map[string]string{"chunk": fragment})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}})
	defer func() {
		s.agent.SetHooks(agent.Hooks{})
		s.agent.SetStreaming(prevStream)
	}()

	_, err := s.agent.Chat(ctx, message)
	s.persistSession(sessionID)

	final := map[string]interface{}{"done": true, "session_id": sessionID}
	if err != nil {
		final["error"] = err.Error()
	}
	data, _ := json.Marshal(final)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// attachSession loads the session transcript into the agent. A fresh or
// unknown session starts from a reset conversation and self-registers on the
// first save.
func (s *Server) attachSession(sessionID string) error {
	tr, err := s.store.LoadTranscript(sessionID)
	if err != nil {
		if !errors.Is(err, tysonErrors.ErrNotFound) {
			return err
		}
		tr = nil
	}

	if tr == nil || tr.Len() == 0 {
		s.agent.Reset()
		return nil
	}
	s.agent.AttachTranscript(tr)
	return nil
}

func (s *Server) persistSession(sessionID string) {
	if err := s.store.SaveTranscript(sessionID, s.agent.Transcript()); err != nil {
		slog.Error("Failed to persist session transcript", "session_id", sessionID, "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := s.agent.Transcript().Snapshot()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.agent.Reset()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.ListSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tr, err := s.store.LoadTranscript(id)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	entries := tr.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"history":    entries,
		"count":      len(entries),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.ResetSession(id); err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "session_id": id})
}

// writeTurnError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tysonErrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tysonErrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, tysonErrors.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, tysonErrors.ErrTransient):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   message,
		"success": false,
	})
}
