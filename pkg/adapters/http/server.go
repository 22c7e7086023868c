package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/aretw0/proofline/pkg/input"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var rawSpec []byte

var loadSpec = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, err
	}
	return doc, nil
})

// GetSwagger returns the parsed and validated API document.
func GetSwagger() (*openapi3.T, error) {
	return loadSpec()
}

// Sessions is the part of the session layer the HTTP adapter uses.
type Sessions interface {
	Create(ctx context.Context) (*editor.Machine, error)
	Get(ctx context.Context, sessionID string) (*editor.Machine, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// Server exposes editing sessions over HTTP.
type Server struct {
	Sessions  Sessions
	Streams   *StreamManager
	Sanitizer input.Sanitizer

	version string
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreams shares a StreamManager whose Hooks are attached to the sessions.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithSanitizer sets the draft size limit and cleaning policy.
func WithSanitizer(sz input.Sanitizer) Option {
	return func(s *Server) {
		s.Sanitizer = sz
	}
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over sessions.
func NewServer(sessions Sessions, opts ...Option) *Server {
	s := &Server{
		Sessions: sessions,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// Handler builds the router with CORS enabled.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.routes())
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/text", s.EditText)
			r.Post("/clear", s.ClearSession)
			r.Post("/analyze", s.StartAnalysis)
			r.Post("/issues/{issueId}/apply", s.ApplyCorrection)
			r.Get("/corrected", s.GetCorrectedText)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// stateView adds the derived fields clients need.
type stateView struct {
	*domain.State
	Status        domain.Status `json:"status"`
	PendingIssues int           `json:"pending_issues"`
}

func view(st *domain.State) stateView {
	return stateView{State: st, Status: st.Status(), PendingIssues: st.PendingIssues()}
}

type editTextRequest struct {
	Text *string `json:"text"`
}

type applyResponse struct {
	Applied     domain.Issue `json:"applied"`
	TextChanged bool         `json:"text_changed"`
	State       stateView    `json:"state"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "proofline-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	mc, err := s.Sessions.Create(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+mc.SessionID())
	s.writeJSON(w, http.StatusCreated, view(mc.Snapshot()))
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, view(mc.Snapshot()))
}

// DeleteSession handles DELETE /sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}
	if err := s.Sessions.Delete(r.Context(), mc.SessionID()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditText handles PUT /sessions/{sessionId}/text.
func (s *Server) EditText(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}

	// JSON escaping can blow a draft up to six bytes per input byte.
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.Sanitizer.Limit())*6+1024)

	var body editTextRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, input.ErrTooLarge.Error())
			return
		}
		s.logger.Warn("EditText: Invalid request body", "err", err)
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Text == nil {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	clean, err := s.Sanitizer.Sanitize(*body.Text)
	if err != nil {
		s.logger.Warn("EditText: Input rejected", "err", err, "size", len(*body.Text))
		s.fail(w, err)
		return
	}

	mc.EditText(r.Context(), clean)
	s.writeJSON(w, http.StatusOK, view(mc.Snapshot()))
}

// ClearSession handles POST /sessions/{sessionId}/clear.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}
	mc.Clear(r.Context())
	s.writeJSON(w, http.StatusOK, view(mc.Snapshot()))
}

// StartAnalysis handles POST /sessions/{sessionId}/analyze.
// With wait=true it responds after completion; a failed analysis is still a 200
// whose state carries the user-facing error.
func (s *Server) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}

	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid wait parameter: %v", err))
		return
	}

	pending, err := mc.StartAnalysis(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	if wait == nil || !*wait {
		s.writeJSON(w, http.StatusAccepted, view(mc.Snapshot()))
		return
	}

	if _, err := pending.Wait(r.Context()); err != nil && r.Context().Err() != nil {
		// Client went away; the analysis still completes.
		return
	}
	s.writeJSON(w, http.StatusOK, view(mc.Snapshot()))
}

// ApplyCorrection handles POST /sessions/{sessionId}/issues/{issueId}/apply.
func (s *Server) ApplyCorrection(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}

	var issueID int
	err := runtime.BindStyledParameterWithOptions("simple", "issueId", chi.URLParam(r, "issueId"), &issueID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid issueId: %v", err))
		return
	}

	out, err := mc.ApplyCorrection(r.Context(), issueID)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, applyResponse{
		Applied:     out.Issue,
		TextChanged: out.TextChanged,
		State:       view(mc.Snapshot()),
	})
}

// GetCorrectedText handles GET /sessions/{sessionId}/corrected.
func (s *Server) GetCorrectedText(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}
	text, ok := mc.CorrectedText()
	if !ok {
		s.fail(w, domain.ErrNoResult)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// SubscribeEvents handles GET /sessions/{sessionId}/events (SSE).
// Each message is a StateDiff; the SSE event name is the transition type.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	mc, ok := s.machine(w, r)
	if !ok {
		return
	}

	var watch *string
	if err := runtime.BindQueryParameter("form", true, false, "watch", r.URL.Query(), &watch); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid watch parameter: %v", err))
		return
	}
	var filter watchFilter
	if watch != nil {
		filter = parseWatch(*watch)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sessionID := mc.SessionID()
	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)

	// The first frame carries the whole current state as a diff from nothing.
	snapshot, _ := json.Marshal(domain.Diff(nil, mc.Snapshot()))
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !filter.keep(msg.Diff) {
				continue
			}
			data, err := json.Marshal(msg.Diff)
			if err != nil {
				s.logger.Error("SSE: encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
			flusher.Flush()
		}
	}
}

// machine binds the sessionId path parameter and resolves the session.
func (s *Server) machine(w http.ResponseWriter, r *http.Request) (*editor.Machine, bool) {
	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "sessionId", chi.URLParam(r, "sessionId"), &sessionID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sessionId: %v", err))
		return nil, false
	}

	mc, err := s.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return mc, true
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrIssueNotFound),
		errors.Is(err, domain.ErrNoResult):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAnalysisInFlight):
		status = http.StatusConflict
	case errors.Is(err, input.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, input.ErrInvalidUTF8):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		msg = "internal error"
	}
	s.writeError(w, status, msg)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
