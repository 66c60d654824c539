// Package http exposes the engine over a small JSON API with a server-sent event stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Engine is the read side of the engine used by the API. It is implemented by *stagehand.Engine.
type Engine interface {
	CurrentState() string
	State() domain.MachineState
	Progress() float64
	Busy() bool
	Registry() *registry.Registry
	Parameters() *params.Store
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Submitter starts transitions on the loop goroutine. It is implemented by *runner.Runner.
type Submitter interface {
	Submit(ctx context.Context, req domain.TransitionRequest) (<-chan error, error)
}

// Server serves the API.
type Server struct {
	Engine    Engine
	Submitter Submitter
	Streams   *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a stream manager whose hooks are already attached to the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(engine Engine, submitter Submitter, opts ...Option) http.Handler {
	s := &Server{
		Engine:    engine,
		Submitter: submitter,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/scenes", s.ListScenes)
	r.Get("/scenes/{id}", s.GetScene)
	r.Get("/state", s.GetState)
	r.Post("/transitions", s.PostTransition)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Current    string                    `json:"current"`
	State      domain.MachineState       `json:"state"`
	Busy       bool                      `json:"busy"`
	Progress   float64                   `json:"progress"`
	Parameters map[string]map[string]any `json:"parameters,omitempty"`
}

// TransitionRequest is the body of POST /transitions.
type TransitionRequest struct {
	Identifier    string         `json:"identifier"`
	ParameterType string         `json:"parameter_type,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	RetainCurrent bool           `json:"retain_current,omitempty"`
	Overwrite     *bool          `json:"overwrite,omitempty"`
	// Wait holds the response until the transition committed or failed.
	Wait bool `json:"wait,omitempty"`
}

// TransitionResponse is the body returned by POST /transitions.
type TransitionResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Current    string `json:"current,omitempty"`
	Error      string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "stagehand-http",
		"version": strings.TrimSpace(stagehand.Version),
	})
}

// ListScenes handles GET /scenes.
func (s *Server) ListScenes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Registry().List())
}

// GetScene handles GET /scenes/{id}.
func (s *Server) GetScene(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Engine.Registry().Resolve(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StateResponse{
		Current:    s.Engine.CurrentState(),
		State:      s.Engine.State(),
		Busy:       s.Engine.Busy(),
		Progress:   s.Engine.Progress(),
		Parameters: s.Engine.Parameters().Snapshot(),
	})
}

// PostTransition handles POST /transitions.
// Without wait it answers 202 once the engine accepted the request.
func (s *Server) PostTransition(w http.ResponseWriter, r *http.Request) {
	var body TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("PostTransition: invalid request body", "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.Identifier == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "identifier is required"})
		return
	}

	var opts []stagehand.TransitionOption
	if body.RetainCurrent {
		opts = append(opts, stagehand.RetainCurrent())
	}
	if body.Overwrite != nil {
		opts = append(opts, stagehand.Overwrite(*body.Overwrite))
	}
	var src domain.ParameterSource
	if body.Parameters != nil || body.ParameterType != "" {
		src = params.FromMap(body.ParameterType, body.Parameters)
	}
	req := stagehand.Request(body.Identifier, src, opts...)
	req.ID = uuid.NewString()

	done, err := s.Submitter.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := TransitionResponse{ID: req.ID, Identifier: req.Identifier, Status: "accepted"}
	if !body.Wait {
		s.writeJSON(w, http.StatusAccepted, resp)
		return
	}

	select {
	case err := <-done:
		if err != nil {
			resp.Status = "failed"
			resp.Error = err.Error()
			s.writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		resp.Status = "committed"
		resp.Current = s.Engine.CurrentState()
		s.writeJSON(w, http.StatusOK, resp)
	case <-r.Context().Done():
		s.logger.Info("PostTransition: client gone before completion", "id", req.ID)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransitionInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidParameter), errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyScene):
		return http.StatusUnprocessableEntity
	case errors.Is(err, runner.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// SubscribeEvents handles GET /events (server-sent events).
// Lifecycle events are streamed by default; ?watch=scenes streams scene source changes instead.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var events <-chan string
	if r.URL.Query().Get("watch") == "scenes" {
		changes, err := s.Engine.Watch(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		events = reloads(r.Context(), changes)
	} else {
		ch, cancel := s.Streams.Subscribe(parseFilter(r.URL.Query().Get("types")))
		defer cancel()
		events = ch
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func reloads(ctx context.Context, changes <-chan struct{}) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for range changes {
			select {
			case out <- `{"type":"scenes_changed"}`:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func parseFilter(raw string) map[domain.EventType]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[domain.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[domain.EventType(t)] = true
		}
	}
	return filter
}
