// Package server exposes the blog-generation workflow over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	scribeflow "github.com/scribeflow/scribeflow"
	"github.com/scribeflow/scribeflow/bus"
	"github.com/scribeflow/scribeflow/sse"
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Graph      *scribeflow.Graph
	Runs       RunStore
	Schedules  ScheduleStore
	Bus        bus.EventBus
	EventStore bus.EventStore

	// Events is an extra handler invoked for every run event, in
	// addition to bus publication and event persistence.
	Events scribeflow.EventHandler

	// EmitDecorator wraps the per-run event pipeline. Trace context it
	// stamps on an event is visible to every handler, including the bus
	// and the event store.
	EmitDecorator scribeflow.EventHandlerDecorator

	Version    string
	CORSOrigin string
	MaxBody    int64
	RunTimeout time.Duration
	Logger     *slog.Logger
}

// Server is the ScribeFlow HTTP API server.
type Server struct {
	graph         *scribeflow.Graph
	runs          RunStore
	schedules     ScheduleStore
	bus           bus.EventBus
	eventStore    bus.EventStore
	events        scribeflow.EventHandler
	emitDecorator scribeflow.EventHandlerDecorator
	version       string
	corsOrigin    string
	maxBody       int64
	runTimeout    time.Duration
	logger        *slog.Logger
}

// NewServer creates a new Server with the given configuration. The graph
// must already be validated; a nil graph is rejected.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Graph == nil {
		return nil, errors.New("server graph is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		graph:         cfg.Graph,
		runs:          cfg.Runs,
		schedules:     cfg.Schedules,
		bus:           cfg.Bus,
		eventStore:    cfg.EventStore,
		events:        cfg.Events,
		emitDecorator: cfg.EmitDecorator,
		version:       version,
		corsOrigin:    corsOrigin,
		maxBody:       maxBody,
		runTimeout:    runTimeout,
		logger:        logger,
	}, nil
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts API routes onto an existing mux. Use this when
// composing with other handlers.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{run_id}", s.handleGetRun)
	if s.eventStore != nil && s.bus != nil {
		mux.Handle("GET /api/v1/runs/{run_id}/events", sse.NewSSEHandler(s.eventStore, s.bus))
	}
	mux.HandleFunc("GET /api/v1/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /api/v1/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /api/v1/schedules/{schedule_id}", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/v1/schedules/{schedule_id}", s.handleUpdateSchedule)
	mux.HandleFunc("DELETE /api/v1/schedules/{schedule_id}", s.handleDeleteSchedule)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}

func decodeJSONBody(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
