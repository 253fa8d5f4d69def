package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/diogoX451/callrelay/internal/api/dto"
	"github.com/diogoX451/callrelay/internal/command"
	"github.com/diogoX451/callrelay/internal/events"
)

// Commander é o command.Bridge visto pela API
type Commander interface {
	Send(command, args string) command.Result
}

// Streamer é o stream.Registry visto pela API
type Streamer interface {
	Attach(ctx context.Context, w http.ResponseWriter) error
	Len() int
}

type BusStatus interface {
	State() events.State
}

// Server encapsula todas dependências da API
type Server struct {
	router    *chi.Mux
	commands  Commander
	streams   Streamer
	bus       BusStatus
	metrics   http.Handler
	publicDir string
}

type Option func(*Server)

func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithPublicDir(dir string) Option {
	return func(s *Server) { s.publicDir = dir }
}

// NewServer cria server com dependências injetadas
func NewServer(commands Commander, streams Streamer, bus BusStatus, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		commands: commands,
		streams:  streams,
		bus:      bus,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)
}

func (s *Server) setupRoutes() {
	// Health
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		// Stream SSE: sem timeout nem content-type JSON
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)
			r.Post("/command", s.handleCommand)
			r.Get("/calls", s.handleListCalls)
			r.Post("/calls/answer", s.handleAnswer)
			r.Post("/calls/hangup", s.handleHangup)
			r.Post("/calls/transfer", s.handleTransfer)
			r.Post("/calls/originate", s.handleOriginate)
		})
	})

	s.router.Get("/", s.handleStatic)
	s.router.Get("/*", s.handleStatic)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler: Health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Bus:       s.bus.State().String(),
		Streams:   s.streams.Len(),
		Timestamp: time.Now(),
	})
}

// Helper: JSON content-type
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Helper: Responder JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: Responder erro no mesmo formato de um Result com falha
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}
