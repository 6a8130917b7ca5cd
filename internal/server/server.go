// Package server provides the HTTP API for the dispatcher: the turn
// endpoint plus cache and audit introspection.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/orchestrator"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/otel"
)

const defaultTimeout = 60 * time.Second

// Server holds all dependencies for the HTTP API.
type Server struct {
	router     *chi.Mux
	orch       *orchestrator.Orchestrator
	auditStore *audit.Store
	limiter    *RateLimiter
	startTime  time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter enables per-session rate limiting on the turn endpoint.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithAuditStore enables the audit listing endpoint.
func WithAuditStore(store *audit.Store) Option {
	return func(s *Server) { s.auditStore = store }
}

// NewServer builds a Server around the orchestrator.
func NewServer(orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		orch:      orch,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())
	r.Use(SessionMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter))
		}
		r.Post("/v1/turn", s.handleTurn)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))
		r.Get("/v1/cache/stats", s.handleCacheStats)
		r.Get("/v1/cache/health", s.handleCacheHealth)
		if s.auditStore != nil {
			r.Get("/v1/audit/events", s.handleAuditEvents)
		}
	})

	return r
}
