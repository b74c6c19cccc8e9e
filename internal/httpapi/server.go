// Package httpapi implements the gateway's external interface (spec §6):
// POST /generate, POST /batch/generate, GET /models, GET /health, GET
// /ready, behind an admission + rate-limit + body-size-limit middleware
// chain. It is grounded in the teacher's cmd/server/routes.go for the
// "typed handler set registered onto a mux" shape, rebuilt onto
// github.com/go-chi/chi/v5 (the router the rest of the example pack
// reaches for in front of exactly this kind of handler set, in
// Sergey-Bar-Alfred's services/gateway/router/router.go and
// allaspectsdev-tokenman) instead of the teacher's stdlib ServeMux.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blueberrycongee/agentgate/internal/admission"
	"github.com/blueberrycongee/agentgate/internal/batch"
	"github.com/blueberrycongee/agentgate/internal/metrics"
	"github.com/blueberrycongee/agentgate/internal/observability"
	"github.com/blueberrycongee/agentgate/internal/ratelimit"
	"github.com/blueberrycongee/agentgate/internal/router"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

// DefaultMaxBodyBytes bounds a single request body, generous enough for a
// large agent profile + prompt without letting one caller exhaust memory.
const DefaultMaxBodyBytes = 1 << 20 // 1MiB

// Pipeline is the subset of *pipeline.Pipeline the HTTP layer drives;
// declared locally so httpapi doesn't import pipeline's concrete type and
// a handler test can fake it.
type Pipeline interface {
	Execute(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error)
}

// Config holds the HTTP layer's tunables (spec §6).
type Config struct {
	MaxBodyBytes     int64
	MaxTokensCeiling int
	CORS             CORSConfig
}

func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:     DefaultMaxBodyBytes,
		MaxTokensCeiling: types.MaxTokensCeilingHard,
	}
}

// Server holds every dependency a handler needs and builds the chi router.
type Server struct {
	cfg       Config
	admission *admission.Gate
	limits    *ratelimit.Registry
	pipeline  Pipeline
	batch     *batch.Coordinator
	router    *router.Router
	health    *metrics.Health
	metrics   *metrics.Metrics
	logger    *observability.Logger
}

// New constructs a Server. Any dependency may be exercised independently in
// tests by constructing a Server directly with the fields relevant to the
// handler under test.
func New(cfg Config, gate *admission.Gate, limits *ratelimit.Registry, pipe Pipeline, coord *batch.Coordinator, rtr *router.Router, health *metrics.Health, m *metrics.Metrics, logger *observability.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxTokensCeiling <= 0 {
		cfg.MaxTokensCeiling = types.MaxTokensCeilingHard
	}
	return &Server{
		cfg:       cfg,
		admission: gate,
		limits:    limits,
		pipeline:  pipe,
		batch:     coord,
		router:    rtr,
		health:    health,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the full chi router: middleware chain, then routes. Its
// order mirrors the teacher's own preference for CORS ahead of everything
// else so a preflight request never reaches auth, matching the ordering
// Sergey-Bar-Alfred's gateway router documents explicitly.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware(s.cfg.CORS))
	r.Use(securityHeaders)
	r.Use(observability.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.maxBodySize)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/generate", s.handleGenerate)
		r.Post("/batch/generate", s.handleBatchGenerate)
		r.Get("/models", s.handleModels)
	})

	return r
}

func (s *Server) maxBodySize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.WithRequestID(r.Context()).Zerolog().Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// loggerFor is a convenience used by handlers that want a zerolog.Logger
// bound to the request's ID without importing zerolog themselves twice.
func (s *Server) loggerFor(ctx context.Context) zerolog.Logger {
	return s.logger.WithRequestID(ctx).Zerolog()
}
