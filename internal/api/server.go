package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/callpath/callpath/internal/api/middleware"
	"github.com/callpath/callpath/internal/config"
	"github.com/callpath/callpath/internal/database"
	"github.com/callpath/callpath/internal/routing"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router     *chi.Mux
	cfg        *config.Config
	loader     *routing.Loader
	engine     *routing.RingStrategyEngine
	evaluator  *routing.ScheduleEvaluator
	routingLog database.RoutingLogRepository
	registry   *prometheus.Registry
	limiter    *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(
	cfg *config.Config,
	loader *routing.Loader,
	engine *routing.RingStrategyEngine,
	evaluator *routing.ScheduleEvaluator,
	routingLog database.RoutingLogRepository,
	registry *prometheus.Registry,
) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		cfg:        cfg,
		loader:     loader,
		engine:     engine,
		evaluator:  evaluator,
		routingLog: routingLog,
		registry:   registry,
		limiter:    middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background resources owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// API routes under /api/v1.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter))

		r.Post("/route/decide", s.handleDecide)

		r.Route("/validate", func(r chi.Router) {
			r.Post("/schedule", s.handleValidateSchedule)
			r.Post("/ring-group", s.handleValidateRingGroup)
			r.Post("/ivr-menu", s.handleValidateIVRMenu)
		})

		r.Get("/routing-log", s.handleRoutingLog)
	})

	slog.Info("api routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
