// Package server provides the HTTP server and routing for patrolplan.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/islandsafe/patrolplan/internal/di"
	allocationhandlers "github.com/islandsafe/patrolplan/internal/modules/allocation/handlers"
	insightshandlers "github.com/islandsafe/patrolplan/internal/modules/insights/handlers"
	intelligencehandlers "github.com/islandsafe/patrolplan/internal/modules/intelligence/handlers"
	predictionhandlers "github.com/islandsafe/patrolplan/internal/modules/prediction/handlers"
	regionshandlers "github.com/islandsafe/patrolplan/internal/modules/regions/handlers"
	settingshandlers "github.com/islandsafe/patrolplan/internal/modules/settings/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Container *di.Container
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	container *di.Container
	hub       *Hub
	system    *SystemHandlers
	log       zerolog.Logger
	port      int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	s := &Server{
		router:    chi.NewRouter(),
		container: c,
		hub:       NewHub(c.EventBus, c.IntelligenceService, c.Metrics, cfg.Log),
		system:    NewSystemHandlers(c.DB, c.Predictor.State(), cfg.Log),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. Long-lived stream endpoints sit
// outside the timeout and compression group.
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		stream := NewEventsStreamHandler(c.EventBus, c.Metrics, s.log)
		r.Get("/events/stream", stream.ServeHTTP)
		r.Get("/ws", s.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !c.Config.DevMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/system/status", s.system.HandleSystemStatus)

			regionshandlers.NewHandler(c.RegionService, s.log).RegisterRoutes(r)
			intelligencehandlers.NewHandler(c.IntelligenceService, s.log).RegisterRoutes(r)
			allocationhandlers.NewHandler(c.AllocationService, s.log).RegisterRoutes(r)
			predictionhandlers.NewHandler(c.Predictor, c.RetrainJob, s.log).RegisterRoutes(r)
			settingshandlers.NewHandler(c.SettingsService, c.EventManager, s.log).RegisterRoutes(r)
			insightshandlers.NewHandler(c.InsightsService, s.log).RegisterRoutes(r)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := s.container.DB.HealthCheck(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q}`, status)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown closes WebSocket clients and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests and records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.container.Metrics.HTTPRequest(r.Method, ww.Status(), elapsed)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
