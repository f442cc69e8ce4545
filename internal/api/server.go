package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/session"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, sessions *session.Store, metrics *telemetry.Metrics, opts Options) *Server {
	if opts.MaxUploadMB == 0 {
		opts.MaxUploadMB = cfg.MaxUploadMB
	}
	handler := NewHandler(repo, cache, bus, sessions, metrics, opts)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(MetricsMiddleware(metrics))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Operational endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Domain schemas
	router.Get("/domains", handler.ListDomains)
	router.Get("/domains/{domain}/schema", handler.GetSchema)

	// Sessions and their datasets
	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", handler.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetSession)
			r.Delete("/", handler.DeleteSession)

			r.Post("/dataset", handler.UploadDataset)
			r.Post("/dataset/sample", handler.LoadSample)
			r.Get("/dataset", handler.PreviewDataset)
			r.Post("/normalize", handler.NormalizeDataset)

			r.Post("/train", handler.Train)
			r.Post("/predict", handler.Predict)
			r.Post("/advice", handler.Advice)
		})
	})

	// Training jobs and their audit trail
	router.Get("/jobs/{id}", handler.GetJob)
	router.Get("/runs", handler.ListRuns)
	router.Get("/runs/{id}", handler.GetRun)

	// Rule engine
	router.Post("/analyze", handler.Analyze)
	router.Get("/analyses/{id}", handler.GetAnalysis)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
