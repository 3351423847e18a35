// Package server exposes the analysis pipeline and its persistence over a
// JSON HTTP API, plus health, metrics and an SSE log stream.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"property-intelligence/internal/analysis"
	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/store"
)

// Analyzer runs one question through the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) analysis.Result
}

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	StoreQuery(ctx context.Context, rec store.QueryRecord) (int64, error)
	QueryHistory(ctx context.Context, limit int, userID string) ([]store.QueryRecord, error)
	UserStats(ctx context.Context, userID string) (*store.UserStats, error)
	DeleteQuery(ctx context.Context, id int64, userID string) error
	Stats(ctx context.Context) (*store.Stats, error)
}

// ComponentStatus reports per-collaborator availability for /health.
type ComponentStatus func() map[string]bool

// Server wires the handlers to their collaborators.
type Server struct {
	cfg       config.Config
	analyzer  Analyzer
	store     Store
	logStream *LogStream
	status    ComponentStatus
	logger    logger.Logger
}

func New(cfg config.Config, analyzer Analyzer, st Store, logStream *LogStream,
	status ComponentStatus, log logger.Logger) *Server {
	return &Server{
		cfg:       cfg,
		analyzer:  analyzer,
		store:     st,
		logStream: logStream,
		status:    status,
		logger: log.With(map[string]interface{}{
			"component": "server",
		}),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/property/analyze", s.handleAnalyze)
		r.Get("/property/history", s.handleHistory)
		r.Get("/property/stats", s.handleStats)
		r.Get("/property/questions", s.handleQuestions)
		r.Delete("/property/queries/{id}", s.handleDeleteQuery)
		r.Get("/users/{id}/stats", s.handleUserStats)
		r.Get("/logs/stream", s.handleLogStream)
	})

	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.Server.CORSOrigins) > 0 {
		return s.cfg.Server.CORSOrigins
	}
	return []string{"*"}
}

// HTTPServer returns a configured http.Server for the router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  config.GetDuration(s.cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(s.cfg.Server.WriteTimeout),
		IdleTimeout:  120 * time.Second,
	}
}
