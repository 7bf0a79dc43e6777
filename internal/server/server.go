// Package server exposes the read API and admin surface over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cryptopulse/internal/config"
	"cryptopulse/internal/llmcache"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/signals"
	"cryptopulse/internal/store"
)

// Triggers lets admin endpoints force a worker cycle out of band. Nil
// fields disable the corresponding endpoint.
type Triggers struct {
	Ingest      func(ctx context.Context) error
	Enrich      func(ctx context.Context) error
	Detect      func(ctx context.Context) error
	Consolidate func(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      *store.Store
	scorer     *signals.Scorer
	cache      *llmcache.Cache
	triggers   Triggers
	config     config.Server
	minScore   float64
}

// New creates the HTTP server with middleware and routes wired.
func New(st *store.Store, scorer *signals.Scorer, cache *llmcache.Cache, triggers Triggers, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		scorer:   scorer,
		cache:    cache,
		triggers: triggers,
		config:   cfg.Server,
		minScore: cfg.Signals.TrendingMinScore,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/narratives", func(r chi.Router) {
			r.Get("/", s.handleListNarratives)
			r.Get("/reawakened", s.handleReawakenedNarratives)
			r.Get("/{id}", s.handleGetNarrative)
			r.Get("/{id}/timeline", s.handleNarrativeTimeline)
			r.Get("/{id}/articles", s.handleNarrativeArticles)
		})

		r.Route("/signals", func(r chi.Router) {
			r.Get("/trending", s.handleTrending)
			r.Get("/{entity}", s.handleGetSignal)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Post("/{id}/resolve", s.handleResolveAlert)
		})

		r.Get("/articles/recent", s.handleRecentArticles)
		r.Get("/feeds", s.handleListFeeds)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Get("/cache", s.handleCacheStats)
			r.Post("/cache/purge", s.handleCachePurge)
			r.Get("/costs", s.handleCosts)
			r.Post("/cycles/{name}", s.handleTriggerCycle)
		})
	})
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router exposes the chi mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
