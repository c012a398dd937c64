// Package server assembles the deliberation daemon: gateway registry, engine,
// storage, roster, persona library, and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/quorumlabs/quorum/internal/api"
	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/council"
	"github.com/quorumlabs/quorum/internal/llm/configbuilder"
	"github.com/quorumlabs/quorum/internal/observability"
	"github.com/quorumlabs/quorum/internal/persona"
	"github.com/quorumlabs/quorum/internal/storage"
)

// Server hosts the deliberation HTTP endpoints plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	handler *api.Handler
	store   *storage.Store
	metrics *observability.Metrics
}

// New constructs a daemon instance from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	rosterPath := filepath.Join(filepath.Dir(cfg.Storage.Path), "council_config.json")
	roster, err := config.NewRosterStore(rosterPath, cfg.Advisors)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	lib := persona.NewLibrary(cfg.Persona.PromptsDir)
	gen := persona.NewGenerator(cfg.Persona.WikipediaBaseURL, cfg.Persona.UserAgent, logger)
	metrics := observability.NewMetrics()
	probe := observability.NewOllamaProbe(ollamaBaseURL(cfg))

	engine := council.New(registry, lib, cfg.Council, logger, metrics)
	handler := api.NewHandler(engine, store, roster, lib, gen, registry, probe, metrics, cfg.Council.Chairman, logger)

	return &Server{cfg: cfg, logger: logger, handler: handler, store: store, metrics: metrics}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	s.handler.Register(mux)

	handler := corsMiddleware(s.cfg.Server.CORSOrigins, mux)
	handler = h2c.NewHandler(handler, &http2.Server{})

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting quorum daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down quorum daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return s.store.Close()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// ollamaBaseURL picks the first configured Ollama provider for runtime probing.
func ollamaBaseURL(cfg *config.Config) string {
	for _, p := range cfg.Providers {
		if p.Type == "ollama" {
			return p.BaseURL
		}
	}
	return ""
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
