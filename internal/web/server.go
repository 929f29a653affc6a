// Package web provides the HTTP front end for the roster filter.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/rosterfilter/internal/catalog"
	"github.com/JonMunkholm/rosterfilter/internal/config"
	"github.com/JonMunkholm/rosterfilter/internal/core"
	"github.com/JonMunkholm/rosterfilter/internal/web/middleware"
)

// Server is the HTTP server for the roster filter.
type Server struct {
	service *core.Service
	catalog *catalog.Catalog
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cat *catalog.Catalog, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		catalog: cat,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Post("/runs", s.handleCreateRun)
	s.router.Get("/runs/{runID}", s.handleRunPage)
	s.router.Post("/runs/{runID}/reload", s.handleReloadRun)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.APIKeys))

		r.Get("/catalog", s.handleCatalog)
		r.Get("/status", s.handleStatus)

		r.Get("/runs", s.handleRecentRuns)
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs/{runID}", s.handleRunJSON)
		r.Get("/runs/{runID}/lines", s.handleRunLines)
		r.Get("/runs/{runID}/export.xlsx", s.handleRunExport)
		r.Delete("/runs/{runID}", s.handleDiscardRun)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// Pages carry their own inline styles and no scripts.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
