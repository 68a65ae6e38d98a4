// Package web provides the HTTP API, HTML fragments and event stream for
// gridform table stores.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/gridform/internal/admin"
	"github.com/JonMunkholm/gridform/internal/config"
	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/importer"
	"github.com/JonMunkholm/gridform/internal/metrics"
	"github.com/JonMunkholm/gridform/internal/persist"
	"github.com/JonMunkholm/gridform/internal/schema"
	"github.com/JonMunkholm/gridform/internal/web/middleware"
)

// Server is the HTTP server for a form of table stores.
type Server struct {
	cfg     *config.Config
	form    *core.Form
	schema  *schema.File
	repo    *persist.Repository
	metrics *metrics.Metrics
	logger  *slog.Logger

	resetter *admin.Resetter
	imports  *importer.Limiter
	validate *validator.Validate
	limiters []*middleware.RateLimiter
	router   *chi.Mux
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRepository enables the audit and reset endpoints against the database.
func WithRepository(r *persist.Repository) Option {
	return func(s *Server) { s.repo = r }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new Server. file may be nil; tables then have no
// labels or value normalization.
func NewServer(cfg *config.Config, form *core.Form, file *schema.File, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		form:     form,
		schema:   file,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.resetter = &admin.Resetter{Form: form, Schema: file, Repo: s.repo, Logger: s.logger}
	s.imports = importer.NewLimiter(cfg.Form.MaxConcurrentImports, cfg.Form.ImportWait)
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// The event stream outlives the request timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/tables", s.handleListTables)
			r.With(middleware.APIKeyAuth(&s.cfg.Security), s.validateLimit()).
				Post("/validate", s.handleValidateForm)
			r.With(middleware.APIKeyAuth(&s.cfg.Security)).Post("/reset", s.handleResetAll)

			r.Route("/tables/{table}", func(r chi.Router) {
				r.Get("/rows", s.handleListRows)
				r.Get("/rows/{key}", s.handleGetRow)
				r.Get("/view", s.handleTableView)
				r.Get("/audit", s.handleAudit)
				r.Get("/export", s.handleExport)
				r.Get("/template", s.handleTemplate)

				r.Group(func(r chi.Router) {
					r.Use(middleware.APIKeyAuth(&s.cfg.Security))

					r.Post("/rows", s.handleAddRow)
					r.Patch("/rows/{key}", s.handleUpdateRow)
					r.Delete("/rows/{key}", s.handleRemoveRow)
					r.Post("/rows/{key}/edit", s.handleBeginEdit)
					r.Post("/rows/{key}/save", s.handleSave)
					r.Post("/rows/{key}/cancel", s.handleCancel)
					r.Post("/reset", s.handleReset)
					r.Post("/import", s.handleImport)
					r.With(s.validateLimit()).Post("/validate", s.handleValidateTable)
				})
			})
		})
	})
}

// validateLimit applies the stricter limit for whole-table and whole-form
// validation. It passes requests through when rate limiting is off.
func (s *Server) validateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit(s.cfg.Rate.ValidateLimit)
}

// rateLimit creates a limiter that is stopped on Shutdown.
func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	rl := middleware.NewRateLimiter(perMinute)
	s.limiters = append(s.limiters, rl)
	return rl.Handler
}

// Start begins listening for HTTP requests. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. Running imports are given until
// ctx is done to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Close()
	}
	if st := s.imports.Status(); st.Active > 0 {
		s.logger.Info("waiting for imports to complete", "active", st.Active)
		if err := s.imports.WaitForDrain(ctx); err != nil {
			s.logger.Warn("imports did not complete in time", "error", err)
		}
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}
