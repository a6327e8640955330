// Package api wires the admin API, health endpoints, live updates and the
// rendered site into one HTTP handler.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/status-page-server/internal/api/admin"
	"github.com/stacklok/status-page-server/internal/api/site"
	"github.com/stacklok/status-page-server/internal/api/system"
	"github.com/stacklok/status-page-server/internal/regen"
	"github.com/stacklok/status-page-server/internal/store"
)

// ServerOption configures the HTTP server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	live           http.Handler
	requestTimeout time.Duration
	adminAuth      func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithLiveHub serves the live update websocket at /live
func WithLiveHub(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.live = h
	}
}

// WithRequestTimeout bounds every request except the live websocket
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.requestTimeout = d
	}
}

// WithAdminMiddleware guards every /admin route with mw
func WithAdminMiddleware(mw func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.adminAuth = mw
	}
}

// NewServer creates the HTTP router. Mutations through /admin signal notifier;
// every path not claimed by an endpoint is served from outputDir.
func NewServer(st store.Store, notifier regen.Notifier, outputDir string, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	if cfg.live != nil {
		r.Handle("/live", cfg.live)
	}

	r.Group(func(r chi.Router) {
		if cfg.requestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.requestTimeout))
		}

		system.Register(r, st)
		if cfg.adminAuth != nil {
			r.With(cfg.adminAuth).Mount("/admin", admin.Router(st, notifier))
		} else {
			r.Mount("/admin", admin.Router(st, notifier))
		}
		if cfg.metricsHandler != nil {
			r.Handle("/metrics", cfg.metricsHandler)
		}
		r.Mount("/", site.Router(outputDir))
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
