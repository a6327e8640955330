package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/status-page-server/internal/api"
	"github.com/stacklok/status-page-server/internal/api/live"
	"github.com/stacklok/status-page-server/internal/app/storage"
	"github.com/stacklok/status-page-server/internal/auth"
	"github.com/stacklok/status-page-server/internal/config"
	"github.com/stacklok/status-page-server/internal/regen"
	"github.com/stacklok/status-page-server/internal/render"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/telemetry"
	"github.com/stacklok/status-page-server/internal/templates"
	"github.com/stacklok/status-page-server/internal/watch"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// StatusAppOptions is a function that configures the status app builder
type StatusAppOptions func(*statusAppConfig) error

// statusAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production
type statusAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...StatusAppOptions) (*statusAppConfig, error) {
	cfg := &statusAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return cfg, nil
}

// NewStatusApp builds every component of the server. Nothing runs until Start.
func NewStatusApp(
	ctx context.Context,
	opts ...StatusAppOptions,
) (*StatusApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	hub := live.NewHub()

	components, err := buildRenderComponents(cfg, st, hub)
	if err != nil {
		return nil, fmt.Errorf("failed to build render components: %w", err)
	}
	components.Hub = hub

	if cfg.config.Watch {
		components.Watcher, err = buildWatcher(cfg.config, components)
		if err != nil {
			return nil, fmt.Errorf("failed to build site source watcher: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		if components.Watcher != nil {
			_ = components.Watcher.Close()
		}
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		factory.Cleanup()
		cancel()
	}

	return &StatusApp{
		config:         cfg.config,
		components:     components,
		httpServer:     httpServer,
		storageFactory: factory,
		ctx:            appCtx,
		cancelFunc:     cancelFunc,
	}, nil
}

// NewSiteRenderer builds a renderer for one-off renders outside the server.
// The returned cleanup function releases the store.
func NewSiteRenderer(ctx context.Context, opts ...StatusAppOptions) (*render.Renderer, func(), error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	components, err := buildRenderComponents(cfg, st, nil)
	if err != nil {
		cfg.storageFactory.Cleanup()
		return nil, nil, fmt.Errorf("failed to build render components: %w", err)
	}
	return components.Renderer, cfg.storageFactory.Cleanup, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for render and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for renders, queries and requests
func WithTracerProvider(tp trace.TracerProvider) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) StatusAppOptions {
	return func(cfg *statusAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildStore creates the storage factory (if not injected) and its store
func buildStore(ctx context.Context, b *statusAppConfig) (store.Store, error) {
	if b.storageFactory == nil {
		var opts []storage.Option
		if b.tracerProvider != nil {
			opts = append(opts, storage.WithTracer(b.tracerProvider.Tracer(render.TracerName)))
		}

		factory, err := storage.NewStorageFactory(ctx, b.config, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		b.storageFactory = factory
	}

	st, err := b.storageFactory.CreateStore(ctx)
	if err != nil {
		b.storageFactory.Cleanup()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return st, nil
}

// buildRenderComponents builds the template set, renderer, change trigger and coordinator.
// notifier is told about every successful render and may be nil.
func buildRenderComponents(b *statusAppConfig, st store.Store, notifier render.Notifier) (*AppComponents, error) {
	slog.Info("Initializing render components")

	tmpl, err := templates.New(b.config.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	metrics, err := telemetry.NewRenderMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create render metrics: %w", err)
	}

	renderOpts := []render.Option{
		render.WithSiteName(b.config.SiteName),
		render.WithBaseURL(b.config.GetBaseURL()),
		render.WithAssetsDir(b.config.AssetsDir),
		render.WithMetrics(metrics),
	}
	if b.tracerProvider != nil {
		renderOpts = append(renderOpts, render.WithTracer(b.tracerProvider.Tracer(render.TracerName)))
	}
	if notifier != nil {
		renderOpts = append(renderOpts, render.WithNotifier(notifier))
	}

	renderer, err := render.New(st, tmpl, b.config.OutputDir, renderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	trigger := regen.NewTrigger()
	coordinator := regen.New(renderer, trigger.C(), regen.WithMetrics(metrics))

	slog.Info("Render components initialized", "output_dir", b.config.OutputDir)
	return &AppComponents{
		Store:       st,
		Templates:   tmpl,
		Renderer:    renderer,
		Trigger:     trigger,
		Coordinator: coordinator,
	}, nil
}

// buildWatcher watches the configured template and asset directories.
// The embedded defaults cannot change, so nil is returned when neither is set.
func buildWatcher(cfg *config.Config, c *AppComponents) (*watch.Watcher, error) {
	var opts []watch.Option
	if cfg.TemplatesDir != "" {
		opts = append(opts, watch.WithTemplatesDir(cfg.TemplatesDir))
	}
	if cfg.AssetsDir != "" {
		opts = append(opts, watch.WithAssetsDir(cfg.AssetsDir))
	}
	if len(opts) == 0 {
		slog.Info("Watch enabled but no templates or assets directory configured, nothing to watch")
		return nil, nil
	}
	return watch.New(c.Templates, c.Trigger, opts...)
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *statusAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	// Add metrics middleware if meter provider is configured
	// This should be added early in the chain to capture all requests
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
		slog.Info("HTTP metrics middleware enabled")
	}
	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)},
			b.middlewares...)
	}

	adminAuth, err := auth.NewAuthMiddleware(b.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin auth middleware: %w", err)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAdminMiddleware(adminAuth),
		api.WithLiveHub(c.Hub),
		api.WithRequestTimeout(b.requestTimeout),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	router := api.NewServer(c.Store, c.Trigger, b.config.OutputDir, serverOpts...)

	// Create HTTP server
	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
