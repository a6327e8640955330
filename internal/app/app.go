// Package app provides application lifecycle management for the status page server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/status-page-server/internal/app/storage"
	"github.com/stacklok/status-page-server/internal/config"
)

// StatusApp encapsulates all components needed to run the status page server
// It provides lifecycle management and graceful shutdown capabilities
type StatusApp struct {
	config         *config.Config
	components     *AppComponents
	httpServer     *http.Server
	storageFactory storage.Factory

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the background components and renders the site once, then serves HTTP.
// This method blocks until the HTTP server stops or encounters an error
func (app *StatusApp) Start() error {
	go func() {
		if err := app.components.Coordinator.Start(app.ctx); err != nil {
			slog.Error("Regeneration coordinator failed", "error", err)
		}
	}()

	if app.components.Watcher != nil {
		go func() {
			if err := app.components.Watcher.Watch(app.ctx); err != nil {
				slog.Error("Site source watcher failed", "error", err)
			}
		}()
	}

	// the published site reflects the store as of startup
	app.components.Trigger.Notify()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// The HTTP server is shut down first so no new mutation arrives, then the
// change signal is closed and the render owed for earlier mutations completes.
func (app *StatusApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.components.Watcher != nil {
		if err := app.components.Watcher.Close(); err != nil {
			slog.Error("Failed to close site source watcher", "error", err)
		}
	}

	app.components.Trigger.Close()
	select {
	case <-app.components.Coordinator.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for the pending render, abandoning it")
		if err := app.components.Coordinator.Stop(); err != nil {
			slog.Error("Failed to stop regeneration coordinator", "error", err)
		}
	}

	app.components.Hub.Close()

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	slog.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// GetConfig returns the application configuration
func (app *StatusApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *StatusApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the application components
func (app *StatusApp) GetComponents() *AppComponents {
	return app.components
}
