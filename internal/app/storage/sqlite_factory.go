package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/config"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/store/sqlite"
)

// SQLiteFactory serves a store backed by a local database file
type SQLiteFactory struct {
	path   string
	tracer sqlite.Option

	mu    sync.Mutex
	store *sqlite.Store
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory creates the database file if needed and migrates it
func NewSQLiteFactory(_ context.Context, cfg *config.SQLiteConfig, o *options) (*SQLiteFactory, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	slog.Info("Creating SQLite storage factory", "path", cfg.Path)

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := migrate(database.NewSQLiteMigrator(cfg.Path)); err != nil {
		return nil, err
	}

	f := &SQLiteFactory{path: cfg.Path}
	if o != nil && o.tracer != nil {
		f.tracer = sqlite.WithTracer(o.tracer)
	}
	return f, nil
}

// CreateStore opens the database file
func (f *SQLiteFactory) CreateStore(ctx context.Context) (store.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil {
		return f.store, nil
	}

	var opts []sqlite.Option
	if f.tracer != nil {
		opts = append(opts, f.tracer)
	}
	s, err := sqlite.Open(ctx, f.path, opts...)
	if err != nil {
		return nil, err
	}
	f.store = s
	return s, nil
}

// Cleanup closes the database file
func (f *SQLiteFactory) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return
	}
	slog.Info("Closing SQLite database", "path", f.path)
	if err := f.store.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	f.store = nil
}
