// Package storage creates the record store selected by the configuration and
// owns its lifecycle. SQL backends are migrated to the latest schema before use.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/config"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/store/inmemory"
)

// Factory creates the store for one storage backend and releases it on Cleanup
type Factory interface {
	// CreateStore returns the store, creating it on first call
	CreateStore(ctx context.Context) (store.Store, error)

	// Cleanup closes the store. It is safe to call more than once.
	Cleanup()
}

// Option configures the SQL factories
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer traces store queries with tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// NewStorageFactory creates the factory for cfg.Storage.Type
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Storage.Type {
	case config.StorageTypeMemory:
		slog.Warn("Using in-memory storage, records are lost on restart")
		return NewMemoryFactory(), nil
	case config.StorageTypeSQLite:
		return NewSQLiteFactory(ctx, cfg.Storage.SQLite, o)
	case config.StorageTypePostgres:
		return NewDatabaseFactory(ctx, cfg.Storage.Postgres, o)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// NewMigrator returns the schema migrator of a SQL storage configuration
func NewMigrator(cfg *config.StorageConfig) (database.Migrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}

	switch cfg.Type {
	case config.StorageTypeSQLite:
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite configuration is required")
		}
		return database.NewSQLiteMigrator(cfg.SQLite.Path)
	case config.StorageTypePostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres configuration is required")
		}
		connString, err := cfg.Postgres.GetConnectionString()
		if err != nil {
			return nil, err
		}
		return database.NewPostgresMigrator(connString)
	default:
		return nil, fmt.Errorf("storage type %q has no schema to migrate", cfg.Type)
	}
}

func migrate(m database.Migrator, err error) error {
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if closeErr := database.CloseMigrator(m); closeErr != nil {
			slog.Warn("Failed to close migrator", "error", closeErr)
		}
	}()

	if err := database.MigrateUp(m); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Info("Database schema is up to date", "version", version, "dirty", dirty)
	}
	return nil
}

// MemoryFactory serves a process-local store
type MemoryFactory struct {
	store *inmemory.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a factory holding an empty in-memory store
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{store: inmemory.New()}
}

// CreateStore returns the in-memory store
func (m *MemoryFactory) CreateStore(_ context.Context) (store.Store, error) {
	return m.store, nil
}

// Cleanup is a no-op
func (*MemoryFactory) Cleanup() {}
