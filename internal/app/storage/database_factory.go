package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/config"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/store/postgres"
)

// DatabaseFactory serves a store backed by a PostgreSQL connection pool
type DatabaseFactory struct {
	pool *pgxpool.Pool
	opts []postgres.Option

	mu    sync.Mutex
	store *postgres.Store
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory migrates the configured database and opens a connection pool to it
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig, o *options) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required for postgres storage")
	}

	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}
	return newDatabaseFactory(ctx, connString, cfg, o)
}

func newDatabaseFactory(
	ctx context.Context,
	connString string,
	cfg *config.DatabaseConfig,
	o *options,
) (*DatabaseFactory, error) {
	slog.Info("Creating database-backed storage factory")

	if err := migrate(database.NewPostgresMigrator(connString)); err != nil {
		return nil, err
	}

	pool, err := postgres.NewPoolFromConnString(ctx, connString, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	f := &DatabaseFactory{
		pool: pool,
		opts: []postgres.Option{postgres.WithConnectionPool(pool)},
	}
	if o != nil && o.tracer != nil {
		f.opts = append(f.opts, postgres.WithTracer(o.tracer))
		slog.Debug("Database store tracing enabled")
	}
	return f, nil
}

// CreateStore returns the store on the factory's pool
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store != nil {
		return d.store, nil
	}
	s, err := postgres.New(d.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create database store: %w", err)
	}
	d.store = s
	return s, nil
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
		d.pool = nil
	}
	d.store = nil
}
