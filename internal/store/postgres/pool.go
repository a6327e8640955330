package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/status-page-server/internal/config"
)

const (
	defaultMaxConns = 10
)

// NewPool opens a pgx pool from the database configuration and verifies it is reachable
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	return NewPoolFromConnString(ctx, connString, cfg)
}

// NewPoolFromConnString opens a pgx pool on connString. Pool sizing is taken from cfg when non-nil.
func NewPoolFromConnString(ctx context.Context, connString string, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MaxConns = defaultMaxConns
	if cfg != nil {
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			poolCfg.MinIdleConns = min(cfg.MaxIdleConns, poolCfg.MaxConns)
		}
		lifetime, err := cfg.GetConnMaxLifetime()
		if err != nil {
			return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
		}
		if lifetime > 0 {
			poolCfg.MaxConnLifetime = lifetime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return pool, nil
}
