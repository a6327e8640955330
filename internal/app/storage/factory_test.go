package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/config"
	"github.com/stacklok/status-page-server/internal/model"
)

func TestNewStorageFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr string
	}{
		{name: "nil config", wantErr: "config cannot be nil"},
		{name: "unknown type", cfg: &config.Config{Storage: config.StorageConfig{Type: "redis"}},
			wantErr: "unknown storage type"},
		{name: "sqlite without path", cfg: &config.Config{Storage: config.StorageConfig{Type: config.StorageTypeSQLite}},
			wantErr: "sqlite path is required"},
		{name: "postgres without config", cfg: &config.Config{Storage: config.StorageConfig{Type: config.StorageTypePostgres}},
			wantErr: "database configuration is required"},
		{name: "memory", cfg: &config.Config{Storage: config.StorageConfig{Type: config.StorageTypeMemory}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewStorageFactory(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(f.Cleanup)
		})
	}
}

func TestMemoryFactory_SameStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := NewMemoryFactory()
	a, err := f.CreateStore(ctx)
	require.NoError(t, err)
	b, err := f.CreateStore(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)
	f.Cleanup()
}

func TestSQLiteFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nested", "status.db")
	cfg := &config.Config{Storage: config.StorageConfig{
		Type:   config.StorageTypeSQLite,
		SQLite: &config.SQLiteConfig{Path: path},
	}}

	f, err := NewStorageFactory(ctx, cfg, WithTracer(noop.NewTracerProvider().Tracer("test")))
	require.NoError(t, err)

	st, err := f.CreateStore(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Ping(ctx))

	id, err := st.InsertService(ctx, &model.Service{Name: "API"})
	require.NoError(t, err)

	f.Cleanup()
	f.Cleanup()

	// migrations are idempotent and the data survives reopening
	f, err = NewStorageFactory(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	st, err = f.CreateStore(ctx)
	require.NoError(t, err)
	svc, err := st.GetService(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "API", svc.Name)
}

func TestDatabaseFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	connString := database.SetupTestDB(t)

	f, err := newDatabaseFactory(ctx, connString, &config.DatabaseConfig{MaxOpenConns: 2}, &options{})
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	st, err := f.CreateStore(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Ping(ctx))

	again, err := f.CreateStore(ctx)
	require.NoError(t, err)
	assert.Same(t, st, again)
}

func TestNewMigrator(t *testing.T) {
	t.Parallel()

	_, err := NewMigrator(nil)
	assert.Error(t, err)

	_, err = NewMigrator(&config.StorageConfig{Type: config.StorageTypeMemory})
	assert.ErrorContains(t, err, "no schema")

	_, err = NewMigrator(&config.StorageConfig{Type: config.StorageTypePostgres})
	assert.Error(t, err)

	m, err := NewMigrator(&config.StorageConfig{
		Type:   config.StorageTypeSQLite,
		SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "status.db")},
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateUp(m))
	require.NoError(t, database.CloseMigrator(m))
}
