package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "status.db")

	m, err := database.NewSQLiteMigrator(path)
	require.NoError(t, err)
	require.NoError(t, database.MigrateUp(m))
	require.NoError(t, database.CloseMigrator(m))

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestStore_UnknownStoredValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   string
		severity string
		wantErr  error
	}{
		{name: "unknown status", status: "investigating", severity: "full_outage", wantErr: model.ErrUnknownStatus},
		{name: "unknown severity", status: "ongoing", severity: "catastrophic", wantErr: model.ErrUnknownSeverity},
		{name: "class token is not a storage value", status: "under-surveillance", severity: "full_outage",
			wantErr: model.ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			ctx := context.Background()

			_, err := s.db.ExecContext(ctx, `
				INSERT INTO interventions (title, start_date, status, severity, is_planned)
				VALUES ('Broken row', 1700000000, ?, ?, 0)`, tt.status, tt.severity)
			require.NoError(t, err)

			_, err = s.ListInterventions(ctx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_StoresUnixSeconds(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// the row layout is shared with earlier deployments of the status page
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interventions (title, start_date, estimated_duration, status, severity, is_planned)
		VALUES ('Migration', 1714557600, 30, 'planned', 'partial_outage', 1)`)
	require.NoError(t, err)

	interventions, err := s.ListInterventions(ctx)
	require.NoError(t, err)
	require.Len(t, interventions, 1)
	assert.Equal(t, "2024-05-01 10:00:00 +0000 UTC", interventions[0].StartDate.String())
	assert.Equal(t, model.StatusPlanned, interventions[0].Status)
	assert.True(t, interventions[0].IsPlanned)
}
