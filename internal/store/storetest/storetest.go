// Package storetest holds the behavioural tests every store.Store implementation must pass.
package storetest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/store"
)

// Factory returns a fresh, empty store for one subtest
type Factory func(t *testing.T) store.Store

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// Run executes the store contract tests against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("insert and list services", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		apiID, err := s.InsertService(ctx, &model.Service{Name: "API", URL: "https://api.example.org"})
		require.NoError(t, err)
		webID, err := s.InsertService(ctx, &model.Service{Name: "Web"})
		require.NoError(t, err)
		assert.NotEqual(t, apiID, webID)

		services, err := s.ListServices(ctx)
		require.NoError(t, err)
		require.Len(t, services, 2)

		byID := map[int64]model.Service{}
		for _, svc := range services {
			byID[svc.ID] = svc
		}
		assert.Equal(t, model.Service{ID: apiID, Name: "API", URL: "https://api.example.org"}, byID[apiID])
		assert.Equal(t, model.Service{ID: webID, Name: "Web"}, byID[webID])

		got, err := s.GetService(ctx, apiID)
		require.NoError(t, err)
		assert.Equal(t, "API", got.Name)
	})

	t.Run("get missing service", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetService(context.Background(), 404)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("insert service requires a name", func(t *testing.T) {
		s := newStore(t)

		_, err := s.InsertService(context.Background(), &model.Service{URL: "https://x"})
		assert.Error(t, err)
	})

	t.Run("intervention round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		apiID, err := s.InsertService(ctx, &model.Service{Name: "API"})
		require.NoError(t, err)
		dbID, err := s.InsertService(ctx, &model.Service{Name: "DB"})
		require.NoError(t, err)

		start := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
		end := start.Add(2 * time.Hour)
		in := &model.Intervention{
			Title:             "Timeout spike",
			Description:       Ptr("Requests time out on **eu-west**"),
			StartDate:         start,
			EstimatedDuration: Ptr(int64(90)),
			EndDate:           &end,
			Status:            model.StatusUnderSurveillance,
			Severity:          model.SeverityPerformanceIssue,
		}

		id, err := s.InsertIntervention(ctx, in, []int64{apiID, dbID})
		require.NoError(t, err)

		interventions, err := s.ListInterventions(ctx)
		require.NoError(t, err)
		require.Len(t, interventions, 1)

		got := interventions[0]
		assert.Equal(t, id, got.ID)
		assert.Equal(t, in.Title, got.Title)
		require.NotNil(t, got.Description)
		assert.Equal(t, *in.Description, *got.Description)
		assert.True(t, start.Equal(got.StartDate), "start date %s", got.StartDate)
		require.NotNil(t, got.EstimatedDuration)
		assert.Equal(t, int64(90), *got.EstimatedDuration)
		require.NotNil(t, got.EndDate)
		assert.True(t, end.Equal(*got.EndDate))
		assert.Equal(t, model.StatusUnderSurveillance, got.Status)
		assert.Equal(t, model.SeverityPerformanceIssue, got.Severity)

		sids, err := s.ListServiceIDsForIntervention(ctx, id)
		require.NoError(t, err)
		slices.Sort(sids)
		assert.Equal(t, []int64{apiID, dbID}, sids)
	})

	t.Run("optional fields stay absent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.InsertIntervention(ctx, &model.Intervention{
			Title:     "Upgrade",
			StartDate: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			Status:    model.StatusPlanned,
			Severity:  model.SeverityPartialOutage,
			IsPlanned: true,
		}, nil)
		require.NoError(t, err)

		interventions, err := s.ListInterventions(ctx)
		require.NoError(t, err)
		require.Len(t, interventions, 1)
		assert.Nil(t, interventions[0].Description)
		assert.Nil(t, interventions[0].EstimatedDuration)
		assert.Nil(t, interventions[0].EndDate)
		assert.True(t, interventions[0].IsPlanned)

		sids, err := s.ListServiceIDsForIntervention(ctx, interventions[0].ID)
		require.NoError(t, err)
		assert.Empty(t, sids)
	})

	t.Run("unknown service rolls back the insert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		apiID, err := s.InsertService(ctx, &model.Service{Name: "API"})
		require.NoError(t, err)

		_, err = s.InsertIntervention(ctx, &model.Intervention{
			Title:     "Outage",
			StartDate: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			Status:    model.StatusOngoing,
			Severity:  model.SeverityFullOutage,
		}, []int64{apiID, apiID + 1000})
		require.ErrorIs(t, err, store.ErrNotFound)

		interventions, err := s.ListInterventions(ctx)
		require.NoError(t, err)
		assert.Empty(t, interventions)
	})

	t.Run("invalid intervention is rejected", func(t *testing.T) {
		s := newStore(t)

		_, err := s.InsertIntervention(context.Background(), &model.Intervention{Title: "No date"}, nil)
		assert.Error(t, err)
	})

	t.Run("services with counts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		apiID, err := s.InsertService(ctx, &model.Service{Name: "API"})
		require.NoError(t, err)
		webID, err := s.InsertService(ctx, &model.Service{Name: "Web"})
		require.NoError(t, err)

		base := model.Intervention{
			Title:     "Incident",
			StartDate: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			Status:    model.StatusResolved,
			Severity:  model.SeverityPartialOutage,
		}
		for range 2 {
			i := base
			_, err = s.InsertIntervention(ctx, &i, []int64{apiID})
			require.NoError(t, err)
		}

		counts, err := s.ListServicesWithCounts(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 2)
		assert.Equal(t, apiID, counts[0].ID)
		assert.Equal(t, int64(2), counts[0].InterventionCount)
		assert.Equal(t, webID, counts[1].ID)
		assert.Equal(t, int64(0), counts[1].InterventionCount)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
