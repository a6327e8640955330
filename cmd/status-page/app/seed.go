package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/status-page-server/internal/app/storage"
	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/store"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo services and an intervention",
		Long: `Insert two demo services and one ongoing full outage affecting the first one.
Intended for local development against an empty store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			factory, err := storage.NewStorageFactory(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create storage factory: %w", err)
			}
			defer factory.Cleanup()

			st, err := factory.CreateStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			return insertFixtures(ctx, st, time.Now().UTC())
		},
	}
}

// insertFixtures adds the demo records, the intervention starting at now
func insertFixtures(ctx context.Context, st store.Store, now time.Time) error {
	services := []model.Service{
		{Name: "Framasphere", URL: "https://diaspora-fr.org"},
		{Name: "Framathunes", URL: "https://kresus.org"},
	}

	ids := make([]int64, 0, len(services))
	for i := range services {
		id, err := st.InsertService(ctx, &services[i])
		if err != nil {
			return fmt.Errorf("failed to insert service %s: %w", services[i].Name, err)
		}
		slog.Info("Service inserted", "id", id, "name", services[i].Name)
		ids = append(ids, id)
	}

	description := "Le service ne répond plus, l'équipe est sur le coup."
	duration := int64(20)
	intervention := &model.Intervention{
		Title:             "Framasphère est inaccessible",
		Description:       &description,
		StartDate:         now.Truncate(time.Second),
		EstimatedDuration: &duration,
		Status:            model.StatusIdentified,
		Severity:          model.SeverityFullOutage,
	}

	id, err := st.InsertIntervention(ctx, intervention, ids[:1])
	if err != nil {
		return fmt.Errorf("failed to insert intervention: %w", err)
	}
	slog.Info("Intervention inserted", "id", id, "title", intervention.Title)
	return nil
}
