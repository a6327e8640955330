package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	statusapp "github.com/stacklok/status-page-server/internal/app"
)

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the site once and exit",
		Long: `Render the site from the current store contents into the output directory and exit.
Useful to publish the site from a cron job or a CI pipeline without running the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context())
		},
	}
}

func runRender(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	renderer, cleanup, err := statusapp.NewSiteRenderer(ctx, statusapp.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	if err := renderer.Render(ctx); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	slog.Info("Site rendered", "output_dir", cfg.OutputDir)
	return nil
}
