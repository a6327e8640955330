package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	statusapp "github.com/stacklok/status-page-server/internal/app"
	"github.com/stacklok/status-page-server/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status page server",
		Long: `Start the status page server. The site is rendered once at startup and again
after every change made through the admin API, or to the templates and assets when
watching is enabled. The rendered site is served from the configured output directory.`,
		RunE: runServe,
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
	return serveCmd
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration",
		"config", viper.GetString("config"),
		"storage", cfg.Storage.Type,
		"output_dir", cfg.OutputDir,
	)

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []statusapp.StatusAppOptions{
		statusapp.WithConfig(cfg),
		statusapp.WithAddress(viper.GetString("address")),
		statusapp.WithTracerProvider(tel.TracerProvider()),
		statusapp.WithMeterProvider(tel.MeterProvider()),
	}
	if h := tel.MetricsHandler(); h != nil {
		opts = append(opts, statusapp.WithMetricsHandler(h))
	}

	app, err := statusapp.NewStatusApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}
