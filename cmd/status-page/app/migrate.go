package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/status-page-server/database"
	"github.com/stacklok/status-page-server/internal/app/storage"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Database migration tool for managing schema versions of the sqlite and postgres
stores. Use with 'up' or 'down' subcommands. The server also applies pending
migrations at startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateCmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")

	migrateCmd.AddCommand(newMigrateUpCmd())
	migrateCmd.AddCommand(newMigrateDownCmd())
	return migrateCmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
The store is read from the configuration file.`,
		RunE: runMigrateUp,
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  status-page migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  status-page migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func setupMigration() (database.Migrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	m, err := storage.NewMigrator(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m database.Migrator) {
	if err := database.CloseMigrator(m); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}

func logVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state", "version", version)
	default:
		slog.Info("Migrations applied successfully", "version", version)
	}
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	m, err := setupMigration()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	slog.Info("Applying database migrations...")
	if err := database.MigrateUp(m); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logVersion(m)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	if !yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), downPrompt(numSteps))
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("Migration cancelled by user")
			return nil
		}
	}

	m, err := setupMigration()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	slog.Info("Reverting database migrations...", "steps", numSteps)
	if err := database.MigrateDown(m, int(numSteps)); err != nil {
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	logVersion(m)
	return nil
}

func downPrompt(numSteps uint) string {
	if numSteps == 0 {
		return "This will revert ALL migrations and destroy all data. Continue? (yes/no): "
	}
	return fmt.Sprintf("This will revert %d migration(s). Continue? (yes/no): ", numSteps)
}

// confirm asks question on out and reports whether the answer read from in is yes
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprint(out, question); err != nil {
		return false, err
	}
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y", nil
}
