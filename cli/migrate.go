package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())

		repo, closeDB, err := openRepository(cfg.Database)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repo.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Database migrations completed")
		return nil
	},
}
