package cli

import (
	"fmt"

	"github.com/prepmate/backend/services"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate and seed the database with sample data",
	Long:  "Seeding is idempotent; existing interviewers, companies and users are left untouched.",
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
		return services.NewDatabaseSeeder(repo).SeedDatabase(cmd.Context())
	},
}
