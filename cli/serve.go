package cli

import (
	"fmt"
	"log/slog"

	"github.com/prepmate/backend/services"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Start the API server. Migrations run on startup and the database is
seeded with interviewers, companies and demo users when DATABASE_SEED is true.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().Bool("seed", true, "Seed the database on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	ctx := cmd.Context()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("seed") {
		cfg.Database.Seed, _ = cmd.Flags().GetBool("seed")
	}

	repo, closeDB, err := openRepository(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	if cfg.Database.Seed {
		if err := services.NewDatabaseSeeder(repo).SeedDatabase(ctx); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	pool := openHealthPool(ctx, cfg.Database.URL)
	if pool != nil {
		defer pool.Close()
	}

	server := services.NewServer(cfg, repo, pool)
	if err := server.InitializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	return server.Start(ctx)
}
