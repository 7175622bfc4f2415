package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/prepmate/backend/services"
	"github.com/spf13/cobra"
)

type configKeyType struct{}

var configKey = configKeyType{}

var rootCmd = &cobra.Command{
	Use:   "prepmate",
	Short: "Interview preparation backend",
	Long: `PrepMate serves the job board, resume analysis and AI mock interview API,
including the live voice interview WebSocket.`,
	SilenceUsage: true,
}

// Execute loads configuration, sets up logging and runs the selected command
func Execute(ctx context.Context) error {
	cfg := services.LoadConfig()
	setupLogging(cfg)

	ctx = context.WithValue(ctx, configKey, cfg)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func setupLogging(cfg *services.Config) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
}

func getConfigFromContext(ctx context.Context) *services.Config {
	if cfg, ok := ctx.Value(configKey).(*services.Config); ok {
		return cfg
	}
	panic("config not found in context")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
}
