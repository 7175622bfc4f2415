package cli

import (
	"fmt"

	"github.com/prepmate/backend/services"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesized question audio cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number and size of cached clips",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		stats, err := services.NewAudioCache(cfg.Storage.AudioCacheDir).Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d bytes\n", cfg.Storage.AudioCacheDir, stats.Files, stats.SizeBytes)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached clip; audio is synthesized again on demand",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		removed, err := services.NewAudioCache(cfg.Storage.AudioCacheDir).Clear()
		if err != nil {
			return fmt.Errorf("failed to clear audio cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached clips\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
