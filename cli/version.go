package cli

import (
	"fmt"

	"github.com/prepmate/backend/services"
	"github.com/spf13/cobra"
)

var (
	// Set during build with ldflags
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("prepmate version %s\n", services.Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build date: %s\n", BuildDate)
	},
}
