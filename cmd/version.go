package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/visionid/visionid/internal/config"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and effective policy",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		fmt.Printf("visionid %s (%s, built %s, %s)\n", Version, CommitSHA, BuildDate, runtime.Version())
		fmt.Printf("  embedding dim:    %d\n", cfg.Recognition.Dim)
		fmt.Printf("  accept threshold: %.2f\n", cfg.Recognition.AcceptThreshold)
		fmt.Printf("  detector:         %s\n", cfg.Detector.URL)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
