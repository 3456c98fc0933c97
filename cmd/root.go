package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "visionid",
	Short: "Face recognition attendance service",
	Long: `VisionID matches faces against a gallery of enrolled identities and
records attendance. It talks to an external face detection/embedding server
and stores identities, attendance and the recognition audit trail in
PostgreSQL.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
