// Command server runs the ztc-auth HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ztc-auth",
		Short:         "Authentication and session service for ZTruyen",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFiles []string
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	rootCmd.AddCommand(
		serveCmd(&envFiles),
		migrateCmd(&envFiles),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
