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
	var schemaFile string

	rootCmd := &cobra.Command{
		Use:   "gridform",
		Short: "Editable validated tables over HTTP",
		Long: `gridform keeps tables of rows in memory, validates them against
rules declared in a YAML schema and serves them over a JSON API.

Rows can be written through to PostgreSQL when DATABASE_URL is set.
Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "schema file (overrides GRIDFORM_SCHEMA_FILE)")

	rootCmd.AddCommand(
		serveCmd(&schemaFile),
		validateCmd(&schemaFile),
		importCmd(&schemaFile),
		exportCmd(&schemaFile),
		resetCmd(&schemaFile),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
