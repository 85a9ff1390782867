// Package main is the entry point for the dcmetro CLI.
//
// Usage:
//
//	dcmetro serve -c config.yaml      # Start polling and the dashboard
//	dcmetro validate -c config.yaml   # Validate configuration
//	dcmetro stations fetch            # Regenerate the station table
//	dcmetro version                   # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/dcmetro/config"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "dcmetro",
	Short: "Live WMATA incidents and train times",
	Long: `dcmetro polls the WMATA rail API and serves a live dashboard of
incidents and next-train times for Washington Metro stations.

Quick start:
  1. Put your API key in .env: WMATA_API_KEY=...
  2. Run: dcmetro serve -c dcmetro.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  sessions:
    - identifier: hallway
      api_key: ${WMATA_API_KEY}
      stations: [A01, C01]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if envFile == "" {
			return nil
		}
		return config.LoadEnvFiles(envFile)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this dcmetro binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dcmetro %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "file of KEY=value pairs loaded before config expansion; skipped if missing")
	rootCmd.AddCommand(versionCmd)
}
