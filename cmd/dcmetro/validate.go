package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/dcmetro/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a dcmetro configuration file without starting the server.

This command loads the env file, parses the YAML, expands environment
variables, and validates all fields. It does not contact WMATA.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  dcmetro validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sessions, err := config.BuildSessions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:     %d\n", cfg.Port)
	fmt.Printf("  Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("    - %s: %d stations, incidents every %s, train times every %s, breaker %s\n",
			s.Identifier(), len(s.Stations()), s.IncidentsInterval(), s.TrainTimesInterval(), s.Breaker().Policy)
	}

	return nil
}
