package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/remotedata/config"
)

// validateCmd validates a config file without starting the board.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a remotedata configuration file without starting the board.

This command parses the YAML, expands environment variables, validates all
fields, and builds every source. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  remotedata validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	validateCmd.Flags().StringSlice("env-file", nil, "env files to load before reading config")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	if len(envFiles) > 0 {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sources, err := config.BuildSources(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Sources)
	fromGrids := len(sources) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  GraphQL:       %s\n", cfg.GraphQL.URL)
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	if cfg.Readiness != nil {
		fmt.Fprintf(out, "  Readiness:     every %s, %d attempts\n", cfg.Readiness.Interval.Duration(), cfg.Readiness.MaxAttempts)
	}
	fmt.Fprintf(out, "  Sources:       %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(sources))

	return nil
}
