// Package main is the entry point for the remotedata CLI.
//
// remotedata can be used as a library (SDK) or run as a standalone board
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	remotedata serve -c config.yaml          # Start the board
//	remotedata validate -c config.yaml       # Validate configuration
//	remotedata wait --url http://api/healthz # Block until an API is ready
//	remotedata version                       # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
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
	Use:   "remotedata",
	Short: "Keep GraphQL query results fresh and observable",
	Long: `remotedata keeps the results of GraphQL queries in reactive stores.

Each configured source is loaded on its own interval. Loading state, data,
and errors are served as JSON and streamed live over Server-Sent Events and
WebSocket, with a small dashboard on top.

Quick start:
  1. Create a config file (remotedata.yaml)
  2. Run: remotedata serve -c remotedata.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  graphql:
    url: https://api.example.com/graphql
  sources:
    - name: Pharmacies
      query: '{ pharmacies { id name } }'`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this remotedata binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "remotedata %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
