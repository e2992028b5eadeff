package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/remotedata"
	"github.com/jpalmerr/remotedata/config"
	"github.com/jpalmerr/remotedata/poll"
)

// waitCmd blocks until a health URL reports ready, or gives up.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until an API reports ready",
	Long: `Poll a health URL on a fixed interval until it reports ready.

The URL is checked once per interval, at most --attempts times. The first
check happens one interval after start. The command exits 0 as soon as a
check passes, and 1 once every attempt has failed.

Checks:
  default        JSON "status" field, falling back to the HTTP status code
  http           2xx is ready
  json:<path>    JSON field at a dot-separated path
  contains:<txt> body contains the text

Example:
  remotedata wait --url http://localhost:4000/healthz --interval 2s --attempts 30
  remotedata wait --url http://localhost:4000/healthz --check json:data.status`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().String("url", "", "health URL to poll (required)")
	waitCmd.Flags().Duration("interval", time.Second, "time between attempts")
	waitCmd.Flags().Int("attempts", poll.DefaultMaxAttempts, "maximum number of attempts")
	waitCmd.Flags().String("check", "default", "readiness check")
	waitCmd.Flags().Duration("timeout", 0, "per-request timeout (default: the interval)")
	_ = waitCmd.MarkFlagRequired("url")
}

func runWait(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("url")
	interval, _ := cmd.Flags().GetDuration("interval")
	attempts, _ := cmd.Flags().GetInt("attempts")
	checkFlag, _ := cmd.Flags().GetString("check")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var cc config.CheckConfig
	if err := cc.ParseShorthand(checkFlag); err != nil {
		return err
	}
	if err := config.ValidateCheck(cc, "--check"); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := remotedata.HTTPProbe(target, config.BuildCheck(cc), timeout)
	res, err := poll.Poll(ctx, probe, interval, attempts, poll.WithLogger(newLogger()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch res.Outcome {
	case poll.OutcomeOK:
		fmt.Fprintf(out, "%s is ready after %d attempt(s) (%s)\n", target, res.Attempts, res.Elapsed.Round(time.Millisecond))
		return nil
	case poll.OutcomeCancelled:
		if errors.Is(res.Err(), context.Canceled) {
			return fmt.Errorf("wait interrupted after %d attempt(s)", res.Attempts)
		}
		return res.Err()
	default:
		return fmt.Errorf("%s not ready after %d attempt(s): %w", target, res.Attempts, res.Err())
	}
}
