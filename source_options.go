package remotedata

import (
	"errors"
	"time"
)

// sourceConfig holds mutable state during source construction.
type sourceConfig struct {
	variables map[string]any
	selector  Selector
	labels    map[string]string
	headers   map[string]string
	timeout   time.Duration
	interval  time.Duration
}

// SourceOption configures a [Source] during construction.
// Options return an error if validation fails.
type SourceOption func(*sourceConfig) error

// WithVariables sets GraphQL variables sent with the query.
// Later calls merge into earlier ones.
func WithVariables(vars map[string]any) SourceOption {
	return func(cfg *sourceConfig) error {
		for k, v := range vars {
			if k == "" {
				return errors.New("variable name cannot be empty")
			}
			cfg.variables[k] = v
		}
		return nil
	}
}

// WithSelector sets how the stored list is picked out of the GraphQL data.
// If not specified, [DefaultSelector] is used.
//
// Example:
//
//	remotedata.WithSelector(remotedata.EdgesSelector("patient.prescriptions"))
func WithSelector(sel Selector) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.selector = sel
		return nil
	}
}

// WithLabels adds metadata labels to the source.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
func WithLabels(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithSourceHeaders adds HTTP headers to this source's GraphQL requests.
// They override board-wide headers set with [WithHeaders].
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
func WithSourceHeaders(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithSourceHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the request timeout for this source.
//
// A request that exceeds it fails the load, which records a FETCH_FAILED
// error on the store. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithInterval sets a custom refresh interval for this source.
//
// The interval must be at least 1 second and at most 1 hour. If not
// specified, the board's [WithPollingInterval] applies.
//
// The interval is measured from when a load starts, not when it completes.
func WithInterval(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}
