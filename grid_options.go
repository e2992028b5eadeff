package remotedata

import (
	"errors"
	"fmt"
	"time"
)

// gridConfig holds configuration during source grid construction.
type gridConfig struct {
	query        string
	dimensions   map[string][]string
	variables    map[string]any
	staticLabels map[string]string
	headers      map[string]string
	timeout      time.Duration
	selector     Selector
	interval     time.Duration
}

// GridOption configures source grid generation for [NewSourceGrid].
type GridOption func(*gridConfig) error

// WithGridQuery sets the GraphQL query shared by every generated source.
//
// Returns an error if the query is empty.
func WithGridQuery(query string) GridOption {
	return func(cfg *gridConfig) error {
		if query == "" {
			return errors.New("query required")
		}
		cfg.query = query
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a GraphQL variable, and the cartesian product of all
// values generates the source combinations.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "plan":  {"basic", "plus"},
//	    "state": {"CA", "NY"},
//	})
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridVariables sets static GraphQL variables sent by every generated
// source. Dimension values override them on collision.
func WithGridVariables(vars map[string]any) GridOption {
	return func(cfg *gridConfig) error {
		for k, v := range vars {
			if k == "" {
				return errors.New("variable name cannot be empty")
			}
			cfg.variables[k] = v
		}
		return nil
	}
}

// WithGridLabels adds static labels to all generated sources.
// On collision, static labels take precedence over dimension labels.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.staticLabels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridHeaders adds HTTP headers to all generated sources.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridTimeout sets the request timeout for all generated sources.
// Zero means the source default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridSelector sets the [Selector] for all generated sources.
// If nil, sources use [DefaultSelector].
func WithGridSelector(sel Selector) GridOption {
	return func(cfg *gridConfig) error {
		cfg.selector = sel
		return nil
	}
}

// WithGridInterval sets a custom refresh interval for all generated sources.
//
// The interval must be between 1 second and 1 hour. Zero means the board's
// global polling interval.
func WithGridInterval(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("interval cannot be negative")
		}
		if d != 0 && d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}
