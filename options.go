package remotedata

import (
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/jpalmerr/remotedata/poll"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title           string
	endpoint        string
	headers         map[string]string
	sources         []Source
	pollingInterval time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	readiness       *readinessConfig
	changeCallbacks []func(Change)
}

// readinessConfig describes the wait performed before the first load.
type readinessConfig struct {
	url         string
	interval    time.Duration
	maxAttempts int
	check       ReadinessCheck
}

// Option configures a [Board] during construction.
//
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithGraphQLEndpoint sets the URL every source's query is POSTed to.
// Required.
//
// Returns an error if the URL has no http or https scheme.
func WithGraphQLEndpoint(rawURL string) Option {
	return func(cfg *boardConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid GraphQL endpoint: " + err.Error())
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("GraphQL endpoint must have a scheme (http:// or https://)")
		}
		cfg.endpoint = rawURL
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every GraphQL request, such as an
// API key. Per-source headers from [WithSourceHeaders] override them.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *boardConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithSource adds a single [Source]. Can be called multiple times.
func WithSource(s Source) Option {
	return func(cfg *boardConfig) error {
		cfg.sources = append(cfg.sources, s)
		return nil
	}
}

// WithSources adds multiple [Source] values.
//
// Example:
//
//	grid, _ := remotedata.NewSourceGrid("Formulary", ...)
//	b, err := remotedata.New(
//	    remotedata.WithGraphQLEndpoint("https://api.example.com/graphql"),
//	    remotedata.WithSources(grid...),
//	)
func WithSources(sources ...Source) Option {
	return func(cfg *boardConfig) error {
		cfg.sources = append(cfg.sources, sources...)
		return nil
	}
}

// WithPollingInterval sets how often sources without their own interval are
// refreshed. Defaults to 15 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the API and dashboard. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency caps how many loads run at once. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "remotedata".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithReadiness makes [Board.Start] wait until the API reports ready before
// the first load.
//
// url is polled every interval, at most maxAttempts times (0 selects
// [poll.DefaultMaxAttempts]). A nil check uses [DefaultCheck]. Start fails if
// the API never becomes ready.
//
// An empty url sends a "{ __typename }" query to the GraphQL endpoint instead.
// Any decoded GraphQL response counts as ready, errors included, and check is
// not used.
//
// Example:
//
//	remotedata.WithReadiness("http://localhost:4000/healthz", time.Second, 30, nil)
func WithReadiness(rawURL string, interval time.Duration, maxAttempts int, check ReadinessCheck) Option {
	return func(cfg *boardConfig) error {
		if rawURL != "" {
			u, err := url.Parse(rawURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return errors.New("readiness URL must have a scheme (http:// or https://)")
			}
		}
		if interval <= 0 {
			return errors.New("readiness interval must be positive")
		}
		if maxAttempts < 0 {
			return errors.New("readiness attempts cannot be negative")
		}
		if maxAttempts == 0 {
			maxAttempts = poll.DefaultMaxAttempts
		}
		cfg.readiness = &readinessConfig{
			url:         rawURL,
			interval:    interval,
			maxAttempts: maxAttempts,
			check:       check,
		}
		return nil
	}
}

// WithChangeCallback registers a function called on every state change of
// every source: when a load starts and when it settles.
//
// Callbacks run synchronously in the order changes happen, so they must not
// block and must not call [Board.Refresh]. Multiple callbacks run in
// registration order. Panics are recovered and logged.
//
// Example:
//
//	remotedata.WithChangeCallback(func(c remotedata.Change) {
//	    if !c.State.IsLoading && c.State.HasErrors() {
//	        slog.Warn("resource has errors", "resource", c.Name)
//	    }
//	})
//
// Nil callbacks are ignored.
func WithChangeCallback(cb func(Change)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.changeCallbacks = append(cfg.changeCallbacks, cb)
		return nil
	}
}
