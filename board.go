package remotedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/remotedata/dashboard"
	"github.com/jpalmerr/remotedata/internal/scheduler"
	"github.com/jpalmerr/remotedata/internal/server"
	"github.com/jpalmerr/remotedata/internal/transport"
	"github.com/jpalmerr/remotedata/poll"
	"github.com/jpalmerr/remotedata/resource"
)

const (
	defaultPollingInterval = 15 * time.Second
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
)

// ErrNotFound is wrapped by errors for source names the board does not know.
var ErrNotFound = server.ErrUnknownResource

// Change is one state change of one source, as delivered to
// [WithChangeCallback] callbacks and API subscribers.
type Change = resource.Snapshot[json.RawMessage]

// Board keeps a set of GraphQL-backed resource stores fresh and serves their
// state over HTTP.
//
// Each [Source] gets its own [resource.Store]. The board refreshes every
// store on the source's interval and serves a dashboard, a REST API, and
// live SSE and WebSocket streams of state changes.
//
// The typical lifecycle is:
//
//	b, err := remotedata.New(
//	    remotedata.WithGraphQLEndpoint("https://api.example.com/graphql"),
//	    remotedata.WithSource(src),
//	)
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
type Board struct {
	title           string
	endpoint        string
	headers         map[string]string
	sources         []Source
	pollingInterval time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	readiness       *readinessConfig

	client   *transport.Client
	registry *resource.Registry[json.RawMessage]
	fetchers map[string]resource.Fetcher[json.RawMessage]
}

// New creates a [Board] with the given options.
//
// [WithGraphQLEndpoint] and at least one source are required. Other options
// default to:
//   - Polling interval: 15 seconds
//   - Port: 8080
//   - Max concurrency: 10
//
// Stores are created here, so [Board.Stores] and [Board.Refresh] work before
// [Board.Start].
//
// Returns an error if a requirement is missing, source names repeat, or any
// option is invalid.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.endpoint == "" {
		return nil, errors.New("GraphQL endpoint is required")
	}
	if len(cfg.sources) == 0 {
		return nil, errors.New("at least one source is required")
	}

	// names key the stores, the scheduler, and the API routes
	seen := make(map[string]bool, len(cfg.sources))
	for _, src := range cfg.sources {
		if seen[src.name] {
			return nil, fmt.Errorf("duplicate source name: %q", src.name)
		}
		seen[src.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Board{
		title:           cfg.title,
		endpoint:        cfg.endpoint,
		headers:         copyMap(cfg.headers),
		sources:         cfg.sources,
		pollingInterval: cfg.pollingInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		logger:          logger,
		readiness:       cfg.readiness,
		client:          transport.NewClient(),
		registry:        resource.NewRegistry[json.RawMessage](),
		fetchers:        make(map[string]resource.Fetcher[json.RawMessage], len(cfg.sources)),
	}

	for _, src := range b.sources {
		st := resource.New[json.RawMessage](resource.WithName(src.name), resource.WithLogger(logger))
		if err := b.registry.Register(src.name, st); err != nil {
			return nil, err
		}
		if len(cfg.changeCallbacks) > 0 {
			name := src.name
			callbacks := cfg.changeCallbacks
			st.OnChange(func(state resource.State[json.RawMessage]) {
				change := Change{Name: name, State: state}
				for _, cb := range callbacks {
					invokeCallbackSafe(cb, change, logger)
				}
			})
		}
		b.fetchers[src.name] = b.fetcher(src)
	}

	return b, nil
}

// Start waits for readiness (if configured), then refreshes every source on
// its interval and serves the HTTP API until ctx is cancelled.
//
// Start blocks. It returns nil on graceful shutdown, an error wrapping the
// poll outcome if the API never became ready, or an error if the HTTP server
// fails to start.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("remotedata starting", "source_count", len(b.sources), "graphql_endpoint", b.endpoint)
	b.logger.Info("polling configured", "interval", b.pollingInterval.String())

	if ctx.Err() != nil {
		return nil
	}
	defer b.client.Close()

	if b.readiness != nil {
		if err := b.awaitReady(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	sched := scheduler.New(b.jobs(), b.pollingInterval, b.maxConcurrency, b.logger)
	sched.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range sched.Results() {
			// load failures are already logged by the store
			logAttrs := []any{
				"resource", result.Name,
				"duration_ms", result.Duration.Milliseconds(),
			}
			if result.Err != nil {
				logAttrs = append(logAttrs, "error", result.Err.Error())
			}
			b.logger.Debug("load completed", logAttrs...)
		}
	}()

	cleanup := func() {
		sched.Stop() // closes results channel
		wg.Wait()
	}

	httpServer := server.NewServer(b.registry, b, b.port, dashboard.Assets, b.title, b.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	<-ctx.Done()
	cleanup()
	b.logger.Info("remotedata stopped")
	return nil
}

// awaitReady polls the readiness URL until it reports up.
func (b *Board) awaitReady(ctx context.Context) error {
	r := b.readiness
	target := r.url
	var probe poll.Probe
	if target == "" {
		target = b.endpoint
		probe = graphQLProbe(b.client, target, b.headers, r.interval)
	} else {
		probe = httpProbe(b.client, target, b.headers, r.check, r.interval)
	}

	b.logger.Info("waiting for graphql endpoint", "url", target, "interval", r.interval.String(), "max_attempts", r.maxAttempts)

	res, err := poll.Poll(ctx, probe, r.interval, r.maxAttempts, poll.WithLogger(b.logger))
	if err != nil {
		return fmt.Errorf("readiness: %w", err)
	}

	switch res.Outcome {
	case poll.OutcomeOK:
		b.logger.Info("graphql endpoint ready", "attempts", res.Attempts, "elapsed_ms", res.Elapsed.Milliseconds())
		return nil
	case poll.OutcomeCancelled:
		return nil
	default:
		return fmt.Errorf("graphql endpoint %s not ready after %d attempts: %w", target, res.Attempts, res.Err())
	}
}

// jobs builds one scheduler job per source.
func (b *Board) jobs() []scheduler.Job {
	jobs := make([]scheduler.Job, len(b.sources))
	for i, src := range b.sources {
		name := src.name
		jobs[i] = scheduler.Job{
			Name:     name,
			Interval: src.interval,
			Run: func(ctx context.Context) error {
				return b.Refresh(ctx, name)
			},
		}
	}
	return jobs
}

// fetcher returns the function that queries src and selects its items.
//
// A response whose data cannot be selected but which carries GraphQL errors
// is stored as errors with no data, the way servers report failed queries.
func (b *Board) fetcher(src Source) resource.Fetcher[json.RawMessage] {
	headers := mergeMaps(b.headers, src.headers)
	selector := src.selector
	if selector == nil {
		selector = DefaultSelector
	}
	req := transport.GraphQLRequest{Query: src.query, Variables: src.Variables()}

	return func(ctx context.Context) (resource.Response[json.RawMessage], error) {
		resp, err := b.client.Query(ctx, b.endpoint, req, headers, src.timeout)
		if err != nil {
			return resource.Response[json.RawMessage]{}, err
		}

		items, err := selector(resp.Data)
		if err != nil {
			if len(resp.Errors) > 0 {
				return resource.Response[json.RawMessage]{Errors: resp.Errors}, nil
			}
			return resource.Response[json.RawMessage]{}, fmt.Errorf("failed to select data: %w", err)
		}
		return resource.Response[json.RawMessage]{Data: items, Errors: resp.Errors}, nil
	}
}

// Refresh loads the named source now, outside its schedule.
//
// Refresh blocks until the load settles and returns its error. Overlapping
// refreshes of one source are safe: only the latest call's result is kept.
// Returns an error wrapping [ErrNotFound] for an unknown name.
func (b *Board) Refresh(ctx context.Context, name string) error {
	st, ok := b.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return st.Load(ctx, b.fetchers[name])
}

// Stores returns the registry holding one store per source.
func (b *Board) Stores() *resource.Registry[json.RawMessage] {
	return b.registry
}

// Sources returns a copy of the configured sources.
func (b *Board) Sources() []Source {
	cp := make([]Source, len(b.sources))
	copy(cp, b.sources)
	return cp
}

// Port returns the configured HTTP port.
func (b *Board) Port() int {
	return b.port
}

// PollingInterval returns the default refresh interval.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// invokeCallbackSafe calls a change callback with panic recovery.
func invokeCallbackSafe(cb func(Change), change Change, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"resource", change.Name,
			)
		}
	}()
	cb(change)
}
