package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is the attempt budget used when maxAttempts is 0.
const DefaultMaxAttempts = 5

var (
	// ErrTimedOut is returned by [Result.Err] when every attempt failed.
	ErrTimedOut = errors.New("poll: attempts exhausted")

	// ErrCancelled is wrapped by [Result.Err] when the context ended polling.
	ErrCancelled = errors.New("poll: cancelled")

	// ErrInvalidArgument is wrapped by [Poll] for a nil probe, a non-positive
	// interval or a negative attempt budget.
	ErrInvalidArgument = errors.New("poll: invalid argument")
)

// Probe reports whether the awaited condition holds.
//
// The context is the one passed to [Poll]; probes doing I/O should honour it.
type Probe func(ctx context.Context) bool

// Outcome discriminates how a [Poll] call settled.
type Outcome int

const (
	// OutcomeOK means the probe returned true.
	OutcomeOK Outcome = iota + 1

	// OutcomeTimedOut means every permitted attempt returned false.
	OutcomeTimedOut

	// OutcomeCancelled means the context was done before the probe succeeded.
	OutcomeCancelled
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result describes a settled [Poll] call.
type Result struct {
	// Outcome is how polling ended.
	Outcome Outcome

	// Attempts is the number of probe invocations, including the successful one.
	Attempts int

	// Elapsed is the wall time from the call to settlement.
	Elapsed time.Duration

	cause error
}

// OK reports whether the probe succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Err converts the outcome into an error for callers that prefer error flow.
// It returns nil for [OutcomeOK], [ErrTimedOut] for [OutcomeTimedOut], and an
// error matching both [ErrCancelled] and the context error for [OutcomeCancelled].
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeTimedOut:
		return fmt.Errorf("%w after %d attempts", ErrTimedOut, r.Attempts)
	case OutcomeCancelled:
		return errors.Join(ErrCancelled, r.cause)
	default:
		return fmt.Errorf("poll: unknown outcome %d", int(r.Outcome))
	}
}

// Option configures a single [Poll] call.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report recovered probe panics.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// task is the state of one Poll invocation. It is never shared.
type task struct {
	probe             Probe
	interval          time.Duration
	attemptsRemaining int
	logger            *slog.Logger
}

// Poll invokes probe once per interval until it returns true or maxAttempts
// invocations have failed.
//
// The first invocation happens one interval after the call. If the probe
// succeeds on attempt k, Poll returns after exactly k ticks with
// [OutcomeOK]. If all maxAttempts invocations return false, Poll returns
// right after the last one with [OutcomeTimedOut]; it never waits for an
// extra tick. maxAttempts of 0 selects [DefaultMaxAttempts].
//
// A cancelled ctx ends polling with [OutcomeCancelled]. A probe that panics
// is recovered, logged with a correlation ID, and counted as a failed attempt.
//
// Poll owns exactly one ticker, stopped before it returns. Concurrent calls
// share no state.
//
// The returned error is non-nil only for invalid arguments and wraps
// [ErrInvalidArgument].
func Poll(ctx context.Context, probe Probe, interval time.Duration, maxAttempts int, opts ...Option) (Result, error) {
	if probe == nil {
		return Result{}, fmt.Errorf("%w: probe is nil", ErrInvalidArgument)
	}
	if interval <= 0 {
		return Result{}, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidArgument, interval)
	}
	if maxAttempts < 0 {
		return Result{}, fmt.Errorf("%w: max attempts cannot be negative, got %d", ErrInvalidArgument, maxAttempts)
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if ctx == nil {
		ctx = context.Background()
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &task{
		probe:             probe,
		interval:          interval,
		attemptsRemaining: maxAttempts,
		logger:            o.logger,
	}
	return t.run(ctx, maxAttempts), nil
}

func (t *task) run(ctx context.Context, maxAttempts int) Result {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Result{Outcome: OutcomeCancelled, Elapsed: time.Since(start), cause: err}
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{
				Outcome:  OutcomeCancelled,
				Attempts: maxAttempts - t.attemptsRemaining,
				Elapsed:  time.Since(start),
				cause:    ctx.Err(),
			}
		case <-ticker.C:
			t.attemptsRemaining--
			attempt := maxAttempts - t.attemptsRemaining

			if t.safeProbe(ctx, attempt) {
				return Result{Outcome: OutcomeOK, Attempts: attempt, Elapsed: time.Since(start)}
			}
			if t.attemptsRemaining == 0 {
				return Result{Outcome: OutcomeTimedOut, Attempts: attempt, Elapsed: time.Since(start)}
			}
		}
	}
}

// safeProbe calls the probe with panic recovery. A panic counts as false.
func (t *task) safeProbe(ctx context.Context, attempt int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			t.logger.Error("probe panic",
				"correlation_id", correlationID,
				"attempt", attempt,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	return t.probe(ctx)
}
