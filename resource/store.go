package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option configures a [Store] during construction.
type Option func(*storeConfig)

type storeConfig struct {
	name   string
	logger *slog.Logger
}

// WithName sets the name used in log records. Defaults to "resource".
func WithName(name string) Option {
	return func(cfg *storeConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the logger for fetch failures and recovered panics.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Store holds the state of one remote resource.
//
// The store is the only writer of its state. [Store.State] returns copies,
// and every change is published, in order, to subscribers and OnChange hooks.
// All methods are safe for concurrent use.
type Store[T any] struct {
	name   string
	logger *slog.Logger

	// publishMu serializes state transitions with their publication so
	// observers see changes in the order they were made.
	publishMu sync.Mutex

	mu     sync.RWMutex
	state  State[T]
	latest uint64 // token of the most recent Load call
	hooks  []func(State[T])

	subs *broadcaster[State[T]]
}

// New creates an empty [Store].
func New[T any](opts ...Option) *Store[T] {
	cfg := storeConfig{
		name:   "resource",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store[T]{
		name:   cfg.name,
		logger: cfg.logger,
		state:  State[T]{Data: []T{}, Errors: []ErrorDescriptor{}},
		subs:   newBroadcaster(State[T].clone),
	}
}

// Name returns the name given with [WithName].
func (s *Store[T]) Name() string {
	return s.name
}

// State returns a snapshot of the current state. The slices are copies.
func (s *Store[T]) State() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Load runs fetch and applies its result.
//
// Before fetch is invoked, IsLoading is set and published; Data and Errors
// keep their previous values while the fetch runs. When the fetch returns:
//
//   - on success, Data and Errors are replaced by the response's fields
//     (both may be non-empty);
//   - on error or panic, Data is kept and Errors is replaced by one
//     synthesized [ErrorDescriptor] with code [CodeFetchFailed] or
//     [CodeFetchPanic] and a correlation_id extension.
//
// Either way IsLoading is cleared, unless a later Load call has started in
// the meantime: results of superseded calls are discarded and the store
// keeps loading until the latest call settles.
//
// Load returns the fetch error (or the recovered panic as an error) for the
// caller to log. It returns nil for successful and superseded calls.
func (s *Store[T]) Load(ctx context.Context, fetch Fetcher[T]) error {
	if fetch == nil {
		return errors.New("resource: fetcher is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := s.begin()

	resp, err := s.safeFetch(ctx, fetch)

	var next State[T]
	if err != nil {
		next = State[T]{
			Errors: []ErrorDescriptor{describe(err)},
		}
	} else {
		next = State[T]{
			Data:   resp.Data,
			Errors: resp.Errors,
		}
	}

	applied := s.finish(token, next, err != nil)
	if !applied {
		s.logger.Debug("load superseded", "resource", s.name, "token", token)
		return nil
	}
	if err != nil {
		s.logger.Warn("load failed", "resource", s.name, "error", err.Error())
		return fmt.Errorf("load %s: %w", s.name, err)
	}
	return nil
}

// begin issues a new request token and marks the store as loading.
func (s *Store[T]) begin() uint64 {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.latest++
	token := s.latest
	s.state.IsLoading = true
	snapshot := s.state.clone()
	hooks := s.hooks
	s.mu.Unlock()

	s.publish(snapshot, hooks)
	return token
}

// finish applies next if token is still the latest. When keepData is set the
// previous Data survives and only Errors is replaced.
func (s *Store[T]) finish(token uint64, next State[T], keepData bool) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if token != s.latest {
		s.mu.Unlock()
		return false
	}
	if !keepData {
		s.state.Data = cloneNonNil(next.Data)
	}
	s.state.Errors = cloneNonNil(next.Errors)
	s.state.IsLoading = false
	s.state.UpdatedAt = time.Now()
	snapshot := s.state.clone()
	hooks := s.hooks
	s.mu.Unlock()

	s.publish(snapshot, hooks)
	return true
}

// Reset returns the store to its empty state and invalidates in-flight loads.
func (s *Store[T]) Reset() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.latest++
	s.state = State[T]{Data: []T{}, Errors: []ErrorDescriptor{}}
	snapshot := s.state.clone()
	hooks := s.hooks
	s.mu.Unlock()

	s.publish(snapshot, hooks)
}

// Subscribe returns a channel that receives every state change.
//
// The channel is buffered; a slow reader misses changes instead of blocking
// the store. Call [Store.Unsubscribe] when done.
func (s *Store[T]) Subscribe() <-chan State[T] {
	return s.subs.subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call more than once.
func (s *Store[T]) Unsubscribe(ch <-chan State[T]) {
	s.subs.unsubscribe(ch)
}

// OnChange registers fn to be called synchronously after every state change,
// in registration order. fn must not call [Store.Load] or [Store.Reset].
func (s *Store[T]) OnChange(fn func(State[T])) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// publish delivers a snapshot to hooks and subscribers. Caller holds publishMu.
func (s *Store[T]) publish(snapshot State[T], hooks []func(State[T])) {
	for _, fn := range hooks {
		s.invokeHookSafe(fn, snapshot)
	}
	s.subs.publish(snapshot)
}

// invokeHookSafe calls a hook with panic recovery. Panics are logged but do not propagate.
func (s *Store[T]) invokeHookSafe(fn func(State[T]), snapshot State[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state hook panicked", "resource", s.name, "panic", r)
		}
	}()
	fn(snapshot.clone())
}

// panicError carries a recovered fetcher panic.
type panicError struct {
	value         any
	correlationID string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("fetcher panic (correlation_id: %s)", e.correlationID)
}

// safeFetch calls fetch with panic recovery.
func (s *Store[T]) safeFetch(ctx context.Context, fetch Fetcher[T]) (resp Response[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("fetcher panic",
				"resource", s.name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			resp = Response[T]{}
			err = &panicError{value: r, correlationID: correlationID}
		}
	}()
	return fetch(ctx)
}

// describe synthesizes an ErrorDescriptor for a failed fetch.
func describe(err error) ErrorDescriptor {
	var pe *panicError
	if errors.As(err, &pe) {
		return ErrorDescriptor{
			Message: err.Error(),
			Extensions: map[string]any{
				"code":           CodeFetchPanic,
				"correlation_id": pe.correlationID,
			},
		}
	}
	return ErrorDescriptor{
		Message: err.Error(),
		Extensions: map[string]any{
			"code":           CodeFetchFailed,
			"correlation_id": uuid.NewString(),
		},
	}
}
