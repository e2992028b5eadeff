package resource

import (
	"context"
	"slices"
	"time"
)

// Error codes placed in [ErrorDescriptor.Extensions] under "code" for
// failures synthesized by the store.
const (
	CodeFetchFailed = "FETCH_FAILED"
	CodeFetchPanic  = "FETCH_PANIC"
)

// ErrorDescriptor is a single error reported for a resource.
//
// The shape follows the GraphQL response error format so server-reported
// errors pass through unchanged.
type ErrorDescriptor struct {
	// Message is the human-readable description.
	Message string `json:"message"`

	// Path locates the failing field in the response, if known.
	Path []any `json:"path,omitempty"`

	// Extensions carries structured detail such as an error code.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns the "code" extension, or "" if there is none.
func (e ErrorDescriptor) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// Response is what a [Fetcher] produces. Data and Errors may both be
// non-empty, as in a partial GraphQL response.
type Response[T any] struct {
	Data   []T
	Errors []ErrorDescriptor
}

// Fetcher retrieves a resource. A returned error means the fetch itself
// failed (transport failure, bad payload); errors reported by the server
// belong in [Response.Errors].
type Fetcher[T any] func(ctx context.Context) (Response[T], error)

// State is a snapshot of a [Store].
type State[T any] struct {
	// Data holds the items of the last applied load, in response order.
	Data []T `json:"data"`

	// Errors holds the errors of the last applied load. Empty when none.
	Errors []ErrorDescriptor `json:"errors"`

	// IsLoading is true from the start of the latest load until its result
	// is applied.
	IsLoading bool `json:"is_loading"`

	// UpdatedAt is when a load result was last applied. Zero before the first.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasErrors reports whether the snapshot carries any errors.
func (s State[T]) HasErrors() bool {
	return len(s.Errors) > 0
}

// clone returns a copy whose slices do not alias s.
func (s State[T]) clone() State[T] {
	return State[T]{
		Data:      cloneNonNil(s.Data),
		Errors:    cloneNonNil(s.Errors),
		IsLoading: s.IsLoading,
		UpdatedAt: s.UpdatedAt,
	}
}

// cloneNonNil copies a slice, mapping nil to an empty slice so JSON renders [].
func cloneNonNil[E any](s []E) []E {
	if s == nil {
		return []E{}
	}
	return slices.Clone(s)
}
