// Package resource provides a reactive container for remotely fetched data.
//
// A [Store] holds the [State] of one remote resource: the last loaded items,
// the errors reported alongside them, and whether a load is in flight.
// [Store.Load] runs a caller-supplied [Fetcher] and is the only way the state
// changes; consumers read snapshots with [Store.State] or observe changes via
// [Store.Subscribe] and [Store.OnChange].
//
// Stores are ordinary values created with [New]. There is no package-level
// store, so each consumer context (and each test) owns its own instance.
//
// Overlapping loads are ordered by call, not by completion: every call takes
// a request token, and only the most recent call's result is applied. A
// fetcher that fails or panics never leaves the store loading; the failure is
// recorded as a synthesized [ErrorDescriptor].
//
// A [Registry] groups named stores and fans their changes into a single
// stream of [Snapshot] values, which is what the HTTP layer serves.
package resource
