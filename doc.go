// Package remotedata keeps GraphQL query results in reactive, observable
// stores and serves them to UI layers.
//
// The building blocks live in two small packages that can be used on their
// own:
//
//   - [github.com/jpalmerr/remotedata/poll]: a bounded async poller that
//     checks a condition on a fixed interval, at most N times
//   - [github.com/jpalmerr/remotedata/resource]: a store that runs fetches,
//     tracks loading and errors, keeps only the latest result, and notifies
//     observers of every change
//
// This package wires them into a [Board]: each [Source] query is loaded into
// its own store on a schedule, and the stores are served over HTTP.
//
// # Quick Start
//
//	src, _ := remotedata.NewSource("pharmacies",
//	    `query { pharmacies { id name } }`)
//	b, _ := remotedata.New(
//	    remotedata.WithGraphQLEndpoint("https://api.example.com/graphql"),
//	    remotedata.WithSource(src),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Selectors
//
// A [Selector] picks the stored list out of the GraphQL data object:
//
//   - [FieldSelector]: the value at a dot-separated path
//   - [EdgesSelector]: the nodes of a Relay connection
//   - [DefaultSelector]: the single top-level field
//
// # Readiness
//
// [WithReadiness] makes Start poll a health URL with [poll.Poll] before the
// first load. [ReadinessCheck] functions such as [HTTPStatusCheck],
// [JSONFieldCheck], [ContainsCheck], and [FirstMatch] decide when the API
// counts as up.
//
// # Architecture
//
//   - internal/transport: pooled HTTP client and GraphQL-over-HTTP codec
//   - internal/scheduler: per-source refresh intervals with bounded concurrency
//   - internal/server: REST API, Server-Sent Events, and WebSocket streams
//   - dashboard: embedded web UI assets
package remotedata
