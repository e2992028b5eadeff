// Package transport provides the HTTP plumbing used by remotedata.
//
// This package is internal and wraps a pooled [net/http] client:
//
//   - [Client.Fetch]: plain requests, used by readiness probes
//   - [Client.Query]: GraphQL-over-HTTP POSTs returning raw data plus errors
//
// Users of the remotedata library should not need to interact with this
// package directly.
package transport
