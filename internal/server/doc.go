// Package server provides the HTTP server for the remotedata board.
//
// This package is internal to remotedata and handles all HTTP concerns:
//
//   - Dashboard serving: the embedded HTML viewer at "/"
//   - REST API: JSON snapshots at "/api/resources" and "/api/resources/{name}"
//   - Refresh: "POST /api/resources/{name}/refresh" triggers a load
//   - Server-Sent Events: live snapshots at "/api/sse"
//   - WebSocket: the same live snapshots at "/api/ws"
//
// The server shuts down gracefully on context cancellation, with a 5-second
// timeout for in-flight requests.
//
// Users of the remotedata library should not need to interact with this
// package directly. The server is started by [remotedata.Board.Start].
package server
