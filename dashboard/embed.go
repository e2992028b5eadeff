// Package dashboard provides the embedded web UI assets for remotedata.
//
// The page is a read-only viewer of store state. It lists every resource
// with its loading flag, errors, and items, and follows changes over the
// /api/sse stream. Assets are embedded at compile time so the board ships
// as a single binary.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
