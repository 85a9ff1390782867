// Package dashboard provides the embedded web UI.
//
// The dashboard subscribes to one session's event stream and renders the
// incident summary and per-station train times. Pick a session with the
// "session" query parameter; without it the first session is shown.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
