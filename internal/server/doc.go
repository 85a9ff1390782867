// Package server provides the HTTP server for the dashboard and API.
//
// It handles:
//
//   - Dashboard serving: the embedded HTML dashboard at "/"
//   - REST API: session state at "/api/sessions" and "/api/sessions/{id}"
//   - Server-Sent Events: per-session updates at "/api/sessions/{id}/sse"
//
// Routing uses gorilla/mux; CORS is applied to every route. The server
// supports graceful shutdown via context cancellation, with a 5-second
// timeout for in-flight requests.
package server
