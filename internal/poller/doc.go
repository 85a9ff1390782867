// Package poller drives the periodic polling of the WMATA API.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts and size limits
//   - [Scheduler]: runs the feeds of one session on independent timers
//   - [Feed]: one upstream endpoint with its interval, delay and handler
//   - [Breaker]: decides whether a fetch may be issued; [Monitor] halts
//     permanently after a run of failures, [CooldownBreaker] recovers
//     through a half-open probe
//
// Users of the dcmetro library should not need to interact with this
// package directly. Configuration is done through the main dcmetro package.
package poller
