// Package store keeps the latest per-session feed state and fans events out
// to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Event]: one published update, tagged with its session identifier
//   - [SessionState]: the latest data for one session
//
// Subscriptions are keyed by session identifier, so a subscriber only sees
// events of the session it asked for. Sends are non-blocking; slow
// subscribers miss events rather than block polling.
package store
