package store

import (
	"time"

	"github.com/jpalmerr/dcmetro/internal/wmata"
)

// EventKind names a published event.
type EventKind string

const (
	EventIncidentsUpdated  EventKind = "incidents_updated"
	EventTrainTimesUpdated EventKind = "train_times_updated"
	EventPollingHalted     EventKind = "polling_halted"
	EventPollingResumed    EventKind = "polling_resumed"
)

// Event is one update for a single session, tagged with the session
// identifier. Payloads are shared between subscribers and must not be
// modified after publishing.
type Event struct {
	Kind       EventKind `json:"kind"`
	Identifier string    `json:"identifier"`
	At         time.Time `json:"at"`

	// Incidents and Summary are set for incidents_updated.
	Incidents *wmata.Incidents `json:"incidents,omitempty"`
	Summary   string           `json:"summary,omitempty"`

	// TrainTimes is set for train_times_updated.
	TrainTimes wmata.Snapshot `json:"train_times,omitempty"`
}

// SessionState is the latest known state of one session.
//
// A nil Incidents or TrainTimes means the feed has not completed a poll yet,
// which is distinct from a poll that returned nothing.
type SessionState struct {
	Identifier     string `json:"identifier"`
	ShowIncidents  bool   `json:"show_incidents"`
	ShowTrainTimes bool   `json:"show_train_times"`

	Incidents           *wmata.Incidents `json:"incidents"`
	Summary             string           `json:"summary"`
	IncidentsUpdatedAt  *time.Time       `json:"incidents_updated_at"`
	TrainTimes          wmata.Snapshot   `json:"train_times"`
	TrainTimesUpdatedAt *time.Time       `json:"train_times_updated_at"`

	Halted   bool       `json:"halted"`
	HaltedAt *time.Time `json:"halted_at"`
}

// Store holds per-session state and delivers events to subscribers of that
// session.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Register seeds the state of a session. Registering an identifier that
	// already exists replaces its settings but keeps received data.
	Register(state SessionState)

	// Publish applies the event to its session's state and notifies that
	// session's subscribers. It never blocks on slow subscribers.
	Publish(event Event)

	// Get returns the state of one session.
	Get(identifier string) (SessionState, bool)

	// GetAll returns every session, ordered by identifier.
	GetAll() []SessionState

	// Subscribe returns a channel that receives events for identifier only.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe(identifier string) <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)
}
