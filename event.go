package dcmetro

import (
	"maps"
	"slices"
	"time"

	"github.com/jpalmerr/dcmetro/internal/store"
	"github.com/jpalmerr/dcmetro/internal/wmata"
)

// EventKind names what changed in a session.
type EventKind string

const (
	// EventIncidentsUpdated carries a fresh incidents list and line summary.
	EventIncidentsUpdated EventKind = EventKind(store.EventIncidentsUpdated)

	// EventTrainTimesUpdated carries a fresh train-times snapshot.
	EventTrainTimesUpdated EventKind = EventKind(store.EventTrainTimesUpdated)

	// EventPollingHalted is published once when a session stops polling
	// after too many failed polls.
	EventPollingHalted EventKind = EventKind(store.EventPollingHalted)

	// EventPollingResumed is published when a cooldown breaker recovers.
	// Sessions using the terminal policy never publish it.
	EventPollingResumed EventKind = EventKind(store.EventPollingResumed)
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	return string(k)
}

type (
	// Incidents is the parsed incidents payload.
	Incidents = wmata.Incidents

	// Train is one upcoming train at a station.
	Train = wmata.Train

	// StationTrains holds the upcoming trains of one station.
	StationTrains = wmata.StationTrains

	// Snapshot maps a station code to its upcoming trains.
	Snapshot = wmata.Snapshot
)

// Event is one update published by a session.
//
// Callbacks receive their own copy; modifying it does not affect other
// callbacks or dashboard subscribers.
type Event struct {
	// Kind names what changed.
	Kind EventKind

	// Identifier is the session that produced the event.
	Identifier string

	// At is when the event was produced.
	At time.Time

	// Incidents and Summary are set for [EventIncidentsUpdated]. Summary is
	// a human-readable list of the affected lines, empty when none are.
	Incidents *Incidents
	Summary   string

	// TrainTimes is set for [EventTrainTimesUpdated].
	TrainTimes Snapshot
}

// storeEventToPublicEvent converts an internal event to the public type.
func storeEventToPublicEvent(e store.Event) Event {
	return Event{
		Kind:       EventKind(e.Kind),
		Identifier: e.Identifier,
		At:         e.At,
		Incidents:  copyIncidents(e.Incidents),
		Summary:    e.Summary,
		TrainTimes: copySnapshot(e.TrainTimes),
	}
}

func copyIncidents(in *wmata.Incidents) *wmata.Incidents {
	if in == nil {
		return nil
	}
	return &wmata.Incidents{
		Descriptions: slices.Clone(in.Descriptions),
		Lines:        slices.Clone(in.Lines),
	}
}

func copySnapshot(s wmata.Snapshot) wmata.Snapshot {
	if s == nil {
		return nil
	}
	cp := maps.Clone(s)
	for code, st := range cp {
		st.Trains = slices.Clone(st.Trains)
		cp[code] = st
	}
	return cp
}
