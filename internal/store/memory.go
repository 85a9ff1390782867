package store

import (
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive events via buffered channels (buffer size 100). Sends
// are non-blocking; if a subscriber's buffer is full, the event is dropped
// for that subscriber.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionState

	subMu       sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]SessionState),
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

func (m *MemoryStore) Register(state SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[state.Identifier]; ok {
		existing.ShowIncidents = state.ShowIncidents
		existing.ShowTrainTimes = state.ShowTrainTimes
		m.sessions[state.Identifier] = existing
		return
	}
	m.sessions[state.Identifier] = state
}

func (m *MemoryStore) Publish(event Event) {
	m.mu.Lock()
	state, ok := m.sessions[event.Identifier]
	if !ok {
		state = SessionState{Identifier: event.Identifier}
	}
	at := event.At

	switch event.Kind {
	case EventIncidentsUpdated:
		state.Incidents = event.Incidents
		state.Summary = event.Summary
		state.IncidentsUpdatedAt = &at
	case EventTrainTimesUpdated:
		state.TrainTimes = event.TrainTimes
		state.TrainTimesUpdatedAt = &at
	case EventPollingHalted:
		state.Halted = true
		state.HaltedAt = &at
	case EventPollingResumed:
		state.Halted = false
		state.HaltedAt = nil
	}
	m.sessions[event.Identifier] = state
	m.mu.Unlock()

	m.notifySubscribers(event)
}

func (m *MemoryStore) Get(identifier string) (SessionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[identifier]
	return state, ok
}

func (m *MemoryStore) GetAll() []SessionState {
	m.mu.RLock()
	states := make([]SessionState, 0, len(m.sessions))
	for _, state := range m.sessions {
		states = append(states, state)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].Identifier < states[j].Identifier
	})
	return states
}

func (m *MemoryStore) Subscribe(identifier string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	subs, ok := m.subscribers[identifier]
	if !ok {
		subs = make(map[chan Event]struct{})
		m.subscribers[identifier] = subs
	}
	subs[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for identifier, subs := range m.subscribers {
		for subCh := range subs {
			if subCh == ch {
				delete(subs, subCh)
				close(subCh)
				if len(subs) == 0 {
					delete(m.subscribers, identifier)
				}
				return
			}
		}
	}
}

// notifySubscribers sends the event to the subscribers of its session.
// If a subscriber's buffer is full the event is dropped for it.
func (m *MemoryStore) notifySubscribers(event Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers[event.Identifier] {
		select {
		case ch <- event:
		default:
		}
	}
}
