package store

import (
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/dcmetro/internal/wmata"
)

func incidentsEvent(identifier string, lines ...string) Event {
	if lines == nil {
		lines = []string{}
	}
	return Event{
		Kind:       EventIncidentsUpdated,
		Identifier: identifier,
		At:         time.Now(),
		Incidents:  &wmata.Incidents{Descriptions: []string{"Delay"}, Lines: lines},
		Summary:    wmata.SummarizeLines(lines),
	}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_RegisterStartsUnloaded(t *testing.T) {
	store := NewMemoryStore()
	store.Register(SessionState{Identifier: "hall", ShowIncidents: true, ShowTrainTimes: true})

	state, ok := store.Get("hall")
	if !ok {
		t.Fatal("Get(hall) not found")
	}
	if state.Incidents != nil || state.TrainTimes != nil {
		t.Errorf("new session has data: %+v", state)
	}
	if !state.ShowIncidents || !state.ShowTrainTimes {
		t.Errorf("show switches lost: %+v", state)
	}
}

func TestMemoryStore_RegisterKeepsData(t *testing.T) {
	store := NewMemoryStore()
	store.Register(SessionState{Identifier: "hall", ShowIncidents: true})
	store.Publish(incidentsEvent("hall", "RD"))

	store.Register(SessionState{Identifier: "hall", ShowIncidents: false})

	state, _ := store.Get("hall")
	if state.Incidents == nil {
		t.Error("Register() dropped received incidents")
	}
	if state.ShowIncidents {
		t.Error("Register() did not update settings")
	}
}

func TestMemoryStore_Publish(t *testing.T) {
	store := NewMemoryStore()

	store.Publish(incidentsEvent("hall", "RD", "BL"))
	store.Publish(Event{
		Kind:       EventTrainTimesUpdated,
		Identifier: "hall",
		At:         time.Now(),
		TrainTimes: wmata.Snapshot{"A01": {StationCode: "A01", Trains: []wmata.Train{}}},
	})

	state, ok := store.Get("hall")
	if !ok {
		t.Fatal("Get(hall) not found")
	}
	if state.Incidents == nil || len(state.Incidents.Lines) != 2 {
		t.Errorf("Incidents = %+v", state.Incidents)
	}
	if state.Summary != "Incidents Reported On Red and Blue Lines" {
		t.Errorf("Summary = %q", state.Summary)
	}
	if state.IncidentsUpdatedAt == nil || state.TrainTimesUpdatedAt == nil {
		t.Error("update timestamps not set")
	}
	if _, ok := state.TrainTimes["A01"]; !ok {
		t.Error("TrainTimes missing A01")
	}
}

func TestMemoryStore_HaltAndResume(t *testing.T) {
	store := NewMemoryStore()

	store.Publish(Event{Kind: EventPollingHalted, Identifier: "hall", At: time.Now()})
	state, _ := store.Get("hall")
	if !state.Halted || state.HaltedAt == nil {
		t.Fatalf("state after halt = %+v", state)
	}

	store.Publish(Event{Kind: EventPollingResumed, Identifier: "hall", At: time.Now()})
	state, _ = store.Get("hall")
	if state.Halted || state.HaltedAt != nil {
		t.Errorf("state after resume = %+v", state)
	}
}

func TestMemoryStore_GetAllOrdered(t *testing.T) {
	store := NewMemoryStore()

	store.Register(SessionState{Identifier: "c"})
	store.Register(SessionState{Identifier: "a"})
	store.Register(SessionState{Identifier: "b"})

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() = %v items, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Identifier != want {
			t.Errorf("GetAll()[%d] = %q, want %q", i, all[i].Identifier, want)
		}
	}
}

func TestMemoryStore_Get_Unknown(t *testing.T) {
	if _, ok := NewMemoryStore().Get("nope"); ok {
		t.Error("Get(nope) ok = true")
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe("hall")
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go store.Publish(incidentsEvent("hall", "RD"))

	select {
	case event := <-ch:
		if event.Identifier != "hall" || event.Kind != EventIncidentsUpdated {
			t.Errorf("received %+v", event)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive event")
	}
}

func TestMemoryStore_SubscribeIsPerSession(t *testing.T) {
	store := NewMemoryStore()

	hall := store.Subscribe("hall")
	lobby := store.Subscribe("lobby")

	store.Publish(incidentsEvent("lobby", "GR"))

	select {
	case event := <-lobby:
		if event.Identifier != "lobby" {
			t.Errorf("lobby received %q", event.Identifier)
		}
	case <-time.After(time.Second):
		t.Fatal("lobby did not receive its event")
	}

	select {
	case event := <-hall:
		t.Errorf("hall received event for %q", event.Identifier)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe("hall")
	ch2 := store.Subscribe("hall")
	ch3 := store.Subscribe("hall")

	go store.Publish(incidentsEvent("hall"))

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 events", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe("hall")
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe("hall")
	ch2 := store.Subscribe("hall")

	store.Unsubscribe(ch1)

	go store.Publish(incidentsEvent("hall"))

	select {
	case <-ch2:
	case <-time.After(1 * time.Second):
		t.Error("ch2 should still receive events")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe("hall")

	ch2 := store.Subscribe("hall")

	done := make(chan bool)

	go func() {
		for i := 0; i < 200; i++ {
			store.Publish(incidentsEvent("hall"))
		}
		done <- true
	}()

	go func() {
		for range ch2 {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Publish() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Publish(incidentsEvent("hall", "RD"))
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				_, _ = store.Get("hall")
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe("hall")
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
