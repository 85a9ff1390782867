package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jpalmerr/dcmetro/internal/store"
	"github.com/jpalmerr/dcmetro/internal/wmata"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.Register(store.SessionState{Identifier: "hall", ShowIncidents: true, ShowTrainTimes: true})
	return st
}

func incidents(lines ...string) store.Event {
	return store.Event{
		Kind:       store.EventIncidentsUpdated,
		Identifier: "hall",
		At:         time.Now(),
		Incidents:  &wmata.Incidents{Descriptions: []string{"Delay"}, Lines: lines},
		Summary:    wmata.SummarizeLines(lines),
	}
}

// sseRequest builds a request for the hall session's stream, with the route
// variables set as the router would.
func sseRequest(ctx context.Context, id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/sse", nil)
	req = req.WithContext(ctx)
	return mux.SetURLVars(req, map[string]string{"id": id})
}

type sseEvent struct {
	name string
	data string
}

func parseSSEEvents(body string) []sseEvent {
	var events []sseEvent
	var current sseEvent
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestHandleSSE_SendsStateFirst(t *testing.T) {
	st := newTestStore()
	st.Publish(incidents("RD"))

	srv := NewServer(st, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, sseRequest(ctx, "hall"))

	events := parseSSEEvents(rec.Body.String())
	if len(events) == 0 {
		t.Fatalf("no SSE events in %q", rec.Body.String())
	}
	if events[0].name != "state" {
		t.Fatalf("first event = %q, want state", events[0].name)
	}

	var state store.SessionState
	if err := json.Unmarshal([]byte(events[0].data), &state); err != nil {
		t.Fatalf("failed to parse state: %v", err)
	}
	if state.Identifier != "hall" || state.Incidents == nil {
		t.Errorf("state = %+v", state)
	}
	if state.TrainTimes != nil {
		t.Error("train times should be unloaded")
	}
}

func TestHandleSSE_StreamsSessionEvents(t *testing.T) {
	st := newTestStore()
	st.Register(store.SessionState{Identifier: "lobby"})
	srv := NewServer(st, 0, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, sseRequest(ctx, "hall"))
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	st.Publish(incidents("BL"))
	st.Publish(store.Event{Kind: store.EventPollingHalted, Identifier: "lobby", At: time.Now()})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	var names []string
	for _, e := range events {
		names = append(names, e.name)
	}
	if len(names) != 2 || names[0] != "state" || names[1] != string(store.EventIncidentsUpdated) {
		t.Errorf("events = %v, want [state incidents_updated]", names)
	}
}

func TestHandleSSE_UnknownSession(t *testing.T) {
	srv := NewServer(newTestStore(), 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.handleSSE(rec, sseRequest(context.Background(), "nope"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	srv := NewServer(newTestStore(), 0, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, sseRequest(ctx, "hall"))
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv := NewServer(newTestStore(), 0, nil, "", testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			srv.handleSSE(httptest.NewRecorder(), sseRequest(ctx, "hall"))
		}()
	}

	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 {
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := NewServer(newTestStore(), 0, nil, "", testLogger())

	w := &nonFlushWriter{header: make(http.Header)}
	srv.handleSSE(w, sseRequest(context.Background(), "hall"))

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := NewServer(newTestStore(), 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, sseRequest(ctx, "hall"))

	expectedHeaders := map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

func TestHandler_Sessions(t *testing.T) {
	st := newTestStore()
	st.Register(store.SessionState{Identifier: "lobby"})
	st.Publish(incidents())

	h := NewServer(st, 0, nil, "", testLogger()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var states []store.SessionState
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 2 || states[0].Identifier != "hall" || states[1].Identifier != "lobby" {
		t.Fatalf("states = %+v", states)
	}
	if states[0].Incidents == nil || states[0].Summary != "No Incidents Reported" {
		t.Errorf("hall = %+v", states[0])
	}
	if states[1].Incidents != nil {
		t.Error("lobby incidents should be null before the first poll")
	}
}

func TestHandler_Session(t *testing.T) {
	h := NewServer(newTestStore(), 0, nil, "", testLogger()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/hall", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("hall status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"incidents":null`) {
		t.Errorf("body = %s, want null incidents", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nope status = %d, want 404", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewServer(newTestStore(), 0, nil, "", testLogger()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_CORS(t *testing.T) {
	h := NewServer(newTestStore(), 0, nil, "", testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "http://magicmirror.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/sessions/hall/sse", nil)
	preflight.Header.Set("Origin", "http://magicmirror.local")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
}

// TestServer_SSEIntegration streams over a real connection through the
// router and checks that shutdown closes it.
func TestServer_SSEIntegration(t *testing.T) {
	st := newTestStore()
	srv := NewServer(st, 0, nil, "", testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	if err := srv.Start(serverCtx); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	port := srv.Addr().(*net.TCPAddr).Port

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/sessions/hall/sse", port))
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	expect := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if line == want {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	expect("event: state")
	st.Publish(incidents("RD"))
	expect("event: incidents_updated")

	serverCancel()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("SSE connection did not close after server shutdown")
		}
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(newTestStore(), port, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(newTestStore(), -1, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Dashboard Title Tests ---

// mockFS implements fs.ReadFileFS for testing dashboard rendering.
type mockFS struct {
	content string
}

func (m *mockFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func TestHandleDashboard_CustomTitle(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title><h1>{{.Title}}</h1>"}
	srv := NewServer(newTestStore(), 0, mockAssets, "Hallway Board", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Hallway Board</title>") {
		t.Errorf("expected title tag with custom title, got: %s", body)
	}
	if !strings.Contains(body, "<h1>Hallway Board</h1>") {
		t.Errorf("expected h1 with custom title, got: %s", body)
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title>"}
	srv := NewServer(newTestStore(), 0, mockAssets, "", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "<title>DC Metro Train Times</title>") {
		t.Errorf("expected default title, got: %s", rec.Body.String())
	}
}

func TestHandleDashboard_NoAssets(t *testing.T) {
	srv := NewServer(newTestStore(), 0, nil, "Custom Title", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title>"}
	srv := NewServer(newTestStore(), 0, mockAssets, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleDashboard_TitleWithHTMLChars(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title>"}
	srv := NewServer(newTestStore(), 0, mockAssets, "<script>alert('xss')</script> & co", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("title should be HTML-escaped to prevent XSS")
	}
	if !strings.Contains(body, "&lt;script&gt;") || !strings.Contains(body, "&amp; co") {
		t.Errorf("expected escaped HTML, got: %s", body)
	}
}
