package dcmetro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/dcmetro/dashboard"
	"github.com/jpalmerr/dcmetro/internal/poller"
	"github.com/jpalmerr/dcmetro/internal/server"
	"github.com/jpalmerr/dcmetro/internal/stations"
	"github.com/jpalmerr/dcmetro/internal/store"
	"github.com/jpalmerr/dcmetro/internal/wmata"
)

const (
	defaultPort         = 8080
	defaultFetchTimeout = 10 * time.Second

	// eventBuffer bounds the queue between session pollers and the
	// consumer that updates the store and runs callbacks.
	eventBuffer = 64
)

// Board is the main orchestrator: it polls every configured session and
// serves the dashboard.
//
// The typical lifecycle is:
//
//	board, err := dcmetro.New(dcmetro.WithSession(s))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
type Board struct {
	title          string
	sessions       []Session
	port           int
	stationsFile   string
	baseURL        string
	fetchTimeout   time.Duration
	dashboard      bool
	logger         *slog.Logger
	eventCallbacks []func(Event)
}

// New creates a new [Board] with the given options.
//
// At least one session must be configured via [WithSession] or
// [WithSessions], and session identifiers must be unique. Defaults:
//   - Port: 8080
//   - Base URL: https://api.wmata.com
//   - Fetch timeout: 10 seconds
//   - Station directory: the table built into the binary
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port:         defaultPort,
		baseURL:      wmata.DefaultBaseURL,
		fetchTimeout: defaultFetchTimeout,
		dashboard:    true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.sessions) == 0 {
		return nil, errors.New("at least one session is required")
	}

	seen := make(map[string]bool, len(cfg.sessions))
	for _, s := range cfg.sessions {
		if s.identifier == "" || s.apiKey == "" {
			return nil, errors.New("sessions must be created with NewSession")
		}
		if seen[s.identifier] {
			return nil, fmt.Errorf("duplicate session identifier: %q", s.identifier)
		}
		seen[s.identifier] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		title:          cfg.title,
		sessions:       cfg.sessions,
		port:           cfg.port,
		stationsFile:   cfg.stationsFile,
		baseURL:        cfg.baseURL,
		fetchTimeout:   cfg.fetchTimeout,
		dashboard:      cfg.dashboard,
		logger:         logger,
		eventCallbacks: cfg.eventCallbacks,
	}, nil
}

// Start loads the station directory, begins polling every session and
// serves the dashboard.
//
// Start blocks until ctx is cancelled. On cancellation every session stops
// its timers, in-flight requests are abandoned without publishing, and the
// HTTP server shuts down.
//
// Returns nil on graceful shutdown. Returns an error, before any polling
// starts, if the station directory cannot be loaded or the HTTP server
// fails to start.
func (b *Board) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	dir, err := stations.Load(b.stationsFile)
	if err != nil {
		return fmt.Errorf("failed to load station directory: %w", err)
	}
	b.logger.Info("station directory loaded", "stations", dir.Len())
	b.warnUnknownStations(dir)

	sessionStore := store.NewMemoryStore()
	for _, s := range b.sessions {
		sessionStore.Register(store.SessionState{
			Identifier:     s.identifier,
			ShowIncidents:  s.showIncidents,
			ShowTrainTimes: s.showTrainTimes,
		})
	}

	if b.dashboard {
		httpServer := server.NewServer(sessionStore, b.port, dashboard.Assets, b.title, b.logger)
		if err := httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))
	}

	b.logger.Info("dcmetro starting", "session_count", len(b.sessions))

	events := make(chan store.Event, eventBuffer)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range events {
			// store update first so callbacks observe persisted state
			sessionStore.Publish(event)
			if len(b.eventCallbacks) == 0 {
				continue
			}
			for _, cb := range b.eventCallbacks {
				invokeCallbackSafe(cb, storeEventToPublicEvent(event), b.logger)
			}
		}
	}()

	client := poller.NewClient()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range b.sessions {
		rt := newSessionRuntime(s, dir, b.baseURL, b.fetchTimeout, client, events, b.logger)
		g.Go(func() error {
			return rt.run(gctx)
		})
	}

	err = g.Wait()
	client.Close()
	close(events)
	wg.Wait()

	if err != nil {
		return err
	}
	b.logger.Info("dcmetro stopped")
	return nil
}

func (b *Board) warnUnknownStations(dir *stations.Directory) {
	for _, s := range b.sessions {
		if !s.showTrainTimes {
			continue
		}
		for _, code := range s.stations {
			if _, err := dir.Lookup(code); err != nil {
				b.logger.Warn("configured station not in directory",
					"session", s.identifier,
					"station", code,
				)
			}
		}
	}
}

// Sessions returns a copy of the configured sessions.
func (b *Board) Sessions() []Session {
	cp := make([]Session, len(b.sessions))
	copy(cp, b.sessions)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// invokeCallbackSafe calls an event callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Event), event Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event callback panicked",
				"panic", r,
				"session", event.Identifier,
				"kind", event.Kind,
			)
		}
	}()
	cb(event)
}
