package dcmetro

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title          string
	sessions       []Session
	port           int
	stationsFile   string
	baseURL        string
	fetchTimeout   time.Duration
	logger         *slog.Logger
	eventCallbacks []func(Event)
	dashboard      bool
}

// Option is a function that configures a [Board] instance during
// construction. Options return an error if validation fails.
type Option func(*boardConfig) error

// WithSession adds a single [Session]. Can be called multiple times; at least
// one session must be configured for [New] to succeed.
func WithSession(s Session) Option {
	return func(cfg *boardConfig) error {
		cfg.sessions = append(cfg.sessions, s)
		return nil
	}
}

// WithSessions adds several sessions at once.
//
// Example:
//
//	board, err := dcmetro.New(
//	    dcmetro.WithSessions(hallway, kitchen),
//	)
func WithSessions(sessions ...Session) Option {
	return func(cfg *boardConfig) error {
		cfg.sessions = append(cfg.sessions, sessions...)
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header. Defaults to "DC Metro Train Times".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithStationsFile reads the station directory from a jStations JSON file
// instead of the table built into the binary.
func WithStationsFile(path string) Option {
	return func(cfg *boardConfig) error {
		cfg.stationsFile = path
		return nil
	}
}

// WithBaseURL points every session at a different WMATA API host, such as a
// local mock.
//
// Returns an error unless the URL is absolute http or https.
func WithBaseURL(raw string) Option {
	return func(cfg *boardConfig) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("base url must be an absolute http or https url, got %q", raw)
		}
		cfg.baseURL = raw
		return nil
	}
}

// WithFetchTimeout sets the per-request timeout for upstream polls.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithEventCallback registers a function called for every published event,
// after the dashboard state has been updated.
//
// Callbacks run synchronously from a single goroutine in registration order
// and must not block. Panics are recovered and logged. Nil callbacks are
// ignored.
//
// Example:
//
//	board, err := dcmetro.New(
//	    dcmetro.WithSession(s),
//	    dcmetro.WithEventCallback(func(e dcmetro.Event) {
//	        if e.Kind == dcmetro.EventPollingHalted {
//	            log.Printf("%s stopped polling", e.Identifier)
//	        }
//	    }),
//	)
func WithEventCallback(cb func(Event)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.eventCallbacks = append(cfg.eventCallbacks, cb)
		return nil
	}
}

// WithoutDashboard disables the HTTP server. Events are still delivered to
// callbacks.
func WithoutDashboard() Option {
	return func(cfg *boardConfig) error {
		cfg.dashboard = false
		return nil
	}
}
