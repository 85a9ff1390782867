package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/jpalmerr/dcmetro/internal/wmata"
)

const defaultFetchTimeout = 10 * time.Second

// HandleFunc decodes a fetched body and publishes the result. It is called
// only for 2xx responses. A returned error counts as a failed poll.
//
// ctx is cancelled when the scheduler stops; handlers must not publish once
// ctx.Err() is non-nil.
type HandleFunc func(ctx context.Context, body []byte) error

// Feed describes one periodically polled upstream endpoint.
type Feed struct {
	// Name identifies the feed in logs, e.g. "incidents".
	Name string

	// URL is the endpoint to poll, including the API key.
	URL string

	// Interval is the time between fires. Must be positive.
	Interval time.Duration

	// Delay postpones the first fire. Zero fires immediately on start.
	Delay time.Duration

	// Timeout bounds each fetch. Zero uses 10s.
	Timeout time.Duration

	Handle HandleFunc
}

// Scheduler polls the feeds of one session.
//
// Each feed runs on its own timer: a first fire after Delay, then a ticker
// started together with the scheduler, so the period is independent of how
// long a fetch takes. Every fire runs in its own goroutine and fires of the
// same feed may overlap. All feeds share one [Breaker]; when it disallows a
// fire no request is made but the timers keep running.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	feeds   []Feed
	breaker Breaker
	client  *Client
	logger  *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight conc.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a [Scheduler] for feeds. If client is nil a new
// [Client] is created and closed on Stop.
func NewScheduler(feeds []Feed, breaker Breaker, client *Client, logger *slog.Logger) *Scheduler {
	if client == nil {
		client = NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		feeds:   feeds,
		breaker: breaker,
		client:  client,
		logger:  logger,
	}
}

// Start begins polling in background goroutines and returns immediately.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, feed := range s.feeds {
		if feed.Timeout <= 0 {
			feed.Timeout = defaultFetchTimeout
		}
		s.wg.Add(1)
		go s.run(s.ctx, feed)
	}
}

// Stop cancels both timers and waits for the feed loops and every in-flight
// fire to return. Results of fires still in flight are discarded.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if r := s.inflight.WaitAndRecover(); r != nil {
		s.logger.Error("poll panic",
			"correlation_id", uuid.NewString(),
			"panic", r.String(),
		)
	}

	s.client.Close()
}

// run drives one feed until ctx is cancelled.
func (s *Scheduler) run(ctx context.Context, feed Feed) {
	defer s.wg.Done()

	ticker := time.NewTicker(feed.Interval)
	defer ticker.Stop()

	var first <-chan time.Time
	if feed.Delay > 0 {
		timer := time.NewTimer(feed.Delay)
		defer timer.Stop()
		first = timer.C
	} else {
		s.spawn(ctx, feed)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-first:
			first = nil
			s.spawn(ctx, feed)
		case <-ticker.C:
			s.spawn(ctx, feed)
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context, feed Feed) {
	s.inflight.Go(func() {
		s.fire(ctx, feed)
	})
}

// fire runs one poll cycle: breaker check, fetch, handle.
func (s *Scheduler) fire(ctx context.Context, feed Feed) {
	logger := s.logger.With("feed", feed.Name)

	if !s.breaker.Allow() {
		logger.Debug("poll skipped, polling halted")
		return
	}

	resp := s.client.Fetch(ctx, feed.URL, feed.Timeout)
	if ctx.Err() != nil {
		return
	}
	if resp.Error != nil {
		logger.Warn("poll failed",
			"url", wmata.RedactURL(feed.URL),
			"status", resp.StatusCode,
			"latency_ms", resp.Latency.Milliseconds(),
			"error", resp.Error,
		)
		s.breaker.RecordFailure()
		return
	}

	if err := s.safeHandle(ctx, feed.Handle, resp.Body); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("poll response rejected", "error", err)
		s.breaker.RecordFailure()
		return
	}

	s.breaker.RecordSuccess()
	logger.Debug("poll succeeded", "latency_ms", resp.Latency.Milliseconds())
}

// safeHandle calls the handler with panic recovery.
// If the handler panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeHandle(ctx context.Context, handle HandleFunc, body []byte) (err error) {
	if handle == nil {
		return errors.New("feed has no handler")
	}
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("handler panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("handler panic (correlation_id: %s)", correlationID)
		}
	}()
	return handle(ctx, body)
}
