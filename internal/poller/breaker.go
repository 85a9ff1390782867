package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultFailureThreshold is the number of failed polls that halts a session.
const DefaultFailureThreshold = 5

// Breaker decides whether a feed may issue its next fetch.
//
// Implementations are shared by every feed of a session and must be safe for
// concurrent use.
type Breaker interface {
	// Allow reports whether a fetch may be issued now.
	Allow() bool

	// RecordFailure counts a transport failure or an undecodable response.
	RecordFailure()

	// RecordSuccess reports a poll that was fetched and decoded.
	RecordSuccess()

	// Stopped reports whether polling is currently halted.
	Stopped() bool
}

// Monitor is a one-way breaker. The first time the failure count reaches the
// threshold it sets a sticky stop flag and calls onHalt, exactly once. The
// count never resets and there is no recovery.
type Monitor struct {
	threshold int32
	failures  atomic.Int32
	stopped   atomic.Bool
	onHalt    func()
}

// NewMonitor creates a [Monitor]. A threshold below one uses
// [DefaultFailureThreshold]. onHalt may be nil.
func NewMonitor(threshold int, onHalt func()) *Monitor {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &Monitor{threshold: int32(threshold), onHalt: onHalt}
}

func (m *Monitor) Allow() bool {
	return !m.stopped.Load()
}

func (m *Monitor) RecordFailure() {
	if m.failures.Add(1) < m.threshold {
		return
	}
	if m.stopped.CompareAndSwap(false, true) && m.onHalt != nil {
		m.onHalt()
	}
}

// RecordSuccess is a no-op; successes do not forgive earlier failures.
func (m *Monitor) RecordSuccess() {}

func (m *Monitor) Stopped() bool {
	return m.stopped.Load()
}

// Failures returns the number of failures recorded so far.
func (m *Monitor) Failures() int {
	return int(m.failures.Load())
}

// BreakerState is the state of a [CooldownBreaker].
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CooldownConfig configures a [CooldownBreaker].
type CooldownConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int

	// InitialCooldown is how long the breaker stays open after the first trip.
	InitialCooldown time.Duration

	// MaxCooldown caps the cooldown as repeated trips grow it.
	MaxCooldown time.Duration

	// OnHalt is called each time the breaker opens from the closed state.
	OnHalt func()

	// OnResume is called when a half-open probe succeeds.
	OnResume func()
}

// CooldownBreaker is a recovering breaker: closed, then open after Threshold
// consecutive failures, then half-open once the cooldown elapses, allowing a
// single probe. A successful probe closes it; a failed probe reopens it with
// a longer cooldown.
type CooldownBreaker struct {
	cfg CooldownConfig
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openUntil time.Time
	probing   bool
	cooldown  *backoff.ExponentialBackOff
}

// NewCooldownBreaker creates a [CooldownBreaker]. Zero fields in cfg take
// defaults: threshold 5, initial cooldown 30s, max cooldown 10m.
func NewCooldownBreaker(cfg CooldownConfig) *CooldownBreaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = DefaultFailureThreshold
	}
	if cfg.InitialCooldown <= 0 {
		cfg.InitialCooldown = 30 * time.Second
	}
	if cfg.MaxCooldown < cfg.InitialCooldown {
		cfg.MaxCooldown = 10 * time.Minute
		if cfg.MaxCooldown < cfg.InitialCooldown {
			cfg.MaxCooldown = cfg.InitialCooldown
		}
	}

	cooldown := backoff.NewExponentialBackOff()
	cooldown.InitialInterval = cfg.InitialCooldown
	cooldown.MaxInterval = cfg.MaxCooldown
	cooldown.Multiplier = 2
	cooldown.RandomizationFactor = 0
	cooldown.MaxElapsedTime = 0
	cooldown.Reset()

	return &CooldownBreaker{
		cfg:      cfg,
		now:      time.Now,
		cooldown: cooldown,
	}
}

func (b *CooldownBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	default:
		// one probe at a time
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

func (b *CooldownBreaker) RecordFailure() {
	b.mu.Lock()
	var halted bool
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.open()
			halted = true
		}
	case StateHalfOpen:
		b.open()
	}
	b.mu.Unlock()

	if halted && b.cfg.OnHalt != nil {
		b.cfg.OnHalt()
	}
}

func (b *CooldownBreaker) RecordSuccess() {
	b.mu.Lock()
	var resumed bool
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
		b.probing = false
		b.cooldown.Reset()
		resumed = true
	}
	b.mu.Unlock()

	if resumed && b.cfg.OnResume != nil {
		b.cfg.OnResume()
	}
}

func (b *CooldownBreaker) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != StateClosed
}

// State returns the current state.
func (b *CooldownBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// open must be called with b.mu held.
func (b *CooldownBreaker) open() {
	b.state = StateOpen
	b.probing = false
	b.openUntil = b.now().Add(b.cooldown.NextBackOff())
}
