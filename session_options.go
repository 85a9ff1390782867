package dcmetro

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// sessionConfig holds mutable state during Session construction.
type sessionConfig struct {
	stations             []string
	excludedDestinations []string
	incidentsInterval    time.Duration
	trainTimesInterval   time.Duration
	trainTimesDelay      time.Duration
	hideLessThan         int
	maxPerStation        int
	fullDestinationNames bool
	showIncidents        bool
	showTrainTimes       bool
	breaker              BreakerConfig
}

// SessionOption configures a [Session] during construction.
type SessionOption func(*sessionConfig) error

// BreakerPolicy selects how a session reacts to repeated failed polls.
type BreakerPolicy string

const (
	// BreakerTerminal halts polling for good once the threshold is reached.
	BreakerTerminal BreakerPolicy = "terminal"

	// BreakerCooldown pauses polling after the threshold, then retries with
	// a single probe once a growing cooldown has passed.
	BreakerCooldown BreakerPolicy = "cooldown"
)

// BreakerConfig configures the failure policy of a session. Zero values take
// defaults: threshold 5, initial cooldown 30s, max cooldown 10m.
type BreakerConfig struct {
	Policy          BreakerPolicy
	Threshold       int
	InitialCooldown time.Duration
	MaxCooldown     time.Duration
}

// WithStations sets the station codes whose train times are polled. The
// codes are sent upstream in the given order; duplicates are dropped.
//
// Returns an error if no codes are given or a code is empty.
func WithStations(codes ...string) SessionOption {
	return func(cfg *sessionConfig) error {
		if len(codes) == 0 {
			return errors.New("at least one station is required")
		}
		var stations []string
		for _, code := range codes {
			if code == "" {
				return errors.New("station code cannot be empty")
			}
			if !slices.Contains(stations, code) {
				stations = append(stations, code)
			}
		}
		cfg.stations = stations
		return nil
	}
}

// WithExcludedDestinations drops trains bound for any of the given station
// codes.
func WithExcludedDestinations(codes ...string) SessionOption {
	return func(cfg *sessionConfig) error {
		cfg.excludedDestinations = append(cfg.excludedDestinations, codes...)
		return nil
	}
}

// WithIncidentsInterval sets the time between incident polls.
//
// Returns an error if the duration is zero or negative.
func WithIncidentsInterval(d time.Duration) SessionOption {
	return func(cfg *sessionConfig) error {
		if d <= 0 {
			return errors.New("incidents interval must be positive")
		}
		cfg.incidentsInterval = d
		return nil
	}
}

// WithTrainTimesInterval sets the time between train-time polls.
//
// Returns an error if the duration is zero or negative.
func WithTrainTimesInterval(d time.Duration) SessionOption {
	return func(cfg *sessionConfig) error {
		if d <= 0 {
			return errors.New("train times interval must be positive")
		}
		cfg.trainTimesInterval = d
		return nil
	}
}

// WithTrainTimesDelay postpones the first train-time poll so the two feeds
// do not start in the same instant. Zero polls immediately.
func WithTrainTimesDelay(d time.Duration) SessionOption {
	return func(cfg *sessionConfig) error {
		if d < 0 {
			return errors.New("train times delay cannot be negative")
		}
		cfg.trainTimesDelay = d
		return nil
	}
}

// WithHideTrainTimesLessThan hides trains arriving in fewer than the given
// number of minutes. Boarding and arriving trains count as zero. Zero
// disables the filter.
func WithHideTrainTimesLessThan(minutes int) SessionOption {
	return func(cfg *sessionConfig) error {
		if minutes < 0 {
			return fmt.Errorf("hide threshold cannot be negative, got %d", minutes)
		}
		cfg.hideLessThan = minutes
		return nil
	}
}

// WithMaxTrainTimesPerStation caps the trains published per station. Zero
// means no cap.
func WithMaxTrainTimesPerStation(n int) SessionOption {
	return func(cfg *sessionConfig) error {
		if n < 0 {
			return fmt.Errorf("max train times per station cannot be negative, got %d", n)
		}
		cfg.maxPerStation = n
		return nil
	}
}

// WithFullDestinationNames chooses between the station directory's full
// destination names (true, the default) and the feed's abbreviated ones.
func WithFullDestinationNames(full bool) SessionOption {
	return func(cfg *sessionConfig) error {
		cfg.fullDestinationNames = full
		return nil
	}
}

// WithShowIncidents enables or disables the incidents feed.
func WithShowIncidents(show bool) SessionOption {
	return func(cfg *sessionConfig) error {
		cfg.showIncidents = show
		return nil
	}
}

// WithShowTrainTimes enables or disables the train-times feed.
func WithShowTrainTimes(show bool) SessionOption {
	return func(cfg *sessionConfig) error {
		cfg.showTrainTimes = show
		return nil
	}
}

// WithBreaker sets the failure policy.
//
// Returns an error for an unknown policy or negative values.
func WithBreaker(b BreakerConfig) SessionOption {
	return func(cfg *sessionConfig) error {
		switch b.Policy {
		case "":
			b.Policy = BreakerTerminal
		case BreakerTerminal, BreakerCooldown:
		default:
			return fmt.Errorf("unknown breaker policy %q (expected %q or %q)", b.Policy, BreakerTerminal, BreakerCooldown)
		}
		if b.Threshold < 0 {
			return fmt.Errorf("breaker threshold cannot be negative, got %d", b.Threshold)
		}
		if b.InitialCooldown < 0 || b.MaxCooldown < 0 {
			return errors.New("breaker cooldowns cannot be negative")
		}
		cfg.breaker = b
		return nil
	}
}
