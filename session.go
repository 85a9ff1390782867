package dcmetro

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	defaultIncidentsInterval  = 2 * time.Minute
	defaultTrainTimesInterval = 30 * time.Second
	defaultTrainTimesDelay    = time.Second
)

// defaultStations are polled when no stations are configured: both
// platforms of Metro Center.
var defaultStations = []string{"A01", "C01"}

// Session is one independent polling configuration. Several sessions can
// run in one [Board], each publishing events tagged with its identifier.
//
// Session is immutable after creation via [NewSession]. Getters return
// copies of slices.
type Session struct {
	identifier           string
	apiKey               string
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

// Identifier returns the session identifier used to tag published events.
func (s Session) Identifier() string {
	return s.identifier
}

// APIKey returns the WMATA API key.
func (s Session) APIKey() string {
	return s.apiKey
}

// Stations returns the station codes whose train times are polled.
func (s Session) Stations() []string {
	return slices.Clone(s.stations)
}

// ExcludedDestinations returns the destination codes that are filtered out.
func (s Session) ExcludedDestinations() []string {
	return slices.Clone(s.excludedDestinations)
}

// IncidentsInterval returns the time between incident polls.
func (s Session) IncidentsInterval() time.Duration {
	return s.incidentsInterval
}

// TrainTimesInterval returns the time between train-time polls.
func (s Session) TrainTimesInterval() time.Duration {
	return s.trainTimesInterval
}

// TrainTimesDelay returns how long the first train-time poll waits after
// start.
func (s Session) TrainTimesDelay() time.Duration {
	return s.trainTimesDelay
}

// HideTrainTimesLessThan returns the arrival threshold in minutes; zero
// disables it.
func (s Session) HideTrainTimesLessThan() int {
	return s.hideLessThan
}

// MaxTrainTimesPerStation returns the per-station cap; zero means no cap.
func (s Session) MaxTrainTimesPerStation() int {
	return s.maxPerStation
}

// FullDestinationNames reports whether destinations are shown with their
// station directory names.
func (s Session) FullDestinationNames() bool {
	return s.fullDestinationNames
}

// ShowIncidents reports whether the incidents feed is polled.
func (s Session) ShowIncidents() bool {
	return s.showIncidents
}

// ShowTrainTimes reports whether the train-times feed is polled.
func (s Session) ShowTrainTimes() bool {
	return s.showTrainTimes
}

// Breaker returns the failure policy of the session.
func (s Session) Breaker() BreakerConfig {
	return s.breaker
}

// NewSession creates a [Session].
//
// An empty identifier is replaced with a random UUID. The API key must not
// be empty. Without options the session polls incidents every 2 minutes and
// train times for A01 and C01 every 30 seconds, the first train-time poll
// delayed by 1 second, halting after 5 failed polls.
//
// Example:
//
//	s, err := dcmetro.NewSession("hallway", os.Getenv("WMATA_API_KEY"),
//	    dcmetro.WithStations("A01", "C01"),
//	    dcmetro.WithHideTrainTimesLessThan(3),
//	)
func NewSession(identifier, apiKey string, opts ...SessionOption) (Session, error) {
	if apiKey == "" {
		return Session{}, errors.New("api key cannot be empty")
	}
	if identifier == "" {
		identifier = uuid.NewString()
	}

	cfg := &sessionConfig{
		stations:             slices.Clone(defaultStations),
		incidentsInterval:    defaultIncidentsInterval,
		trainTimesInterval:   defaultTrainTimesInterval,
		trainTimesDelay:      defaultTrainTimesDelay,
		fullDestinationNames: true,
		showIncidents:        true,
		showTrainTimes:       true,
		breaker:              BreakerConfig{Policy: BreakerTerminal},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Session{}, err
		}
	}

	return Session{
		identifier:           identifier,
		apiKey:               apiKey,
		stations:             cfg.stations,
		excludedDestinations: cfg.excludedDestinations,
		incidentsInterval:    cfg.incidentsInterval,
		trainTimesInterval:   cfg.trainTimesInterval,
		trainTimesDelay:      cfg.trainTimesDelay,
		hideLessThan:         cfg.hideLessThan,
		maxPerStation:        cfg.maxPerStation,
		fullDestinationNames: cfg.fullDestinationNames,
		showIncidents:        cfg.showIncidents,
		showTrainTimes:       cfg.showTrainTimes,
		breaker:              cfg.breaker,
	}, nil
}
