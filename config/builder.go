package config

import (
	"fmt"

	"github.com/jpalmerr/dcmetro"
)

// BuildSessions converts parsed configuration into SDK Session objects.
func BuildSessions(cfg *Config) ([]dcmetro.Session, error) {
	sessions := make([]dcmetro.Session, 0, len(cfg.Sessions))
	for i, sc := range cfg.Sessions {
		s, err := buildSession(sc)
		if err != nil {
			return nil, fmt.Errorf("sessions[%d]: %w", i, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// buildSession converts a single SessionConfig to an SDK Session. Unset
// fields keep the SDK defaults.
func buildSession(sc SessionConfig) (dcmetro.Session, error) {
	var opts []dcmetro.SessionOption

	if len(sc.Stations) > 0 {
		opts = append(opts, dcmetro.WithStations(sc.Stations...))
	}
	if len(sc.ExcludeDestinations) > 0 {
		opts = append(opts, dcmetro.WithExcludedDestinations(sc.ExcludeDestinations...))
	}
	if sc.IncidentsInterval != 0 {
		opts = append(opts, dcmetro.WithIncidentsInterval(sc.IncidentsInterval.Duration()))
	}
	if sc.TrainTimesInterval != 0 {
		opts = append(opts, dcmetro.WithTrainTimesInterval(sc.TrainTimesInterval.Duration()))
	}
	if sc.TrainTimesDelay != nil {
		opts = append(opts, dcmetro.WithTrainTimesDelay(sc.TrainTimesDelay.Duration()))
	}
	if sc.HideTrainTimesLessThan != 0 {
		opts = append(opts, dcmetro.WithHideTrainTimesLessThan(sc.HideTrainTimesLessThan))
	}
	if sc.MaxTrainTimesPerStation != 0 {
		opts = append(opts, dcmetro.WithMaxTrainTimesPerStation(sc.MaxTrainTimesPerStation))
	}
	if sc.DestinationFullName != nil {
		opts = append(opts, dcmetro.WithFullDestinationNames(*sc.DestinationFullName))
	}
	if sc.ShowIncidents != nil {
		opts = append(opts, dcmetro.WithShowIncidents(*sc.ShowIncidents))
	}
	if sc.ShowTrainTimes != nil {
		opts = append(opts, dcmetro.WithShowTrainTimes(*sc.ShowTrainTimes))
	}

	opts = append(opts, dcmetro.WithBreaker(dcmetro.BreakerConfig{
		Policy:          dcmetro.BreakerPolicy(sc.Breaker.Policy),
		Threshold:       sc.Breaker.Threshold,
		InitialCooldown: sc.Breaker.InitialCooldown.Duration(),
		MaxCooldown:     sc.Breaker.MaxCooldown.Duration(),
	}))

	return dcmetro.NewSession(sc.Identifier, sc.APIKey, opts...)
}

// BoardOptions converts the top-level settings into Board options. Sessions
// are not included; pair it with [BuildSessions].
func BoardOptions(cfg *Config) []dcmetro.Option {
	opts := []dcmetro.Option{
		dcmetro.WithPort(cfg.Port),
	}
	if cfg.Title != "" {
		opts = append(opts, dcmetro.WithTitle(cfg.Title))
	}
	if cfg.StationsFile != "" {
		opts = append(opts, dcmetro.WithStationsFile(cfg.StationsFile))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, dcmetro.WithBaseURL(cfg.BaseURL))
	}
	if cfg.FetchTimeout != 0 {
		opts = append(opts, dcmetro.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}
	return opts
}
