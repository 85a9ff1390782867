// Package config provides YAML configuration parsing for dcmetro.
//
// This package enables running dcmetro as a standalone binary with a
// configuration file, as an alternative to the programmatic API.
//
// Example configuration:
//
//	port: 8080
//	title: DC Metro Train Times
//
//	sessions:
//	  - identifier: hallway
//	    api_key: ${WMATA_API_KEY}
//	    stations: [A01, C01]
//	    hide_train_times_less_than: 2
//	    breaker:
//	      policy: cooldown
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// minPollInterval is the minimum allowed polling interval. WMATA
	// rate-limits API keys, so sub-second polling is never useful.
	minPollInterval = 1 * time.Second

	defaultPort = 8080
)

// Config is the root configuration structure for dcmetro.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "DC Metro Train Times".
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// StationsFile is a jStations JSON file to read the station directory
	// from. Empty uses the table built into the binary.
	StationsFile string `yaml:"stations_file"`

	// BaseURL overrides the WMATA API host, e.g. for a local mock.
	BaseURL string `yaml:"base_url"`

	// FetchTimeout bounds each upstream request. Defaults to 10s.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Sessions are the independent polling configurations.
	Sessions []SessionConfig `yaml:"sessions"`
}

// SessionConfig defines one polling session.
//
// Pointer fields distinguish "not set" from an explicit false or zero.
type SessionConfig struct {
	// Identifier tags published events. A random UUID is used when empty.
	Identifier string `yaml:"identifier"`

	// APIKey is the WMATA API key.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	APIKey string `yaml:"api_key"`

	ShowIncidents  *bool `yaml:"show_incidents"`
	ShowTrainTimes *bool `yaml:"show_train_times"`

	// Stations are the station codes polled for train times, e.g. [A01, C01].
	Stations []string `yaml:"stations"`

	// ExcludeDestinations drops trains bound for these station codes.
	ExcludeDestinations []string `yaml:"exclude_destinations"`

	IncidentsInterval  Duration  `yaml:"incidents_interval"`
	TrainTimesInterval Duration  `yaml:"train_times_interval"`
	TrainTimesDelay    *Duration `yaml:"train_times_delay"`

	// HideTrainTimesLessThan hides trains arriving in fewer minutes.
	HideTrainTimesLessThan int `yaml:"hide_train_times_less_than"`

	// MaxTrainTimesPerStation caps each station's list. Zero means no cap.
	MaxTrainTimesPerStation int `yaml:"max_train_times_per_station"`

	// DestinationFullName shows the station directory's destination names
	// instead of the feed's abbreviations. Defaults to true.
	DestinationFullName *bool `yaml:"destination_full_name"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig selects the failure policy of a session.
type BreakerConfig struct {
	// Policy is "terminal" (default) or "cooldown".
	Policy string `yaml:"policy"`

	// Threshold is the number of failures that halts polling. Defaults to 5.
	Threshold int `yaml:"threshold"`

	// InitialCooldown and MaxCooldown apply to the cooldown policy.
	// Default to 30s and 10m.
	InitialCooldown Duration `yaml:"initial_cooldown"`
	MaxCooldown     Duration `yaml:"max_cooldown"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadEnvFiles loads KEY=value pairs from .env files into the process
// environment. Variables that are already set are not overridden, and
// missing files are skipped so a checked-in config works without one.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in api_key, base_url and
// stations_file. Port defaults to 8080.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.BaseURL != "" {
		expanded, err := expandEnvVars(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		c.BaseURL = expanded

		parsedURL, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
		}
	}

	if c.StationsFile != "" {
		expanded, err := expandEnvVars(c.StationsFile)
		if err != nil {
			return fmt.Errorf("stations_file: %w", err)
		}
		c.StationsFile = expanded
	}

	if c.FetchTimeout != 0 && c.FetchTimeout.Duration() < time.Second {
		return fmt.Errorf("fetch_timeout must be at least 1s if specified, got %s", c.FetchTimeout.Duration())
	}

	if len(c.Sessions) == 0 {
		return errors.New("at least one session must be defined")
	}

	seen := make(map[string]struct{}, len(c.Sessions))
	for i := range c.Sessions {
		s := &c.Sessions[i]
		ctx := fmt.Sprintf("sessions[%d]", i)
		if s.Identifier != "" {
			ctx = fmt.Sprintf("sessions[%d] (%s)", i, s.Identifier)
			if _, exists := seen[s.Identifier]; exists {
				return fmt.Errorf("%s: duplicate identifier", ctx)
			}
			seen[s.Identifier] = struct{}{}
		}

		if err := s.expandAndValidate(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *SessionConfig) expandAndValidate(ctx string) error {
	expanded, err := expandEnvVars(s.APIKey)
	if err != nil {
		return fmt.Errorf("%s: api_key: %w", ctx, err)
	}
	s.APIKey = expanded
	if s.APIKey == "" {
		return fmt.Errorf("%s: api_key is required", ctx)
	}

	for _, code := range s.Stations {
		if code == "" {
			return fmt.Errorf("%s: station codes cannot be empty", ctx)
		}
	}

	for name, d := range map[string]Duration{
		"incidents_interval":   s.IncidentsInterval,
		"train_times_interval": s.TrainTimesInterval,
	} {
		if d != 0 && d.Duration() < minPollInterval {
			return fmt.Errorf("%s: %s must be at least %s, got %s", ctx, name, minPollInterval, d.Duration())
		}
	}

	if s.TrainTimesDelay != nil && s.TrainTimesDelay.Duration() < 0 {
		return fmt.Errorf("%s: train_times_delay cannot be negative, got %s", ctx, s.TrainTimesDelay.Duration())
	}
	if s.HideTrainTimesLessThan < 0 {
		return fmt.Errorf("%s: hide_train_times_less_than cannot be negative, got %d", ctx, s.HideTrainTimesLessThan)
	}
	if s.MaxTrainTimesPerStation < 0 {
		return fmt.Errorf("%s: max_train_times_per_station cannot be negative, got %d", ctx, s.MaxTrainTimesPerStation)
	}

	b := s.Breaker
	switch b.Policy {
	case "", "terminal", "cooldown":
	default:
		return fmt.Errorf("%s: breaker.policy must be terminal or cooldown, got %q", ctx, b.Policy)
	}
	if b.Threshold < 0 {
		return fmt.Errorf("%s: breaker.threshold cannot be negative, got %d", ctx, b.Threshold)
	}
	if b.InitialCooldown < 0 || b.MaxCooldown < 0 {
		return fmt.Errorf("%s: breaker cooldowns cannot be negative", ctx)
	}
	if b.MaxCooldown != 0 && b.InitialCooldown > b.MaxCooldown {
		return fmt.Errorf("%s: breaker.initial_cooldown %s exceeds max_cooldown %s",
			ctx, b.InitialCooldown.Duration(), b.MaxCooldown.Duration())
	}

	return nil
}
