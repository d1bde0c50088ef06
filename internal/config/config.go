// Package config defines service configuration and its loading.
//
// Durations are expressed in milliseconds to keep env and YAML values plain
// integers; use the accessor methods to get time.Duration values.
package config

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Team score policies accepted by TeamScorePolicy.
const (
	TeamPolicyMember1First = "member1_first"
	TeamPolicyMax          = "max"
	TeamPolicySum          = "sum"
	TeamPolicyAverage      = "average"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Scoring service round endpoints. Each serves metadata at its root and
	// candidate pages under /candidates.
	Round1URL    string `koanf:"round1_url"`
	Round2URL    string `koanf:"round2_url"`
	TeamRoundURL string `koanf:"team_round_url"`

	// RegistryURL is the base of the JSON document store holding
	// participants.json, teams.json and games.json.
	RegistryURL string `koanf:"registry_url"`

	// Token is the bearer token sent to the scoring service only.
	Token string `koanf:"token"`

	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	Round1RefreshMS      int `koanf:"round1_refresh_ms"`
	Round2RefreshMS      int `koanf:"round2_refresh_ms"`
	LiveUpdateIntervalMS int `koanf:"live_update_interval_ms"`

	// ParticipantsPerPage is the default page size; MaxParticipantsPerPage caps ?per_page.
	ParticipantsPerPage    int `koanf:"participants_per_page"`
	MaxParticipantsPerPage int `koanf:"max_participants_per_page"`

	// TeamScorePolicy decides a team's score when both members have results.
	TeamScorePolicy string `koanf:"team_score_policy"`

	// DefaultGroup replaces a missing or zero registry group number.
	DefaultGroup int `koanf:"default_group"`

	// CORSAllowedOrigins is a comma separated origin list; "*" allows all.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Metrics. MetricsEnabled=false keeps /metrics up but stops recording.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsRefreshMS int    `koanf:"metrics_refresh_ms"`
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsBuckets is a comma separated list of latency buckets in
	// milliseconds; empty keeps the built-in buckets.
	MetricsBuckets string `koanf:"metrics_buckets"`

	// MetricsLabels holds constant labels as "key=value,key=value".
	MetricsLabels string `koanf:"metrics_labels"`
}

// New returns a Config populated with defaults that point at a local mock upstream.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8080",
		Round1URL:              "http://localhost:9090/round1",
		Round2URL:              "http://localhost:9090/round2",
		TeamRoundURL:           "http://localhost:9090/team",
		RegistryURL:            "http://localhost:9090",
		RequestTimeoutMS:       30_000,
		Round1RefreshMS:        5_000,
		Round2RefreshMS:        300_000,
		LiveUpdateIntervalMS:   30_000,
		ParticipantsPerPage:    10,
		MaxParticipantsPerPage: 100,
		TeamScorePolicy:        TeamPolicyMember1First,
		DefaultGroup:           1,
		CORSAllowedOrigins:     "*",
		MetricsEnabled:         true,
		MetricsRefreshMS:       10_000,
		MetricsNamespace:       "cfcc",
		MetricsSubsystem:       "leaderboard",
	}
}

// RequestTimeout is the per-request upstream deadline.
func (c *Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMS) }

// Round1Refresh is the round-1 board polling period.
func (c *Config) Round1Refresh() time.Duration { return ms(c.Round1RefreshMS) }

// Round2Refresh is the round-2 board polling period.
func (c *Config) Round2Refresh() time.Duration { return ms(c.Round2RefreshMS) }

// LiveUpdateInterval drives the team, overall and group boards.
func (c *Config) LiveUpdateInterval() time.Duration { return ms(c.LiveUpdateIntervalMS) }

// AllowedOrigins splits CORSAllowedOrigins into a trimmed list.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MetricsRefresh is the period of the background gauge updaters.
func (c *Config) MetricsRefresh() time.Duration { return ms(c.MetricsRefreshMS) }

// HistogramBuckets parses MetricsBuckets. An empty value yields nil.
func (c *Config) HistogramBuckets() ([]float64, error) {
	var out []float64
	for _, raw := range strings.Split(c.MetricsBuckets, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: metrics_buckets: bad bucket %q", ErrInvalidConfig, raw)
		}
		out = append(out, v)
	}
	if !sort.Float64sAreSorted(out) {
		return nil, fmt.Errorf("%w: metrics_buckets must be increasing", ErrInvalidConfig)
	}
	return out, nil
}

// ConstLabels parses MetricsLabels into a label map. An empty value yields nil.
func (c *Config) ConstLabels() (map[string]string, error) {
	var out map[string]string
	for _, pair := range strings.Split(c.MetricsLabels, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("%w: metrics_labels: bad pair %q", ErrInvalidConfig, pair)
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out, nil
}

// Validate checks the values Load cannot fix on its own.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Round1URL == "" || c.Round2URL == "" || c.TeamRoundURL == "":
		return fmt.Errorf("%w: round urls must not be empty", ErrInvalidConfig)
	case c.RegistryURL == "":
		return fmt.Errorf("%w: registry_url must not be empty", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	case c.Round1RefreshMS <= 0 || c.Round2RefreshMS <= 0 || c.LiveUpdateIntervalMS <= 0:
		return fmt.Errorf("%w: refresh intervals must be positive", ErrInvalidConfig)
	case c.ParticipantsPerPage <= 0:
		return fmt.Errorf("%w: participants_per_page must be positive", ErrInvalidConfig)
	case c.MaxParticipantsPerPage < c.ParticipantsPerPage:
		return fmt.Errorf("%w: max_participants_per_page must be >= participants_per_page", ErrInvalidConfig)
	case c.DefaultGroup <= 0:
		return fmt.Errorf("%w: default_group must be positive", ErrInvalidConfig)
	case c.MetricsRefreshMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	}
	if _, err := c.HistogramBuckets(); err != nil {
		return err
	}
	if _, err := c.ConstLabels(); err != nil {
		return err
	}
	switch c.TeamScorePolicy {
	case TeamPolicyMember1First, TeamPolicyMax, TeamPolicySum, TeamPolicyAverage:
	default:
		return fmt.Errorf("%w: unknown team_score_policy %q", ErrInvalidConfig, c.TeamScorePolicy)
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
