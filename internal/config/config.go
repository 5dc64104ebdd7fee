// Package config loads service configuration from defaults, an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// History backends.
const (
	HistoryBackendMemory = "memory"
	HistoryBackendBadger = "badger"
)

// Config is the complete service configuration.
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Logging        LoggingConfig        `koanf:"logging"`
	Recommendation RecommendationConfig `koanf:"recommendation"`
	History        HistoryConfig        `koanf:"history"`
	Spotify        SpotifyConfig        `koanf:"spotify"`
	OpenAI         OpenAIConfig         `koanf:"openai"`
	YouTube        YouTubeConfig        `koanf:"youtube"`
	Detector       DetectorConfig       `koanf:"detector"`
	Database       DatabaseConfig       `koanf:"database"`
	Analytics      AnalyticsConfig      `koanf:"analytics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string        `koanf:"addr"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// RecommendationConfig tunes the recommendation pipeline.
type RecommendationConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	Limit               int     `koanf:"limit"`
}

// HistoryConfig configures the smoothing window store.
type HistoryConfig struct {
	Backend    string        `koanf:"backend"`
	BadgerPath string        `koanf:"badger_path"` // empty = in-memory Badger
	WindowSize int           `koanf:"window_size"`
	TTL        time.Duration `koanf:"ttl"`
}

// SpotifyConfig holds catalog credentials. Empty credentials disable the
// primary provider.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenCache   bool   `koanf:"token_cache"`
	TimeoutMS    int    `koanf:"timeout_ms"`
}

// Timeout returns the per-call catalog deadline.
func (c SpotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Enabled reports whether both credentials are set.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// OpenAIConfig configures explanations and text emotion inference.
type OpenAIConfig struct {
	APIKey             string `koanf:"api_key"`
	Model              string `koanf:"model"`
	ExplanationEnabled bool   `koanf:"explanation_enabled"`
	TimeoutMS          int    `koanf:"timeout_ms"`
}

// Timeout returns the explanation deadline.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// YouTubeConfig holds the Data API key. Empty disables enrichment.
type YouTubeConfig struct {
	APIKey    string `koanf:"api_key"`
	TimeoutMS int    `koanf:"timeout_ms"` // per-request enrichment budget
}

// Timeout returns the enrichment deadline.
func (c YouTubeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// DetectorConfig locates the facial emotion service.
type DetectorConfig struct {
	URL string `koanf:"url"`
}

// DatabaseConfig configures PostgreSQL. Empty URL disables persistence.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AnalyticsConfig sizes the background recorder.
type AnalyticsConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_per_minute must be >= 0, got %d", c.Server.RateLimitPerMinute))
	}
	if t := c.Recommendation.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("recommendation.confidence_threshold must be in [0,1], got %v", t))
	}
	if c.Recommendation.Limit < 1 || c.Recommendation.Limit > 100 {
		errs = append(errs, fmt.Errorf("recommendation.limit must be in [1,100], got %d", c.Recommendation.Limit))
	}
	switch c.History.Backend {
	case HistoryBackendMemory, HistoryBackendBadger:
	default:
		errs = append(errs, fmt.Errorf("history.backend must be %q or %q, got %q", HistoryBackendMemory, HistoryBackendBadger, c.History.Backend))
	}
	if c.History.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("history.window_size must be >= 1, got %d", c.History.WindowSize))
	}
	if c.History.TTL <= 0 {
		errs = append(errs, fmt.Errorf("history.ttl must be positive, got %v", c.History.TTL))
	}
	if c.OpenAI.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("openai.timeout_ms must be positive, got %d", c.OpenAI.TimeoutMS))
	}
	if c.Spotify.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("spotify.timeout_ms must be positive, got %d", c.Spotify.TimeoutMS))
	}
	if c.YouTube.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("youtube.timeout_ms must be positive, got %d", c.YouTube.TimeoutMS))
	}
	if c.Detector.URL == "" {
		errs = append(errs, errors.New("detector.url is required"))
	}
	if c.Analytics.Workers < 1 {
		errs = append(errs, fmt.Errorf("analytics.workers must be >= 1, got %d", c.Analytics.Workers))
	}
	if c.Analytics.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("analytics.queue_size must be >= 1, got %d", c.Analytics.QueueSize))
	}

	return errors.Join(errs...)
}
