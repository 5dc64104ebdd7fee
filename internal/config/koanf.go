package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config files searched, in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envKeys maps environment variables to koanf paths.
var envKeys = map[string]string{
	"HTTP_ADDR":                     "server.addr",
	"RATE_LIMIT_PER_MINUTE":         "server.rate_limit_per_minute",
	"SHUTDOWN_TIMEOUT":              "server.shutdown_timeout",
	"LOG_LEVEL":                     "logging.level",
	"LOG_FORMAT":                    "logging.format",
	"CONFIDENCE_THRESHOLD":          "recommendation.confidence_threshold",
	"RECOMMENDATION_LIMIT":          "recommendation.limit",
	"HISTORY_BACKEND":               "history.backend",
	"HISTORY_BADGER_PATH":           "history.badger_path",
	"SMOOTHING_WINDOW_SIZE":         "history.window_size",
	"SMOOTHING_WINDOW_TTL":          "history.ttl",
	"SPOTIFY_CLIENT_ID":             "spotify.client_id",
	"SPOTIFY_CLIENT_SECRET":         "spotify.client_secret",
	"SPOTIFY_TOKEN_CACHE":           "spotify.token_cache",
	"SPOTIFY_TIMEOUT_MS":            "spotify.timeout_ms",
	"OPENAI_API_KEY":                "openai.api_key",
	"OPENAI_EXPLANATION_MODEL":      "openai.model",
	"OPENAI_EXPLANATION_ENABLED":    "openai.explanation_enabled",
	"OPENAI_EXPLANATION_TIMEOUT_MS": "openai.timeout_ms",
	"YOUTUBE_API_KEY":               "youtube.api_key",
	"YOUTUBE_ENRICHMENT_TIMEOUT_MS": "youtube.timeout_ms",
	"MOOD_DETECTION_SERVICE_URL":    "detector.url",
	"DATABASE_URL":                  "database.url",
	"ANALYTICS_WORKERS":             "analytics.workers",
	"ANALYTICS_QUEUE_SIZE":          "analytics.queue_size",
}

// defaultConfig returns the configuration used when nothing overrides it.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			RateLimitPerMinute: 60,
			ShutdownTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Recommendation: RecommendationConfig{
			ConfidenceThreshold: 0.4,
			Limit:               20,
		},
		History: HistoryConfig{
			Backend:    HistoryBackendMemory,
			WindowSize: 3,
			TTL:        24 * time.Hour,
		},
		Spotify: SpotifyConfig{
			TokenCache: true,
			TimeoutMS:  5000,
		},
		OpenAI: OpenAIConfig{
			Model:              "gpt-4o-mini",
			ExplanationEnabled: true,
			TimeoutMS:          5000,
		},
		YouTube: YouTubeConfig{
			TimeoutMS: 3000,
		},
		Detector: DetectorConfig{
			URL: "http://localhost:8001",
		},
		Analytics: AnalyticsConfig{
			Workers:   2,
			QueueSize: 100,
		},
	}
}

// Load builds the configuration in three layers: struct defaults, an optional
// YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps an environment variable to its koanf path.
// Unknown variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envKeys[strings.ToUpper(key)]
}
