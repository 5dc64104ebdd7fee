package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Recommendation.ConfidenceThreshold != 0.4 || cfg.Recommendation.Limit != 20 {
		t.Errorf("Recommendation = %+v", cfg.Recommendation)
	}
	if cfg.History.WindowSize != 3 || cfg.History.TTL != 24*time.Hour || cfg.History.Backend != HistoryBackendMemory {
		t.Errorf("History = %+v", cfg.History)
	}
	if !cfg.OpenAI.ExplanationEnabled || cfg.OpenAI.Timeout() != 5*time.Second || cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("OpenAI = %+v", cfg.OpenAI)
	}
	if cfg.Detector.URL != "http://localhost:8001" {
		t.Errorf("Detector.URL = %q", cfg.Detector.URL)
	}
	if cfg.Analytics.Workers != 2 || cfg.Analytics.QueueSize != 100 {
		t.Errorf("Analytics = %+v", cfg.Analytics)
	}
	if cfg.Spotify.Timeout() != 5*time.Second || cfg.YouTube.Timeout() != 3*time.Second {
		t.Errorf("timeouts = %v / %v, want 5s / 3s", cfg.Spotify.Timeout(), cfg.YouTube.Timeout())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("SMOOTHING_WINDOW_SIZE", "5")
	t.Setenv("SMOOTHING_WINDOW_TTL", "2h")
	t.Setenv("HISTORY_BACKEND", "badger")
	t.Setenv("OPENAI_EXPLANATION_ENABLED", "false")
	t.Setenv("OPENAI_EXPLANATION_TIMEOUT_MS", "1500")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_ENRICHMENT_TIMEOUT_MS", "800")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Recommendation.ConfidenceThreshold != 0.55 {
		t.Errorf("ConfidenceThreshold = %v", cfg.Recommendation.ConfidenceThreshold)
	}
	if cfg.History.WindowSize != 5 || cfg.History.TTL != 2*time.Hour || cfg.History.Backend != HistoryBackendBadger {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.OpenAI.ExplanationEnabled || cfg.OpenAI.Timeout() != 1500*time.Millisecond {
		t.Errorf("OpenAI = %+v", cfg.OpenAI)
	}
	if !cfg.Spotify.Enabled() {
		t.Error("Spotify.Enabled() = false with both credentials")
	}
	if cfg.YouTube.Timeout() != 800*time.Millisecond {
		t.Errorf("YouTube.Timeout() = %v, want 800ms", cfg.YouTube.Timeout())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: "0.0.0.0:7000"
recommendation:
  limit: 10
history:
  window_size: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECOMMENDATION_LIMIT", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:7000" {
		t.Errorf("Server.Addr = %q, want file value", cfg.Server.Addr)
	}
	if cfg.History.WindowSize != 4 {
		t.Errorf("WindowSize = %d, want file value 4", cfg.History.WindowSize)
	}
	if cfg.Recommendation.Limit != 15 {
		t.Errorf("Limit = %d, want env override 15", cfg.Recommendation.Limit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "threshold above 1", mutate: func(c *Config) { c.Recommendation.ConfidenceThreshold = 1.2 }, wantErr: "confidence_threshold"},
		{name: "zero window", mutate: func(c *Config) { c.History.WindowSize = 0 }, wantErr: "window_size"},
		{name: "unknown backend", mutate: func(c *Config) { c.History.Backend = "redis" }, wantErr: "history.backend"},
		{name: "zero timeout", mutate: func(c *Config) { c.OpenAI.TimeoutMS = 0 }, wantErr: "timeout_ms"},
		{name: "zero enrichment timeout", mutate: func(c *Config) { c.YouTube.TimeoutMS = 0 }, wantErr: "youtube.timeout_ms"},
		{name: "limit too large", mutate: func(c *Config) { c.Recommendation.Limit = 500 }, wantErr: "recommendation.limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	if got := envTransformFunc("DATABASE_URL"); got != "database.url" {
		t.Errorf("envTransformFunc(DATABASE_URL) = %q", got)
	}
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want ignored", got)
	}
}
