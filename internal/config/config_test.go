package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/designscore/designscore/internal/analysis"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
fetch:
  user_agent: real-agent
  timeout_seconds: 45
  max_redirects: 5
capture:
  max_parallel: 3
  nav_timeout_seconds: 20
  domain_qps: 1.5
  output_dir: /tmp/shots
  cache_enabled: false
vision:
  base_url: http://vision.internal:11434
  model: llava
  timeout_seconds: 90
storage:
  provider: gcs
  gcs_bucket: bucket
  prefix: shots
logging:
  development: false
scoring:
  weights:
    typography: 0.3
    color: 0.2
    layout: 0.2
    responsiveness: 0.15
    accessibility: 0.15
  version: "2.0"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Capture.MaxParallel != 3 || cfg.Capture.CacheEnabled {
		t.Fatalf("expected capture overrides to apply: %+v", cfg.Capture)
	}
	if cfg.Vision.Model != "llava" {
		t.Fatalf("expected vision model override, got %q", cfg.Vision.Model)
	}
	if got := cfg.Scoring.Weight(analysis.CategoryTypography); got != 0.3 {
		t.Fatalf("expected typography weight 0.3, got %v", got)
	}
	if cfg.Scoring.Version != "2.0" {
		t.Fatalf("expected scoring version 2.0, got %q", cfg.Scoring.Version)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.VisionTimeout(); got != 90*time.Second {
		t.Fatalf("expected vision timeout 90s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Scoring.Weight(analysis.CategoryColor); got != 0.20 {
		t.Fatalf("expected default color weight 0.20, got %v", got)
	}
	if drift := cfg.WeightSumDrift(); drift > 1e-9 {
		t.Fatalf("expected default weights to sum to 1.0, drift %v", drift)
	}
	if cfg.Scoring.Thresholds["excellent"] != 90 {
		t.Fatalf("expected excellent threshold 90, got %v", cfg.Scoring.Thresholds["excellent"])
	}
	if cfg.Sheets.WorksheetName != "Website Analysis Results" {
		t.Fatalf("unexpected default worksheet name %q", cfg.Sheets.WorksheetName)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Fetch:   FetchConfig{TimeoutSeconds: 10},
		Capture: CaptureConfig{MaxParallel: 1},
		Vision:  VisionConfig{BaseURL: "http://localhost:11434"},
		Scoring: ScoringConfig{Weights: map[string]float64{
			"typography": 0.25, "color": 0.20, "layout": 0.25,
			"responsiveness": 0.15, "accessibility": 0.15,
		}},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "invalid capture parallelism",
			cfg: func() Config {
				c := base
				c.Capture.MaxParallel = 0
				return c
			}(),
			want: "capture.max_parallel",
		},
		{
			name: "missing vision base url",
			cfg: func() Config {
				c := base
				c.Vision.BaseURL = ""
				return c
			}(),
			want: "vision.base_url",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "gcs without bucket",
			cfg: func() Config {
				c := base
				c.Storage.Provider = "gcs"
				return c
			}(),
			want: "storage.gcs_bucket",
		},
		{
			name: "missing weight entry",
			cfg: func() Config {
				c := base
				c.Scoring = ScoringConfig{Weights: map[string]float64{"typography": 1.0}}
				return c
			}(),
			want: "scoring.weights",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWeightSumDriftPermissive(t *testing.T) {
	t.Parallel()

	cfg := Config{Scoring: ScoringConfig{Weights: map[string]float64{
		"typography": 0.5, "color": 0.5, "layout": 0.5,
		"responsiveness": 0.15, "accessibility": 0.15,
	}}}
	if drift := cfg.WeightSumDrift(); drift < 0.7 {
		t.Fatalf("expected large drift, got %v", drift)
	}
}
