// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/designscore/designscore/internal/analysis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Capture CaptureConfig `mapstructure:"capture"`
	Vision  VisionConfig  `mapstructure:"vision"`
	Storage StorageConfig `mapstructure:"storage"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Scoring ScoringConfig `mapstructure:"scoring"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig configures the HTML fetch collaborator.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
}

// CaptureConfig configures the chromedp screenshot subsystem.
type CaptureConfig struct {
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
	OutputDir     string  `mapstructure:"output_dir"`
	CacheEnabled  bool    `mapstructure:"cache_enabled"`
	CacheTTLHours int     `mapstructure:"cache_ttl_hours"`
	UserAgent     string  `mapstructure:"user_agent"`
}

// VisionConfig controls access to the vision model endpoint.
type VisionConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig sets the screenshot blob destination.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	LocalDir    string `mapstructure:"local_dir"`
	ContentType string `mapstructure:"content_type"`
}

// SheetsConfig holds spreadsheet log sink credentials.
type SheetsConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	WorksheetName   string `mapstructure:"worksheet_name"`
}

// DBConfig controls the optional analysis history database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScoringConfig holds category weights, grading thresholds, and the rules
// version. Shared read-only across all analysis requests after load.
type ScoringConfig struct {
	Weights    map[string]float64 `mapstructure:"weights"`
	Thresholds map[string]float64 `mapstructure:"thresholds"`
	Version    string             `mapstructure:"version"`
}

// Weight returns the configured weight for a category, zero if unset.
func (s ScoringConfig) Weight(c analysis.Category) float64 {
	return s.Weights[string(c)]
}

// WeightsByCategory converts the string-keyed map into category keys.
func (s ScoringConfig) WeightsByCategory() map[analysis.Category]float64 {
	out := make(map[analysis.Category]float64, len(s.Weights))
	for k, v := range s.Weights {
		out[analysis.Category(k)] = v
	}
	return out
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DESIGNSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("capture.max_parallel", 2)
	v.SetDefault("capture.nav_timeout_seconds", 30)
	v.SetDefault("capture.domain_qps", 0.5)
	v.SetDefault("capture.output_dir", "./screenshots")
	v.SetDefault("capture.cache_enabled", true)
	v.SetDefault("capture.cache_ttl_hours", 24)
	v.SetDefault("vision.base_url", "http://localhost:11434")
	v.SetDefault("vision.model", "llama3.2-vision")
	v.SetDefault("vision.timeout_seconds", 60)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.prefix", "website-screenshots")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.content_type", "image/png")
	v.SetDefault("sheets.worksheet_name", "Website Analysis Results")
	v.SetDefault("logging.development", true)
	v.SetDefault("scoring.weights", map[string]float64{
		"typography":     0.25,
		"color":          0.20,
		"layout":         0.25,
		"responsiveness": 0.15,
		"accessibility":  0.15,
	})
	v.SetDefault("scoring.thresholds", map[string]float64{
		"excellent": 90,
		"good":      70,
		"fair":      50,
		"poor":      0,
	})
	v.SetDefault("scoring.version", "1.0")
}

// Validate enforces required values and reasonable limits. Weight sums are
// deliberately not enforced; WeightSumDrift lets callers log the drift.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Capture.MaxParallel <= 0 {
		return fmt.Errorf("capture.max_parallel must be > 0")
	}
	if c.Vision.BaseURL == "" {
		return fmt.Errorf("vision.base_url must be set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	for _, cat := range analysis.Categories() {
		if _, ok := c.Scoring.Weights[string(cat)]; !ok {
			return fmt.Errorf("scoring.weights missing category %q", cat)
		}
	}
	return nil
}

// WeightSumDrift returns the absolute distance of the weight sum from 1.0.
func (c Config) WeightSumDrift() float64 {
	sum := 0.0
	for _, w := range c.Scoring.Weights {
		sum += w
	}
	return math.Abs(sum - 1.0)
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// VisionTimeout converts the vision timeout config into a duration.
func (c Config) VisionTimeout() time.Duration {
	return time.Duration(c.Vision.TimeoutSeconds) * time.Second
}

// NavTimeout converts the capture navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSec) * time.Second
}
