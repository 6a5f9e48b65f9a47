package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Store     StoreConfig
	Artifacts ArtifactsConfig
	Run       RunConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// FetchConfig holds static page fetcher configuration.
type FetchConfig struct {
	Timeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	MaxRetries    int           `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	UserAgent     string        `envconfig:"FETCH_USER_AGENT" default:"PageSentry/1.0"`
	RatePerSecond float64       `envconfig:"FETCH_RPS" default:"0"`
}

// BrowserConfig holds headless browser configuration.
type BrowserConfig struct {
	Enabled      bool          `envconfig:"BROWSER_ENABLED" default:"false"`
	UserAgent    string        `envconfig:"BROWSER_USER_AGENT" default:""`
	PageLoadWait time.Duration `envconfig:"BROWSER_PAGE_LOAD_WAIT" default:"2s"`
}

// StoreConfig holds selector cache and run history storage configuration.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"state/pagesentry.db"`
}

// ArtifactsConfig holds failure capture configuration.
type ArtifactsConfig struct {
	Dir     string        `envconfig:"ARTIFACTS_DIR" default:"artifacts"`
	Timeout time.Duration `envconfig:"ARTIFACTS_TIMEOUT" default:"10s"`
}

// RunConfig holds run-level extraction defaults.
type RunConfig struct {
	DegradedIsSuccess bool `envconfig:"RUN_DEGRADED_IS_SUCCESS" default:"false"`
	MaxAttempts       int  `envconfig:"RUN_MAX_ATTEMPTS" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Fetch: FetchConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "PageSentry/1.0",
		},
		Browser: BrowserConfig{
			Enabled:      false,
			PageLoadWait: 2 * time.Second,
		},
		Store: StoreConfig{
			Path: "state/pagesentry.db",
		},
		Artifacts: ArtifactsConfig{
			Dir:     "artifacts",
			Timeout: 10 * time.Second,
		},
		Run: RunConfig{
			DegradedIsSuccess: false,
			MaxAttempts:       3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
