package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Checker CheckerConfig `json:"checker"`
	Sources SourcesConfig `json:"sources"`
	Files   FilesConfig   `json:"files"`
	API     APIConfig     `json:"api"`
	Storage StorageConfig `json:"storage"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

type CheckerConfig struct {
	Scheme       string `json:"scheme"` // "socks5" or "http"
	Workers      int    `json:"workers"`
	TimeoutMs    int    `json:"timeout_ms"`
	TestURL      string `json:"test_url"`
	MaxBatchSize int    `json:"max_batch_size"`
}

// Timeout returns the per-probe timeout.
func (c CheckerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type SourcesConfig struct {
	IntervalSeconds int      `json:"interval_seconds"`
	UserAgent       string   `json:"user_agent"`
	Lists           []Source `json:"lists"`
}

type Source struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

type FilesConfig struct {
	Input         string `json:"input"`
	ConvertOutput string `json:"convert_output"`
	WorkingOutput string `json:"working_output"`
	ReportLog     string `json:"report_log"`
}

type APIConfig struct {
	Addr               string `json:"addr"`
	APIKeyEnv          string `json:"api_key_env"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	EnableAPIKeyAuth   bool   `json:"enable_api_key_auth"`
	EnableIPRateLimit  bool   `json:"enable_ip_rate_limit"`
}

type StorageConfig struct {
	Type                   string `json:"type"` // "file", "sqlite", "redis"
	Path                   string `json:"path"`
	PersistIntervalSeconds int    `json:"persist_interval_seconds"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

const (
	DefaultWorkers   = 10
	DefaultTimeoutMs = 10000
	DefaultTestURL   = "https://api.ipify.org?format=json"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from JSON file
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads filePath, falling back to Default when it does not exist.
func LoadOrDefault(filePath string) (*Config, bool, error) {
	cfg, err := Load(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

func (c *Config) applyDefaults() {
	if c.Checker.Workers == 0 {
		c.Checker.Workers = DefaultWorkers
	}
	if c.Checker.TimeoutMs == 0 {
		c.Checker.TimeoutMs = DefaultTimeoutMs
	}
	if c.Checker.TestURL == "" {
		c.Checker.TestURL = DefaultTestURL
	}
	if c.Checker.MaxBatchSize == 0 {
		c.Checker.MaxBatchSize = 10000
	}
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = "proxy-batch-checker/1.0"
	}
	if c.Files.Input == "" {
		c.Files.Input = "proxies.txt"
	}
	if c.Files.ConvertOutput == "" {
		c.Files.ConvertOutput = "logs"
	}
	if c.Files.WorkingOutput == "" {
		c.Files.WorkingOutput = "working.txt"
	}
	if c.Files.ReportLog == "" {
		c.Files.ReportLog = "check.log"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8083"
	}
	if c.API.RateLimitPerMinute == 0 {
		c.API.RateLimitPerMinute = 1200
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/working.txt"
	}
	if c.Storage.PersistIntervalSeconds == 0 {
		c.Storage.PersistIntervalSeconds = 300
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "proxychecker"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks configuration validity. An empty scheme is allowed here;
// RequireScheme enforces it for modes that probe.
func (c *Config) Validate() error {
	if c.Checker.Scheme != "" && !IsProbeScheme(c.Checker.Scheme) {
		return fmt.Errorf("scheme must be 'socks5' or 'http'")
	}
	if c.Checker.Workers < 1 || c.Checker.Workers > 10000 {
		return fmt.Errorf("workers must be between 1 and 10000")
	}
	if c.Checker.TimeoutMs < 100 || c.Checker.TimeoutMs > 300000 {
		return fmt.Errorf("timeout_ms must be between 100 and 300000")
	}
	if c.Checker.MaxBatchSize < 1 {
		return fmt.Errorf("max_batch_size must be positive")
	}
	if c.Sources.IntervalSeconds < 0 {
		return fmt.Errorf("interval_seconds must not be negative")
	}
	if c.Storage.Type != "file" && c.Storage.Type != "sqlite" && c.Storage.Type != "redis" {
		return fmt.Errorf("storage type must be 'file', 'sqlite', or 'redis'")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging format must be 'text' or 'json'")
	}
	return nil
}

// RequireScheme fails unless a probe scheme has been chosen explicitly.
func (c *Config) RequireScheme() error {
	if c.Checker.Scheme == "" {
		return fmt.Errorf("scheme is required: choose 'socks5' or 'http'")
	}
	if !IsProbeScheme(c.Checker.Scheme) {
		return fmt.Errorf("unsupported scheme %q: choose 'socks5' or 'http'", c.Checker.Scheme)
	}
	return nil
}

// IsProbeScheme reports whether scheme can be used to probe.
func IsProbeScheme(scheme string) bool {
	return scheme == "socks5" || scheme == "http"
}
