// Package config loads OpsConnect client configuration from YAML with
// environment overrides. Only composition roots (applications and the
// examples) should load configuration; library code receives its
// dependencies explicitly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// Config holds all client configuration.
type Config struct {
	// Endpoint is the platform GraphQL endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`

	Transport TransportConfig `yaml:"transport"`
	Polling   PollingConfig   `yaml:"polling"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig configures the HTTP executor.
type TransportConfig struct {
	Timeout      string  `yaml:"timeout"`
	MaxRetries   int     `yaml:"max_retries"`
	RetryBackoff string  `yaml:"retry_backoff"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst        int     `yaml:"burst"`
}

// PollingConfig configures background refetch watchers.
type PollingConfig struct {
	Interval       string `yaml:"interval"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:4000/graphql",
		Transport: TransportConfig{
			Timeout:      "30s",
			MaxRetries:   3,
			RetryBackoff: "1s",
			RateLimit:    0,
			Burst:        1,
		},
		Polling: PollingConfig{
			Interval:       "30s",
			InitialBackoff: "1s",
			MaxBackoff:     "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if endpoint := os.Getenv("OPSCONNECT_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if token := os.Getenv("OPSCONNECT_TOKEN"); token != "" {
		c.Token = token
	}
	if level := os.Getenv("OPSCONNECT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewClientError(errors.CONFIG_INVALID, fmt.Sprintf("invalid endpoint: %q", c.Endpoint), err)
	}
	if c.Transport.MaxRetries < 0 {
		return errors.NewClientError(errors.CONFIG_INVALID, "transport.max_retries must not be negative", nil)
	}
	if c.Transport.RateLimit < 0 {
		return errors.NewClientError(errors.CONFIG_INVALID, "transport.rate_limit must not be negative", nil)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return errors.NewClientError(errors.CONFIG_INVALID, fmt.Sprintf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels), nil)
	}

	return nil
}

// GetTimeout returns the transport timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.Transport.Timeout, 30*time.Second)
}

// GetRetryBackoff returns the base retry backoff as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	return parseDuration(c.Transport.RetryBackoff, time.Second)
}

// GetPollInterval returns the polling interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Polling.Interval, 30*time.Second)
}

// GetPollBackoff returns the initial and maximum polling backoff.
func (c *Config) GetPollBackoff() (initial, max time.Duration) {
	return parseDuration(c.Polling.InitialBackoff, time.Second),
		parseDuration(c.Polling.MaxBackoff, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
