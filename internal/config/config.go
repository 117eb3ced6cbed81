// ABOUTME: Configuration loading and parsing for the chat store
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Fillinger66/database-management-demo/internal/store"
)

// Config represents the complete chat store configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Retry    RetryConfig    `yaml:"retry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds the store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RetryConfig holds the write retry policy. Delays are duration strings in
// the YAML ("100ms", "2s").
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BaseDelay         time.Duration `yaml:"-"`
	MaxDelay          time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	BaseDelayRaw string `yaml:"base_delay"`
	MaxDelayRaw  string `yaml:"max_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values. Missing retry
// fields fall back to the default policy.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Policy converts the retry section into a store.RetryPolicy.
func (c *Config) Policy() store.RetryPolicy {
	return store.RetryPolicy{
		MaxAttempts:       c.Retry.MaxAttempts,
		BaseDelay:         c.Retry.BaseDelay,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
		MaxDelay:          c.Retry.MaxDelay,
	}
}

func (c *Config) applyDefaults() {
	def := store.DefaultRetryPolicy()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = def.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/chatstore.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all configuration fields are usable. Returns an error
// describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. If the environment variable is not set, it is
// replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Retry.BaseDelayRaw != "" {
		cfg.Retry.BaseDelay, err = time.ParseDuration(cfg.Retry.BaseDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing base_delay %q: %w", cfg.Retry.BaseDelayRaw, err)
		}
	}

	if cfg.Retry.MaxDelayRaw != "" {
		cfg.Retry.MaxDelay, err = time.ParseDuration(cfg.Retry.MaxDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing max_delay %q: %w", cfg.Retry.MaxDelayRaw, err)
		}
	}

	return nil
}
