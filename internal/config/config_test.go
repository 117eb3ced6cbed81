// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./test.db"

retry:
  max_attempts: 8
  base_delay: "50ms"
  backoff_multiplier: 1.5
  max_delay: "1s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("database path: got %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Retry.MaxAttempts != 8 {
		t.Errorf("max_attempts: got %d, want 8", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 50*time.Millisecond {
		t.Errorf("base_delay: got %v, want 50ms", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.BackoffMultiplier != 1.5 {
		t.Errorf("backoff_multiplier: got %v, want 1.5", cfg.Retry.BackoffMultiplier)
	}
	if cfg.Retry.MaxDelay != time.Second {
		t.Errorf("max_delay: got %v, want 1s", cfg.Retry.MaxDelay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/expanded.db")

	path := writeConfig(t, `
database:
  path: "${TEST_DB_PATH}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("expanded path: got %q, want %q", cfg.Database.Path, "/tmp/expanded.db")
	}
}

func TestLoad_RetryDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Retry.MaxAttempts != def.Retry.MaxAttempts {
		t.Errorf("max_attempts default: got %d, want %d", cfg.Retry.MaxAttempts, def.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != def.Retry.BaseDelay {
		t.Errorf("base_delay default: got %v, want %v", cfg.Retry.BaseDelay, def.Retry.BaseDelay)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./test.db"

retry:
  base_delay: "not-a-duration"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "base_delay") {
		t.Errorf("error should name the offending field, got: %v", err)
	}
}

func TestLoad_InvalidRetryPolicy(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./test.db"

retry:
  max_attempts: 3
  backoff_multiplier: 0.2
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for multiplier below one")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if err := cfg.Policy().Validate(); err != nil {
		t.Fatalf("default retry policy must validate: %v", err)
	}
}
