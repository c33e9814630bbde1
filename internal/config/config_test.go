package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected api url: %s", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.RequestTimeout)
	}
	if cfg.CredentialsPath == "" {
		t.Fatal("expected a default credentials path")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.toml")
	body := `
api_url = "https://file.example"
stream_url = "wss://file.example"
log_level = "debug"
request_timeout = "5s"
rate_limit = 3.0
rate_burst = 2
`
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(envConfigFile, file)
	t.Setenv(envAPIBaseURL, "https://env.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://env.example" {
		t.Fatalf("env should win over file, got %s", cfg.APIBaseURL)
	}
	if cfg.StreamBaseURL != "wss://file.example" {
		t.Fatalf("file value expected, got %s", cfg.StreamBaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value expected, got %s", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.RequestTimeout)
	}
	if cfg.RateLimit != 3.0 || cfg.RateBurst != 2 {
		t.Fatalf("unexpected rate settings: %v/%v", cfg.RateLimit, cfg.RateBurst)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(envRequestTimeout, "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed timeout")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	for _, key := range []string{
		envAPIBaseURL, envStreamBaseURL, envCredentialsPath, envRequestTimeout,
		envRateLimit, envRateBurst, envLogLevel, envMetricsAddr, envConfigFile,
	} {
		t.Setenv(key, "")
	}
}
