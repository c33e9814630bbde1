// Package config assembles console configuration from defaults, an optional
// TOML file, an optional .env file and environment variables. Environment
// values win over the file; callers may still override per-flag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	envAPIBaseURL      = "QAZNA_ADMIN_API_URL"
	envStreamBaseURL   = "QAZNA_ADMIN_STREAM_URL"
	envCredentialsPath = "QAZNA_ADMIN_CREDENTIALS"
	envRequestTimeout  = "QAZNA_ADMIN_TIMEOUT"
	envRateLimit       = "QAZNA_ADMIN_RATE_LIMIT"
	envRateBurst       = "QAZNA_ADMIN_RATE_BURST"
	envLogLevel        = "QAZNA_ADMIN_LOG_LEVEL"
	envMetricsAddr     = "QAZNA_ADMIN_METRICS_ADDR"
	envConfigFile      = "QAZNA_ADMIN_CONFIG"
)

// Config holds everything the console needs to reach the back office.
type Config struct {
	APIBaseURL      string        `toml:"api_url"`
	StreamBaseURL   string        `toml:"stream_url"`
	CredentialsPath string        `toml:"credentials_path"`
	RequestTimeout  time.Duration `toml:"-"`
	RateLimit       float64       `toml:"rate_limit"`
	RateBurst       int           `toml:"rate_burst"`
	LogLevel        string        `toml:"log_level"`
	MetricsAddr     string        `toml:"metrics_addr"`

	// RequestTimeoutRaw mirrors RequestTimeout for TOML ("30s" style values).
	RequestTimeoutRaw string `toml:"request_timeout"`
}

func defaults() Config {
	return Config{
		APIBaseURL:     "http://localhost:8080",
		StreamBaseURL:  "ws://localhost:8080",
		RequestTimeout: 30 * time.Second,
		RateLimit:      20,
		RateBurst:      10,
		LogLevel:       "info",
	}
}

// Load builds the effective configuration. A missing config or .env file is
// not an error; malformed values are.
func Load() (Config, error) {
	// Best effort: local .env for development setups.
	_ = godotenv.Load()

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv(envConfigFile)); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	} else if path := defaultConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadFile(&cfg, path); err != nil {
				return Config{}, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = defaultCredentialsPath()
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if cfg.RequestTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("config file %s: request_timeout: %w", path, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(envAPIBaseURL)); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envStreamBaseURL)); v != "" {
		cfg.StreamBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envCredentialsPath)); v != "" {
		cfg.CredentialsPath = v
	}
	if v := strings.TrimSpace(os.Getenv(envRequestTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv(envRateLimit)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envRateLimit, err)
		}
		cfg.RateLimit = f
	}
	if v := strings.TrimSpace(os.Getenv(envRateBurst)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envRateBurst, err)
		}
		cfg.RateBurst = n
	}
	if v := strings.TrimSpace(os.Getenv(envLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(envMetricsAddr)); v != "" {
		cfg.MetricsAddr = v
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api base url is required (set %s)", envAPIBaseURL)
	}
	if strings.TrimSpace(c.StreamBaseURL) == "" {
		return fmt.Errorf("stream base url is required (set %s)", envStreamBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateBurst <= 0 {
		return fmt.Errorf("rate burst must be positive")
	}
	return nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "qazna-backoffice", "config.toml")
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "qazna-backoffice", "credentials.json")
}
