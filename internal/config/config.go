package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service settings. Values come from an optional YAML file
// and are then overridden by FAMQUEST_* environment variables.
type Config struct {
	Port      string          `yaml:"port"`
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// RateLimitConfig bounds write requests per client.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// RetryConfig controls how often a redemption is retried while the database is busy.
type RetryConfig struct {
	MaxRetries uint64        `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

func Default() Config {
	return Config{
		Port:      "8080",
		DBPath:    "famquest.db",
		LogLevel:  "info",
		LogFormat: "text",
		RateLimit: RateLimitConfig{PerMinute: 60, Burst: 10},
		Retry:     RetryConfig{MaxRetries: 3, BaseDelay: 25 * time.Millisecond},
		Tracing:   TracingConfig{ServiceName: "famquest"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("FAMQUEST_PORT"); ok && v != "" {
		cfg.Port = v
	}
	if v, ok := lookup("FAMQUEST_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("FAMQUEST_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("FAMQUEST_LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = v
	}
	if v, ok := lookup("FAMQUEST_OTLP_ENDPOINT"); ok && v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v, ok := lookup("FAMQUEST_RATE_LIMIT_PER_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAMQUEST_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimit.PerMinute = n
	}
	if v, ok := lookup("FAMQUEST_RETRY_MAX"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FAMQUEST_RETRY_MAX: %w", err)
		}
		cfg.Retry.MaxRetries = n
	}
	if v, ok := lookup("FAMQUEST_RETRY_BASE_DELAY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FAMQUEST_RETRY_BASE_DELAY: %w", err)
		}
		cfg.Retry.BaseDelay = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("rate_limit.per_minute must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive")
	}
	return nil
}
