package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FAMQUEST_PORT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", cfg.Retry.MaxRetries)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "famquest.yaml")
	data := []byte(`port: "9000"
db_path: /var/lib/famquest.db
log_format: json
rate_limit:
  per_minute: 30
  burst: 5
retry:
  max_retries: 5
  base_delay: 50ms
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("FAMQUEST_PORT", "9100")
	t.Setenv("FAMQUEST_DB_PATH", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("port = %q, want env override 9100", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/famquest.db" {
		t.Errorf("db_path = %q, want yaml value", cfg.DBPath)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("log_format = %q, want json", cfg.LogFormat)
	}
	if cfg.RateLimit.PerMinute != 30 || cfg.RateLimit.Burst != 5 {
		t.Errorf("rate_limit = %+v, want 30/5", cfg.RateLimit)
	}
	if cfg.Retry.BaseDelay != 50*time.Millisecond {
		t.Errorf("base_delay = %v, want 50ms", cfg.Retry.BaseDelay)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	lookup := func(key string) (string, bool) {
		if key == "FAMQUEST_RETRY_MAX" {
			return "lots", true
		}
		return "", false
	}
	if err := applyEnv(&cfg, lookup); err == nil {
		t.Fatal("expected error for non-numeric FAMQUEST_RETRY_MAX")
	}
}

func TestApplyEnvTracingEndpoint(t *testing.T) {
	cfg := Default()
	lookup := func(key string) (string, bool) {
		if key == "FAMQUEST_OTLP_ENDPOINT" {
			return "http://collector:4318", true
		}
		return "", false
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Tracing.Endpoint != "http://collector:4318" {
		t.Errorf("tracing endpoint = %q", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.ServiceName != "famquest" {
		t.Errorf("service name = %q, want default famquest", cfg.Tracing.ServiceName)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.PerMinute = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero rate limit")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
