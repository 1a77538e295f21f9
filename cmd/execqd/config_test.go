package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "execqd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q, want :8080", cfg.Listen)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Store.Driver)
	}
	if !cfg.Worker.Enabled || cfg.Worker.Concurrency != 4 {
		t.Errorf("worker defaults = %+v", cfg.Worker)
	}
	if cfg.Worker.ShutdownTimeout.Std() != 30*time.Second {
		t.Errorf("shutdown timeout = %v, want 30s", cfg.Worker.ShutdownTimeout.Std())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9090"
log:
  level: debug
  format: json
store:
  driver: sqlite
  dsn: /tmp/execq.db
worker:
  enabled: true
  concurrency: 8
  poll_interval: 250ms
  shutdown_timeout: 5s
  job_timeout: 2m
  claim_rate: 10.5
  claim_burst: 3
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/execq.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Worker.Concurrency)
	}
	if cfg.Worker.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", cfg.Worker.PollInterval.Std())
	}
	if cfg.Worker.JobTimeout.Std() != 2*time.Minute {
		t.Errorf("job timeout = %v, want 2m", cfg.Worker.JobTimeout.Std())
	}
	if cfg.Worker.ClaimRate != 10.5 || cfg.Worker.ClaimBurst != 3 {
		t.Errorf("claim limit = %v/%d", cfg.Worker.ClaimRate, cfg.Worker.ClaimBurst)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9090"
store:
  driver: sqlite
  dsn: /tmp/execq.db
`)

	t.Setenv("EXECQ_LISTEN", ":7070")
	t.Setenv("EXECQ_STORE_DRIVER", "redis")
	t.Setenv("EXECQ_STORE_DSN", "redis://localhost:6379/2")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("listen = %q, want env override :7070", cfg.Listen)
	}
	if cfg.Store.Driver != "redis" || cfg.Store.DSN != "redis://localhost:6379/2" {
		t.Errorf("store = %+v, want env overrides", cfg.Store)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfigFile(t, "worker:\n  poll_interval: soon\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig("/nonexistent/execqd.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
