package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
analytics:
  max_age: "5m"
  refresh_interval: "1m"
  timezone: "Europe/Berlin"
  dashboard_concurrency: 8
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Analytics.DashboardConcurrency != 8 {
		t.Fatalf("expected concurrency 8, got %d", cfg.Analytics.DashboardConcurrency)
	}
	if got := TTLDuration(cfg.Analytics.MaxAge, time.Hour); got != 5*time.Minute {
		t.Fatalf("expected max age 5m, got %v", got)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %v", loc)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("invalid: got %v", got)
	}
}

func TestEmptyTimezoneIsUTC(t *testing.T) {
	loc, err := Config{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
}
