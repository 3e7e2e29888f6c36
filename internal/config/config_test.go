package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
rooms:
  maxParticipants: 4
  defaultTimeLimit: 90s
  waitingTTL: 10m
`)
	t.Setenv("REDIS_ADDR", "localhost:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("expected redis addr from env, got %q", cfg.Redis.Addr)
	}

	s := cfg.RoomSettings()
	if s.MaxParticipants != 4 {
		t.Fatalf("expected max participants 4, got %d", s.MaxParticipants)
	}
	if s.DefaultTimeLimit != 90*time.Second {
		t.Fatalf("expected default time limit 90s, got %s", s.DefaultTimeLimit)
	}
	if s.WaitingTTL != 10*time.Minute {
		t.Fatalf("expected waiting ttl 10m, got %s", s.WaitingTTL)
	}
	if s.FinishedRetention != 2*time.Minute {
		t.Fatalf("expected default retention, got %s", s.FinishedRetention)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
log:
  level: loud
rooms:
  sweepInterval: soon
auth:
  required: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"Level", "SweepInterval", "TicketSecret"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected %s in error, got %v", field, err)
		}
	}
}

func TestLoadShippedConfig(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "config", "config.yaml")); err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", got)
	}
	if got := TTLDuration("3s", time.Minute); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
