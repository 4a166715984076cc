package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAndPollConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
poll:
  joinedInterval: 2s
  unjoinedInterval: 0s
  manualRefresh: false
results:
  ttl: 30s
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}

	poll := cfg.PollConfig()
	if poll.JoinedInterval != 2*time.Second {
		t.Fatalf("expected 2s joined interval, got %v", poll.JoinedInterval)
	}
	if poll.UnjoinedInterval != 0 {
		t.Fatalf("expected disabled unjoined polling, got %v", poll.UnjoinedInterval)
	}
	if poll.ManualRefresh {
		t.Fatal("expected manual refresh disabled")
	}
	if got := TTLDuration(cfg.Results.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", got)
	}
}

func TestPollConfigDefaults(t *testing.T) {
	poll := Config{}.PollConfig()
	if poll.JoinedInterval != 5*time.Second {
		t.Fatalf("expected default joined interval, got %v", poll.JoinedInterval)
	}
	if poll.UnjoinedInterval != 30*time.Second {
		t.Fatalf("expected default unjoined interval, got %v", poll.UnjoinedInterval)
	}
	if !poll.ManualRefresh {
		t.Fatal("expected manual refresh enabled by default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
