package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("wrong listen addr %q", cfg.ListenAddr)
	}
	if cfg.Regiojet.Timeout != 15*time.Second {
		t.Fatalf("wrong timeout %v", cfg.Regiojet.Timeout)
	}
	if cfg.Monitor.CheckInterval != 60*time.Second || cfg.Monitor.SweepInterval != 300*time.Second {
		t.Fatalf("wrong intervals: %+v", cfg.Monitor)
	}
	if cfg.Cache.LocationTTL != 24*time.Hour {
		t.Fatalf("wrong location ttl %v", cfg.Cache.LocationTTL)
	}
	if cfg.Notify.MaxAttempts != 3 || cfg.Notify.Timezone != "Europe/Prague" {
		t.Fatalf("wrong notify defaults: %+v", cfg.Notify)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(`
listen_addr: ":9090"
monitor:
  check_interval: 30s
smtp:
  host: smtp.example.com
  from: robot@example.com
`), 0o600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("yaml listen addr not applied: %q", cfg.ListenAddr)
	}
	if cfg.Monitor.CheckInterval != 30*time.Second {
		t.Fatalf("yaml interval not applied: %v", cfg.Monitor.CheckInterval)
	}
	if cfg.SMTP.Host != "smtp.example.com" {
		t.Fatalf("yaml smtp not applied: %+v", cfg.SMTP)
	}
	// untouched keys keep their defaults
	if cfg.Monitor.SweepInterval != 300*time.Second {
		t.Fatalf("default lost: %v", cfg.Monitor.SweepInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o600)

	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("CHECK_INTERVAL", "90")
	t.Setenv("REGIOJET_TIMEOUT", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("env must win over file, got %q", cfg.ListenAddr)
	}
	// bare seconds and Go durations are both accepted
	if cfg.Monitor.CheckInterval != 90*time.Second {
		t.Fatalf("bare-seconds duration not applied: %v", cfg.Monitor.CheckInterval)
	}
	if cfg.Regiojet.Timeout != 5*time.Second {
		t.Fatalf("duration string not applied: %v", cfg.Regiojet.Timeout)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
}
