package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.Listen != ":4000" || cfg.Relay.Route != "/send" || cfg.Relay.RemoteAddr != "127.0.0.1:8080" {
		t.Fatalf("relay defaults: %+v", cfg.Relay)
	}
	if cfg.Relay.MaxPayload != 50<<20 {
		t.Fatalf("max_payload = %d", cfg.Relay.MaxPayload)
	}
	if cfg.Relay.DialTimeout != 5*time.Second {
		t.Fatalf("dial_timeout = %v", cfg.Relay.DialTimeout)
	}
	if len(cfg.Relay.AllowOrigins) != 1 || cfg.Relay.AllowOrigins[0] != "*" {
		t.Fatalf("allow_origins = %v", cfg.Relay.AllowOrigins)
	}
}

func TestFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ofs.yaml")
	content := "relay:\n  remote_addr: 10.0.0.5:9000\n  response_timeout: 2s\njournal:\n  path: /tmp/j.db\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OFS_RELAY_LISTEN", ":5000")

	cfg, err := Load(New(), file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.RemoteAddr != "10.0.0.5:9000" || cfg.Relay.ResponseTimeout != 2*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Relay)
	}
	if cfg.Relay.Listen != ":5000" {
		t.Fatalf("env override not applied: %q", cfg.Relay.Listen)
	}
	if cfg.Journal.Path != "/tmp/j.db" {
		t.Fatalf("journal.path = %q", cfg.Journal.Path)
	}
}

func TestExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	v := New()
	v.Set("relay.remote_addr", "no-port")
	t.Chdir(t.TempDir())
	if _, err := Load(v, ""); err == nil {
		t.Fatal("expected validation error")
	}
}
