package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.HTTP.Addr != ":8090" {
		t.Errorf("http.addr = %q, want :8090", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage.driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Registry.MailboxSize != 2048 {
		t.Errorf("registry.mailbox_size = %d, want 2048", cfg.Registry.MailboxSize)
	}
	if cfg.Registry.SendTimeout != 500*time.Millisecond {
		t.Errorf("registry.send_timeout = %v, want 500ms", cfg.Registry.SendTimeout)
	}
	if cfg.Delivery.SweepCap != 500 {
		t.Errorf("delivery.sweep_cap = %d, want 500", cfg.Delivery.SweepCap)
	}
	if cfg.Log.LevelVar() == nil || cfg.Log.LevelVar().Level() != slog.LevelInfo {
		t.Error("default log level must be info")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
log:
  level: debug
http:
  addr: ":9999"
storage:
  driver: postgres
  dsn: "postgres://localhost/chat"
delivery:
  sweep_cap: 42
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("http.addr = %q, want :9999", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://localhost/chat" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Delivery.SweepCap != 42 {
		t.Errorf("delivery.sweep_cap = %d, want 42", cfg.Delivery.SweepCap)
	}
	if cfg.Log.LevelVar().Level() != slog.LevelDebug {
		t.Error("log level from file must be debug")
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("an explicitly requested config file must exist")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PDS_HTTP_ADDR", ":7070")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("http.addr = %q, want the env override :7070", cfg.HTTP.Addr)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
