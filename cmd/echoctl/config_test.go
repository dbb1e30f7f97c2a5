package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverrides(t *testing.T) {
	path := writeConfig(t, `node_id = "echo.edge"
addr = "127.0.0.1:7070"
backlog = 64
read_buffer_size = 2048
sequential = true
idle_timeout = "45s"
admin_addr = "127.0.0.1:9091"
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NodeID != "echo.edge" {
		t.Fatalf("unexpected node id: %q", cfg.NodeID)
	}
	if cfg.ListenAddr != "127.0.0.1:7070" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Backlog != 64 || cfg.ReadBufferSize != 2048 {
		t.Fatalf("unexpected tuning: %+v", cfg)
	}
	if !cfg.Sequential {
		t.Fatalf("expected sequential scheduling")
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Fatalf("unexpected idle timeout: %v", cfg.IdleTimeout)
	}
	if cfg.AdminListenAddr != "127.0.0.1:9091" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminListenAddr)
	}
}

func TestLoadServiceConfigKeepsDefaultsForAbsentKeys(t *testing.T) {
	cfg, err := loadServiceConfig(writeConfig(t, `node_id = "echo.partial"`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NodeID != "echo.partial" {
		t.Fatalf("override lost: %q", cfg.NodeID)
	}
	if cfg.ListenAddr != ":8080" || cfg.Backlog != 10 || cfg.ReadBufferSize != 1024 {
		t.Fatalf("defaults disturbed: %+v", cfg)
	}
	if cfg.Sequential || cfg.IdleTimeout != 0 || cfg.AdminListenAddr != "" {
		t.Fatalf("defaults disturbed: %+v", cfg)
	}
}

func TestLoadServiceConfigRejectsBadValues(t *testing.T) {
	cases := []string{
		`backlog = -1`,
		`read_buffer_size = 0`,
		`idle_timeout = "whenever"`,
		`idle_timeout = "-3s"`,
	}
	for _, body := range cases {
		if _, err := loadServiceConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("expected rejection for %q", body)
		}
	}
}
