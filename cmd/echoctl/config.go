package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/echoctl/internal/server"
)

type fileConfig struct {
	NodeID         string `toml:"node_id"`
	Addr           string `toml:"addr"`
	Backlog        int    `toml:"backlog"`
	ReadBufferSize int    `toml:"read_buffer_size"`
	Sequential     bool   `toml:"sequential"`
	IdleTimeout    string `toml:"idle_timeout"`
	AdminAddr      string `toml:"admin_addr"`
	AdminToken     string `toml:"admin_token"`
}

// loadServiceConfig overlays only the keys present in the file onto the
// compiled-in defaults.
func loadServiceConfig(path string) (server.Config, error) {
	cfg := server.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load echoctl config: %w", err)
	}

	if meta.IsDefined("node_id") {
		if id := strings.TrimSpace(raw.NodeID); id != "" {
			cfg.NodeID = id
		}
	}

	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.ListenAddr = addr
		}
	}

	if meta.IsDefined("backlog") {
		if raw.Backlog <= 0 {
			return server.Config{}, fmt.Errorf("backlog must be positive")
		}
		cfg.Backlog = raw.Backlog
	}

	if meta.IsDefined("read_buffer_size") {
		if raw.ReadBufferSize <= 0 {
			return server.Config{}, fmt.Errorf("read_buffer_size must be positive")
		}
		cfg.ReadBufferSize = raw.ReadBufferSize
	}

	if meta.IsDefined("sequential") {
		cfg.Sequential = raw.Sequential
	}

	if meta.IsDefined("idle_timeout") {
		if v := strings.TrimSpace(raw.IdleTimeout); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return server.Config{}, fmt.Errorf("parse idle_timeout: %w", err)
			}
			if d < 0 {
				return server.Config{}, fmt.Errorf("idle_timeout must not be negative")
			}
			cfg.IdleTimeout = d
		}
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	return cfg, nil
}
