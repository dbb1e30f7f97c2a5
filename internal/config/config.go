package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ServiceConfig is the on-disk TOML shape for the echoctl server.
type ServiceConfig struct {
	NodeID         string `toml:"node_id"`
	Addr           string `toml:"addr"`
	Backlog        int    `toml:"backlog"`
	ReadBufferSize int    `toml:"read_buffer_size"`
	Sequential     bool   `toml:"sequential"`
	IdleTimeout    string `toml:"idle_timeout"`
	AdminAddr      string `toml:"admin_addr"`
	AdminToken     string `toml:"admin_token"`
}

func LoadServiceConfig(path string) (ServiceConfig, error) {
	var cfg ServiceConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "echo.local"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if err := ValidateServiceConfig(cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServiceConfig(cfg ServiceConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("service config missing node_id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("service config missing addr")
	}
	if cfg.Backlog < 0 {
		return fmt.Errorf("service config backlog must not be negative")
	}
	if cfg.ReadBufferSize < 0 {
		return fmt.Errorf("service config read_buffer_size must not be negative")
	}
	if raw := strings.TrimSpace(cfg.IdleTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("service config idle_timeout invalid: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("service config idle_timeout must not be negative")
		}
	}
	return nil
}

// ParseIdleTimeout resolves the optional idle_timeout field; empty means
// no deadline.
func ParseIdleTimeout(cfg ServiceConfig) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.IdleTimeout)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
