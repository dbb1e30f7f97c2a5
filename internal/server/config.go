package server

import (
	"strings"
	"time"

	"github.com/danmuck/echoctl/internal/protocol"
)

// Config holds the echo service runtime knobs.
type Config struct {
	// NodeID tags logs and metrics for this process.
	NodeID string
	// ListenAddr is the TCP bind address for the wire protocol.
	ListenAddr string
	// Backlog is kept for parity with reference deployment configs; Go's
	// listener leaves the accept queue depth to the kernel.
	Backlog int
	// ReadBufferSize bounds a single read handed to the engine.
	ReadBufferSize int
	// Sequential serves one connection to completion before accepting the
	// next, matching the reference scheduling model.
	Sequential bool
	// IdleTimeout arms read/write deadlines on each conn when positive.
	// Zero keeps the reference behavior of blocking indefinitely.
	IdleTimeout time.Duration
	// AdminListenAddr mounts the admin HTTP surface when non-empty.
	AdminListenAddr string
	// AdminToken gates the admin /stats endpoint when non-empty.
	AdminToken string
}

func DefaultConfig() Config {
	return Config{
		NodeID:          "echo.local",
		ListenAddr:      ":8080",
		Backlog:         10,
		ReadBufferSize:  protocol.DefaultBufferSize,
		Sequential:      false,
		IdleTimeout:     0,
		AdminListenAddr: "",
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = def.NodeID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Backlog <= 0 {
		c.Backlog = def.Backlog
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	return c
}
