package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/echoctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingAddress = errors.New("client: address required")
	ErrNoGreeting     = errors.New("client: server greeting missing or malformed")
	ErrNotConnected   = errors.New("client: not connected")
	ErrInvalidPayload = errors.New("client: payload may not contain the end delimiter")
)

// Config holds dial and reliability knobs for one echo endpoint.
type Config struct {
	Address            string
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// Client speaks the framed-echo wire protocol against one server.
// Not safe for concurrent use; the protocol is strictly sequential.
type Client struct {
	cfg  Config
	rng  *rand.Rand
	conn net.Conn
	r    *bufio.Reader
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrMissingAddress
	}
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Connect dials with backoff and consumes the one-byte greeting. The
// connection is live for Send calls once Connect returns nil.
func (c *Client) Connect(ctx context.Context) error {
	var attempt int
	for {
		attempt++
		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn().
				Int("attempt", attempt).
				Str("addr", c.cfg.Address).
				Err(err).
				Msg("echo client dial failed")
			if !c.shouldRetry(attempt) {
				return err
			}
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		reader := bufio.NewReader(conn)
		if err := c.expectGreeting(conn, reader); err != nil {
			_ = conn.Close()
			// a malformed greeting is a protocol mismatch, not transient
			return err
		}
		c.conn = conn
		c.r = reader
		return nil
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	return dialer.DialContext(ctx, "tcp", c.cfg.Address)
}

func (c *Client) expectGreeting(conn net.Conn, reader *bufio.Reader) error {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return err
	}
	b, err := reader.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGreeting, err)
	}
	if b != protocol.Ready {
		return fmt.Errorf("%w: got 0x%02x", ErrNoGreeting, b)
	}
	return conn.SetReadDeadline(time.Time{})
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Send frames msg between the start and end delimiters and collects the
// transformed echo. Every payload byte comes back wrap-incremented, so
// the reply length equals the payload length. The payload may contain
// the start delimiter (plain data once a message is open) but not the
// end delimiter, which would truncate the frame on the wire.
func (c *Client) Send(msg []byte) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if bytes.IndexByte(msg, protocol.MsgEnd) >= 0 {
		return nil, ErrInvalidPayload
	}

	framed := make([]byte, 0, len(msg)+2)
	framed = append(framed, protocol.MsgStart)
	framed = append(framed, msg...)
	framed = append(framed, protocol.MsgEnd)

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(framed); err != nil {
		return nil, err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	reply := make([]byte, len(msg))
	if _, err := io.ReadFull(c.r, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Raw writes a pre-framed byte stream as-is, delimiters included. The
// caller owns framing and reading whatever echo the stream produces;
// mixing Raw with Send on one connection desynchronizes Send's reply
// accounting.
func (c *Client) Raw(data []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(data)
	return err
}

// SendString is Send for text payloads.
func (c *Client) SendString(msg string) (string, error) {
	reply, err := c.Send([]byte(msg))
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}
