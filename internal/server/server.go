package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/echoctl/internal/admin"
	"github.com/danmuck/echoctl/internal/observability"
	"github.com/danmuck/echoctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Service accepts connections and serves each with one protocol engine.
type Service struct {
	cfg Config

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	activeClients atomic.Int64
	servedTotal   atomic.Uint64
	startedAt     time.Time
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultConfig())
}

func NewServiceWithConfig(cfg Config) *Service {
	return &Service{
		cfg:       cfg.WithDefaults(),
		conns:     make(map[net.Conn]struct{}),
		startedAt: time.Now(),
	}
}

func (s *Service) Config() Config {
	return s.cfg
}

// Status snapshots the live counters for the admin surface.
func (s *Service) Status() admin.Status {
	return admin.Status{
		NodeID:      s.cfg.NodeID,
		ListenAddr:  s.cfg.ListenAddr,
		ActiveConns: s.activeClients.Load(),
		ServedConns: s.servedTotal.Load(),
		StartedAt:   s.startedAt,
	}
}

// Run blocks until signal-driven shutdown or a listener failure.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := s.listen()
	if err != nil {
		return err
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Bool("sequential", s.cfg.Sequential).
		Msg("echoctl waiting for connections")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		adm := admin.Appear(s.cfg.NodeID, s.Status, nil, s.cfg.AdminToken)
		go func() {
			adminErr <- adm.Serve(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

func (s *Service) listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.ListenAddr)
}

// Serve is the accept loop on an existing listener. Accept failures are
// logged and skipped; only ctx cancellation or listener close ends the
// loop. Connection-level failures never propagate here.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("cannot accept connection")
			continue
		}
		s.trackConn(conn)
		if s.cfg.Sequential {
			s.handleConn(conn)
		} else {
			go s.handleConn(conn)
		}
	}
}

// handleConn serves one connection to completion and closes it. The
// engine never closes the conn itself; ownership stays here.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	active := s.activeClients.Add(1)
	observability.ConnOpen()
	log.Info().
		Str("remote", remote).
		Int64("active_clients", active).
		Msg("got new connection")

	start := time.Now()
	engine, err := protocol.NewEngineWithBuffer(s.cfg.ReadBufferSize)
	if err != nil {
		// WithDefaults guarantees a positive buffer; treat as a config bug
		s.finishConn(remote, start, nil, err)
		return
	}

	var rw io.ReadWriter = conn
	if s.cfg.IdleTimeout > 0 {
		rw = &deadlineConn{Conn: conn, timeout: s.cfg.IdleTimeout}
	}
	s.finishConn(remote, start, engine, engine.Run(rw))
}

func (s *Service) finishConn(remote string, start time.Time, engine *protocol.Engine, runErr error) {
	outcome := "ok"
	switch {
	case runErr == nil:
	case errors.Is(runErr, protocol.ErrReadFailed):
		outcome = "read_error"
	case errors.Is(runErr, protocol.ErrWriteFailed):
		outcome = "write_error"
	default:
		outcome = "error"
	}

	if engine != nil {
		st := engine.Stats()
		observability.RecordWire(s.cfg.NodeID, st.BytesRead, st.BytesEchoed, st.MessagesOpened, st.MessagesClosed)
	}
	remaining := s.activeClients.Add(-1)
	s.servedTotal.Add(1)
	observability.ConnClosed(s.cfg.NodeID, outcome, time.Since(start))

	if runErr != nil {
		log.Error().
			Err(runErr).
			Str("remote", remote).
			Int64("active_clients", remaining).
			Msg("connection failed")
		return
	}
	log.Info().
		Str("remote", remote).
		Int64("active_clients", remaining).
		Msg("connection done")
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
