package server

import (
	"context"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/danmuck/echoctl/internal/client"
	"github.com/danmuck/echoctl/internal/testutil/testlog"
)

func startService(t *testing.T, cfg Config) (*Service, string, context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	svc := NewServiceWithConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve exit err: %v", err)
		}
	})
	return svc, ln.Addr().String(), cancel
}

func dialRaw(t *testing.T, addr string) *net.TCPConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		t.Fatalf("expected tcp conn, got %T", conn)
	}
	_ = tcp.SetDeadline(time.Now().Add(5 * time.Second))
	return tcp
}

func readExact(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read %d bytes: %v", n, err)
	}
	return buf
}

func TestServiceWireScenario(t *testing.T) {
	testlog.Start(t)

	_, addr, _ := startService(t, DefaultConfig())
	conn := dialRaw(t, addr)
	defer conn.Close()

	if got := readExact(t, conn, 1); got[0] != '*' {
		t.Fatalf("missing greeting, got %q", got)
	}
	if _, err := conn.Write([]byte("hello^abc$world^xy$")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readExact(t, conn, 5); string(got) != "bcdyz" {
		t.Fatalf("unexpected echo: %q", got)
	}

	// half-close: server sees clean EOF and closes its side
	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected server close after EOF, got %v", err)
	}
}

func TestServiceSequentialScheduling(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.Sequential = true
	svc, addr, _ := startService(t, cfg)

	// one connection fully served before the next is accepted
	for i := 0; i < 3; i++ {
		conn := dialRaw(t, addr)
		if got := readExact(t, conn, 1); got[0] != '*' {
			t.Fatalf("missing greeting on conn %d", i)
		}
		if _, err := conn.Write([]byte("^hi$")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := readExact(t, conn, 2); string(got) != "ij" {
			t.Fatalf("unexpected echo: %q", got)
		}
		_ = conn.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.Status().ServedConns < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("served counter stuck at %d", svc.Status().ServedConns)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServiceConcurrentConnections(t *testing.T) {
	testlog.Start(t)

	_, addr, _ := startService(t, DefaultConfig())

	a := dialRaw(t, addr)
	defer a.Close()
	b := dialRaw(t, addr)
	defer b.Close()

	if got := readExact(t, a, 1); got[0] != '*' {
		t.Fatalf("conn a greeting: %q", got)
	}
	if got := readExact(t, b, 1); got[0] != '*' {
		t.Fatalf("conn b greeting: %q", got)
	}

	// interleave messages across both live connections
	if _, err := a.Write([]byte("^a$")); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if _, err := b.Write([]byte("^z$")); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if got := readExact(t, a, 1); got[0] != 'b' {
		t.Fatalf("conn a echo: %q", got)
	}
	if got := readExact(t, b, 1); got[0] != '{' {
		t.Fatalf("conn b echo: %q", got)
	}
}

func TestServiceClientPackageRoundTrip(t *testing.T) {
	testlog.Start(t)

	_, addr, _ := startService(t, DefaultConfig())

	ccfg := client.DefaultConfig()
	ccfg.Address = addr
	c, err := client.New(ccfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	reply, err := c.SendString("hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "ifmmp" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestServiceShutdownClosesLiveConns(t *testing.T) {
	testlog.Start(t)

	_, addr, cancel := startService(t, DefaultConfig())
	conn := dialRaw(t, addr)
	defer conn.Close()
	if got := readExact(t, conn, 1); got[0] != '*' {
		t.Fatalf("missing greeting, got %q", got)
	}

	cancel()

	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected conn close on shutdown")
	}
}

func TestServiceIdleTimeoutClosesHungPeer(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	_, addr, _ := startService(t, cfg)

	conn := dialRaw(t, addr)
	defer conn.Close()
	if got := readExact(t, conn, 1); got[0] != '*' {
		t.Fatalf("missing greeting, got %q", got)
	}

	// stay silent past the idle timeout; server should give up on us
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected close after idle timeout")
	}
}

func TestServeReleasesWatcherOnListenerClose(t *testing.T) {
	testlog.Start(t)

	before := runtime.NumGoroutine()

	// Serve ending without ctx cancellation must not strand its watcher
	for i := 0; i < 5; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		svc := NewServiceWithConfig(DefaultConfig())
		done := make(chan error, 1)
		go func() {
			done <- svc.Serve(context.Background(), ln)
		}()
		_ = ln.Close()
		if err := <-done; err != nil {
			t.Fatalf("serve exit err: %v", err)
		}
	}

	// a stranded watcher per iteration would leave 5 extra goroutines
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before+2 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines leaked: before=%d now=%d", before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)

	cfg := Config{IdleTimeout: -time.Second}.WithDefaults()
	def := DefaultConfig()
	if cfg.NodeID != def.NodeID || cfg.ListenAddr != def.ListenAddr {
		t.Fatalf("identity defaults not applied: %+v", cfg)
	}
	if cfg.Backlog != 10 || cfg.ReadBufferSize != 1024 {
		t.Fatalf("reference defaults not applied: %+v", cfg)
	}
	if cfg.IdleTimeout != 0 {
		t.Fatalf("negative idle timeout not cleared: %v", cfg.IdleTimeout)
	}
}

func TestServiceStatusSnapshot(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.NodeID = "echo.test"
	svc := NewServiceWithConfig(cfg)
	st := svc.Status()
	if st.NodeID != "echo.test" {
		t.Fatalf("node id: %q", st.NodeID)
	}
	if st.ActiveConns != 0 || st.ServedConns != 0 {
		t.Fatalf("fresh service counters: %+v", st)
	}
	if st.StartedAt.IsZero() {
		t.Fatalf("started_at unset")
	}
}
