package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/echoctl/internal/auth"
	"github.com/danmuck/echoctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Status is the live service snapshot exposed on /stats.
type Status struct {
	NodeID      string    `json:"node_id"`
	ListenAddr  string    `json:"listen_addr"`
	ActiveConns int64     `json:"active_conns"`
	ServedConns uint64    `json:"served_conns"`
	StartedAt   time.Time `json:"started_at"`
}

// StatusFunc supplies the snapshot; the echo server owns the counters.
type StatusFunc func() Status

// Server is the sidecar HTTP surface for health, readiness and metrics.
type Server struct {
	node   string
	status StatusFunc
	token  string
	router *gin.Engine
}

// Appear builds the admin router. A non-empty token gates /stats behind
// bearer auth; probe endpoints stay open.
func Appear(node string, status StatusFunc, corsOrigins []string, token string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		node:   node,
		status: status,
		token:  token,
		router: r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		st := s.snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(st.StartedAt).String(),
			"node":    s.node,
			"version": "0.0.1",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.snapshot()
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(st.StartedAt).String(),
			"node":    s.node,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	stats := s.router.Group("/")
	if s.token != "" {
		stats.Use(auth.GinMiddleware(auth.StaticToken{Token: s.token}))
	}
	stats.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.snapshot())
	})
}

// Serve blocks until ctx cancellation or a listener failure.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) snapshot() Status {
	if s.status == nil {
		return Status{NodeID: s.node}
	}
	return s.status()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
