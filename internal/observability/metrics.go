package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "tcp",
			Name:      "connections_total",
			Help:      "Total accepted connections by outcome.",
		},
		[]string{"node", "outcome"},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "echoctl",
			Subsystem: "tcp",
			Name:      "connections_active",
			Help:      "Connections currently being served.",
		},
	)
	connectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "echoctl",
			Subsystem: "tcp",
			Name:      "connection_duration_seconds",
			Help:      "Time from accept to connection close.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "outcome"},
	)
	bytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "wire",
			Name:      "bytes_read_total",
			Help:      "Client bytes consumed by the protocol engine.",
		},
		[]string{"node"},
	)
	bytesEchoed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "wire",
			Name:      "bytes_echoed_total",
			Help:      "Transformed bytes written back to clients.",
		},
		[]string{"node"},
	)
	messagesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "wire",
			Name:      "messages_opened_total",
			Help:      "Messages opened by a start delimiter.",
		},
		[]string{"node"},
	)
	messagesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "wire",
			Name:      "messages_completed_total",
			Help:      "Messages closed by an end delimiter.",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "echoctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsTotal,
			connectionsActive,
			connectionDuration,
			bytesRead,
			bytesEchoed,
			messagesOpened,
			messagesCompleted,
			httpRequests,
			httpDuration,
		)
	})
}

// ConnOpen marks one accepted connection as live.
func ConnOpen() {
	RegisterMetrics()
	connectionsActive.Inc()
}

// ConnClosed records the terminal outcome of one served connection.
// Outcome is "ok", "read_error", or "write_error".
func ConnClosed(node, outcome string, duration time.Duration) {
	RegisterMetrics()
	connectionsActive.Dec()
	connectionsTotal.WithLabelValues(node, outcome).Inc()
	connectionDuration.WithLabelValues(node, outcome).Observe(duration.Seconds())
}

// RecordWire folds one connection's engine counters into the wire metrics.
func RecordWire(node string, read, echoed, opened, completed uint64) {
	RegisterMetrics()
	bytesRead.WithLabelValues(node).Add(float64(read))
	bytesEchoed.WithLabelValues(node).Add(float64(echoed))
	messagesOpened.WithLabelValues(node).Add(float64(opened))
	messagesCompleted.WithLabelValues(node).Add(float64(completed))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
