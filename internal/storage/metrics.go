package storage

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes recorded in swift_backend_operations_total
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeAbsent  = "absent"
)

type Metrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	warnings        prometheus.Counter
	bytesUploaded   prometheus.Counter
	bytesDownloaded prometheus.Counter
	sessionAttempts *prometheus.CounterVec
}

// NewMetrics creates the backend metrics and registers them with reg.
// Collectors already registered by an earlier backend are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{}
	m.operations = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swift_backend_operations_total",
		Help: "Total number of Swift backend operations by outcome",
	}, []string{"operation", "outcome"}))
	m.duration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swift_backend_operation_duration_seconds",
		Help:    "Duration of Swift backend operations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"operation"}))
	m.warnings = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swift_backend_warnings_total",
		Help: "Total number of non-fatal Swift backend failures",
	}))
	m.bytesUploaded = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swift_backend_bytes_uploaded_total",
		Help: "Total bytes uploaded to Swift",
	}))
	m.bytesDownloaded = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swift_backend_bytes_downloaded_total",
		Help: "Total bytes downloaded from Swift",
	}))
	m.sessionAttempts = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swift_backend_session_attempts_total",
		Help: "Total number of Swift session establishment attempts by outcome",
	}, []string{"outcome"}))

	return m
}

func (m *Metrics) observe(op string, start time.Time, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
