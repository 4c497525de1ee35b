package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports a problem with a component, or nil when it is healthy
type HealthCheck func(ctx context.Context) error

// Collector owns the process registry and serves it over HTTP together
// with a health endpoint.
type Collector struct {
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	listener  net.Listener
	registry  *prometheus.Registry
	startTime time.Time

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewCollector(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry) (*Collector, error) {
	if cfg == nil {
		return nil, errors.New("metrics collector requires a configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
	}

	// Only register process collectors if not in test mode
	if cfg.Monitoring.MetricsPort != 0 {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "duply_swift_uptime_seconds",
		Help: "Process uptime in seconds",
	}, func() float64 {
		return time.Since(c.startTime).Seconds()
	}))

	return c, nil
}

// Registry is where backends and jobs register their collectors
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// AddHealthCheck registers a named check consulted by /health
func (c *Collector) AddHealthCheck(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Handler returns the HTTP handler serving /metrics and /health
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", c.handleHealth)
	return mux
}

// Start binds the metrics port and serves in the background. A port of 0
// picks a free port, see Addr.
func (c *Collector) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", c.config.Monitoring.MetricsPort))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port: %w", err)
	}

	c.mu.Lock()
	c.listener = listener
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server := c.server
	c.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	c.logger.Info("Metrics server started", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded
func (c *Collector) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if server != nil {
		// Gracefully shutdown the HTTP server
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
	}

	c.logger.Info("Metrics collector stopped")
	return nil
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := checks[name](r.Context()); err != nil {
			c.logger.Error("Health check failed", zap.String("component", name), zap.Error(err))
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	response := map[string]interface{}{
		"status":     "healthy",
		"components": components,
		"uptime":     time.Since(c.startTime).Seconds(),
		"timestamp":  time.Now().UTC(),
	}
	if status != http.StatusOK {
		response["status"] = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
