package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrNoRun is reported by Check before the first scan has finished
var ErrNoRun = errors.New("no inventory scan has completed yet")

// Report summarises one scan of the backend
type Report struct {
	Objects  int
	Bytes    int64
	Skipped  int
	Started  time.Time
	Duration time.Duration
}

// Scanner periodically lists a backend and publishes how much it holds
type Scanner struct {
	config    *config.Config
	logger    *zap.Logger
	session   *backend.Session
	scheduler *cron.Cron
	timeout   time.Duration

	objects     prometheus.Gauge
	bytes       prometheus.Gauge
	lastSuccess prometheus.Gauge
	runs        *prometheus.CounterVec

	mu      sync.Mutex
	last    *Report
	lastErr error
}

func NewScanner(cfg *config.Config, logger *zap.Logger, session *backend.Session, reg prometheus.Registerer) (*Scanner, error) {
	if session == nil {
		return nil, errors.New("inventory scanner requires a backend session")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Scanner{
		config:  cfg,
		logger:  logger.With(zap.String("component", "inventory")),
		session: session,
		timeout: 30 * time.Minute,
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swift_inventory_objects",
			Help: "Number of objects found by the last successful inventory scan",
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swift_inventory_bytes",
			Help: "Total size of the objects found by the last successful inventory scan",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swift_inventory_last_success_timestamp_seconds",
			Help: "Unix time of the last successful inventory scan",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swift_inventory_runs_total",
			Help: "Total number of inventory scans by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{s.objects, s.bytes, s.lastSuccess, s.runs} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register inventory metrics: %w", err)
		}
	}

	cl := cronLogger{s.logger.Sugar()}
	s.scheduler = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return s, nil
}

type scanJob struct {
	scanner *Scanner
}

func (j scanJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.scanner.timeout)
	defer cancel()

	if _, err := j.scanner.RunOnce(ctx); err != nil {
		j.scanner.logger.Error("Inventory job failed", zap.Error(err))
	}
}

// ConfigureSchedule registers the scan job with the configured cron spec
// and starts the scheduler.
func (s *Scanner) ConfigureSchedule() error {
	schedule := s.config.Inventory.Schedule
	if _, err := s.scheduler.AddJob(schedule, scanJob{scanner: s}); err != nil {
		return fmt.Errorf("invalid inventory schedule %q: %w", schedule, err)
	}
	s.scheduler.Start()

	s.logger.Info("Inventory schedule configured", zap.String("schedule", schedule))
	return nil
}

// RunOnce lists the backend and stats every object. Objects that disappear
// between the listing and the stat are counted as skipped.
func (s *Scanner) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{Started: time.Now()}

	names, err := s.session.List(ctx)
	if err != nil {
		return nil, s.finish(report, fmt.Errorf("listing failed: %w", err))
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, s.finish(report, err)
		}

		info, err := s.session.Query(ctx, name)
		if err != nil {
			return nil, s.finish(report, fmt.Errorf("stat of %s failed: %w", name, err))
		}
		if info == nil {
			report.Skipped++
			continue
		}
		report.Objects++
		report.Bytes += info.Size
	}

	return report, s.finish(report, nil)
}

func (s *Scanner) finish(report *Report, err error) error {
	report.Duration = time.Since(report.Started)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		s.runs.WithLabelValues("error").Inc()
		return err
	}

	s.last = report
	s.lastErr = nil
	s.runs.WithLabelValues("success").Inc()
	s.objects.Set(float64(report.Objects))
	s.bytes.Set(float64(report.Bytes))
	s.lastSuccess.Set(float64(time.Now().Unix()))

	s.logger.Info("Inventory scan completed",
		zap.Int("objects", report.Objects),
		zap.Int64("size_bytes", report.Bytes),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
	return nil
}

// Last returns the report of the last successful scan, if any
func (s *Scanner) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Check is a health check: it fails when the latest scan failed or none
// has completed.
func (s *Scanner) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr != nil {
		return s.lastErr
	}
	if s.last == nil {
		return ErrNoRun
	}
	return nil
}

func (s *Scanner) Stop(ctx context.Context) error {
	// Stop the scheduler and wait for a running scan
	done := s.scheduler.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return fmt.Errorf("inventory scan still running: %w", ctx.Err())
	}

	s.logger.Info("Inventory scanner stopped")
	return nil
}

// cronLogger routes robfig/cron's logging through zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
