package backend

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options carries everything a Factory needs to build a backend
type Options struct {
	Config     *config.Config
	Target     *url.URL
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Factory builds a backend for a parsed target URL
type Factory func(ctx context.Context, opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under a URL scheme. It panics on a
// duplicate registration, as database/sql drivers do.
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := registry[scheme]; dup {
		panic("backend: Register called twice for scheme " + scheme)
	}
	registry[scheme] = factory
}

// Schemes returns the registered schemes, sorted
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schemes := make([]string, 0, len(registry))
	for s := range registry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open parses target and hands it to the factory registered for its scheme.
func Open(ctx context.Context, cfg *config.Config, target string, logger *zap.Logger, reg prometheus.Registerer) (Backend, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", target, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("backend URL %q has no scheme", target)
	}

	registryMu.RLock()
	factory, ok := registry[u.Scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported backend scheme %q (known: %v)", u.Scheme, Schemes())
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return factory(ctx, Options{
		Config:     cfg,
		Target:     u,
		Logger:     logger.With(zap.String("backend", u.Scheme)),
		Registerer: reg,
	})
}
