package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var _ backend.Backend = (*SwiftBackend)(nil)

func init() {
	backend.Register("swift", openFromOptions)
}

// SwiftBackend exposes a Swift container/prefix as a flat remote file
// store. It is not meant to be called concurrently by the pipeline.
type SwiftBackend struct {
	addr    Address
	client  StoreClient
	logger  *zap.Logger
	metrics *Metrics
}

// NewSwiftBackend wires an address to a store client
func NewSwiftBackend(addr Address, client StoreClient, logger *zap.Logger, metrics *Metrics) *SwiftBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &SwiftBackend{
		addr:    addr,
		client:  client,
		logger:  logger.With(zap.String("container", addr.Container), zap.String("prefix", addr.Prefix)),
		metrics: metrics,
	}
}

// Open resolves the profile, parses the address and establishes the
// Swift session. Configuration problems are reported before any network
// call is made.
func Open(ctx context.Context, cfg config.SwiftConfig, path string, logger *zap.Logger, reg prometheus.Registerer) (*SwiftBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	profile, err := NewProfile(cfg)
	if err != nil {
		return nil, err
	}
	addr, err := ParseAddress(path)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(reg)
	service, err := NewSwiftService(ctx, profile, logger, metrics)
	if err != nil {
		logger.Error("Swift connection failed", zap.Error(err))
		return nil, err
	}

	logger.Info("Swift backend ready",
		zap.String("container", addr.Container),
		zap.String("prefix", addr.Prefix),
		zap.String("auth_version", profile.AuthVersion),
		zap.Bool("preauthenticated", profile.Preauthenticated()),
		zap.Int64("segment_size", profile.SegmentSize),
	)

	return NewSwiftBackend(addr, service, logger, metrics), nil
}

func openFromOptions(ctx context.Context, opts backend.Options) (backend.Backend, error) {
	var cfg config.SwiftConfig
	if opts.Config != nil {
		cfg = opts.Config.Swift
	}
	// swift://container/prefix carries the container in the host part
	path := opts.Target.Host + "/" + opts.Target.Path
	return Open(ctx, cfg, path, opts.Logger, opts.Registerer)
}

// Address returns the container and prefix the backend is scoped to
func (b *SwiftBackend) Address() Address {
	return b.addr
}

func (b *SwiftBackend) Put(ctx context.Context, sourcePath, remoteName string) error {
	start := time.Now()
	key := b.addr.Key(remoteName)

	results, err := b.client.Upload(ctx, b.addr.Container, []UploadObject{{Source: sourcePath, ObjectName: key}})
	if err != nil {
		b.metrics.observe("put", start, outcomeError)
		return &UploadError{Container: b.addr.Container, Object: key, Err: err}
	}

	var uploaded int64
	for _, r := range results {
		if r.Success {
			if r.Action == ActionUploadObject {
				uploaded += r.Bytes
			}
			continue
		}

		switch putPolicy.SeverityOf(r.Action) {
		case SeverityWarning:
			b.metrics.warnings.Inc()
			b.logger.Warn("Failed to create container",
				zap.String("target_container", r.Container),
				zap.String("action", string(r.Action)),
				zap.Error(r.Err),
			)
		default:
			b.metrics.observe("put", start, outcomeError)
			object := r.Object
			if object == "" {
				object = key
			}
			return &UploadError{Container: b.addr.Container, Object: object, Action: r.Action, Err: r.Err}
		}
	}

	b.metrics.bytesUploaded.Add(float64(uploaded))
	b.metrics.observe("put", start, outcomeSuccess)
	b.logger.Debug("Upload completed",
		zap.String("object", key),
		zap.Int64("size_bytes", uploaded),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (b *SwiftBackend) Get(ctx context.Context, remoteName, localPath string) error {
	start := time.Now()
	key := b.addr.Key(remoteName)

	results, err := b.client.Download(ctx, b.addr.Container, []DownloadObject{{ObjectName: key, OutFile: localPath}})
	if err != nil {
		b.metrics.observe("get", start, outcomeError)
		return &DownloadError{Container: b.addr.Container, Object: key, Destination: localPath, Err: err}
	}

	var downloaded int64
	for _, r := range results {
		if !r.Success {
			b.metrics.observe("get", start, outcomeError)
			return &DownloadError{Container: b.addr.Container, Object: r.Object, Destination: localPath, Err: r.Err}
		}
		downloaded += r.Bytes
	}

	b.metrics.bytesDownloaded.Add(float64(downloaded))
	b.metrics.observe("get", start, outcomeSuccess)
	b.logger.Debug("Download completed",
		zap.String("object", key),
		zap.String("destination", localPath),
		zap.Int64("size_bytes", downloaded),
	)
	return nil
}

// List returns the names under the prefix, relative to it. Pages the store
// failed to return are skipped.
func (b *SwiftBackend) List(ctx context.Context) ([]string, error) {
	start := time.Now()

	pages, err := b.client.List(ctx, b.addr.Container, ListOptions{Prefix: b.addr.Prefix})
	if err != nil {
		b.metrics.observe("list", start, outcomeError)
		return nil, &ListError{Container: b.addr.Container, Prefix: b.addr.Prefix, Err: err}
	}

	names := make([]string, 0)
	for i, page := range pages {
		if !page.Success {
			b.logger.Debug("Skipping failed listing page", zap.Int("page", i), zap.Error(page.Err))
			continue
		}
		for _, obj := range page.Objects {
			if name, ok := b.addr.Relative(obj.Name); ok {
				names = append(names, name)
			}
		}
	}

	b.metrics.observe("list", start, outcomeSuccess)
	return names, nil
}

func (b *SwiftBackend) Delete(ctx context.Context, remoteName string) error {
	start := time.Now()
	key := b.addr.Key(remoteName)

	results, err := b.client.Delete(ctx, b.addr.Container, []string{key})
	if err != nil {
		b.metrics.observe("delete", start, outcomeError)
		return &DeleteError{Container: b.addr.Container, Object: key, Err: err}
	}

	for _, r := range results {
		if !r.Success {
			b.metrics.observe("delete", start, outcomeError)
			return &DeleteError{Container: b.addr.Container, Object: r.Object, Err: r.Err}
		}
	}

	b.metrics.observe("delete", start, outcomeSuccess)
	return nil
}

// Query returns the object's size, or nil when the store cannot stat it.
// Only a failure to reach the store at all is returned as an error.
func (b *SwiftBackend) Query(ctx context.Context, remoteName string) (*backend.FileInfo, error) {
	start := time.Now()
	key := b.addr.Key(remoteName)

	results, err := b.client.Stat(ctx, b.addr.Container, []string{key})
	if err != nil {
		b.metrics.observe("query", start, outcomeError)
		return nil, fmt.Errorf("stat %s/%s: %w", b.addr.Container, key, err)
	}

	for _, r := range results {
		if !r.Success {
			continue
		}
		size, err := contentLength(r)
		if err != nil {
			b.metrics.observe("query", start, outcomeError)
			return nil, fmt.Errorf("stat %s/%s: %w", b.addr.Container, key, err)
		}
		b.metrics.observe("query", start, outcomeSuccess)
		return &backend.FileInfo{Size: size}, nil
	}

	for _, r := range results {
		b.logger.Debug("Object not available", zap.String("object", r.Object), zap.Error(r.Err))
	}
	b.metrics.observe("query", start, outcomeAbsent)
	return nil, nil
}

func contentLength(r Result) (int64, error) {
	v, ok := r.Headers["content-length"]
	if !ok {
		return r.Bytes, nil
	}
	size, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content-length %q: %w", v, err)
	}
	return size, nil
}

// ErrorCode classifies errors returned by the operations above
func (b *SwiftBackend) ErrorCode(op backend.Operation, err error) backend.ErrorCode {
	if IsNotFound(err) {
		return backend.CodeNotFound
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return backend.CodeConnectionFailed
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return backend.CodeConfiguration
	}
	return 0
}
