package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ncw/swift/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 1000
	contentType     = "application/octet-stream"
	userAgent       = "docker-duply-swift/1.0"
)

// SwiftService implements StoreClient on top of an ncw/swift connection.
// Authentication that fails with a client-level error at construction is
// retried before the next operation instead of failing the process.
type SwiftService struct {
	conn     *swift.Connection
	profile  Profile
	logger   *zap.Logger
	metrics  *Metrics
	retry    RetryPolicy
	pageSize int

	mu      sync.Mutex
	lastErr error
}

// ServiceOption tunes a SwiftService
type ServiceOption func(*SwiftService)

// WithRetryPolicy overrides the session retry policy
func WithRetryPolicy(p RetryPolicy) ServiceOption {
	return func(s *SwiftService) { s.retry = p }
}

// WithPageSize sets the listing page size
func WithPageSize(n int) ServiceOption {
	return func(s *SwiftService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewSwiftService builds the connection and tries to authenticate once.
// Client-level failures (HTTP status errors, network errors) are logged and
// deferred to the first operation; anything else is a *ConnectionError.
func NewSwiftService(ctx context.Context, profile Profile, logger *zap.Logger, metrics *Metrics, opts ...ServiceOption) (*SwiftService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	conn, err := newConnection(profile)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	s := &SwiftService{
		conn:     conn,
		profile:  profile,
		logger:   logger,
		metrics:  metrics,
		retry:    DefaultRetryPolicy(),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if profile.Preauthenticated() {
		return s, nil
	}

	if err := s.authenticate(ctx); err != nil {
		if !isClientError(err) {
			return nil, &ConnectionError{Err: err}
		}
		s.logger.Warn("Swift authentication failed, retrying on first use",
			zap.String("auth_url", profile.AuthURL),
			zap.Error(err),
		)
		s.lastErr = err
	}
	return s, nil
}

func newConnection(p Profile) (*swift.Connection, error) {
	conn := &swift.Connection{
		UserAgent: userAgent,
		Tenant:    p.TenantName,
		Region:    p.RegionName,
	}

	if p.Preauthenticated() {
		conn.StorageUrl = p.PreAuthURL
		conn.AuthToken = p.PreAuthToken
		return conn, nil
	}

	version, err := parseAuthVersion(p.AuthVersion)
	if err != nil {
		return nil, err
	}

	conn.UserName = p.Username
	conn.ApiKey = p.Password
	conn.AuthUrl = p.AuthURL
	conn.AuthVersion = version
	conn.Domain = p.UserDomainName
	conn.DomainId = p.UserDomainID
	conn.TenantDomain = p.ProjectDomainName
	conn.TenantDomainId = p.ProjectDomainID
	conn.TenantId = p.TenantID
	conn.UserId = p.UserID
	if p.EndpointType != "" {
		conn.EndpointType = swift.EndpointType(p.EndpointType)
	}
	return conn, nil
}

// parseAuthVersion accepts "1", "2", "3" and the "2.0" style spellings
func parseAuthVersion(v string) (int, error) {
	major, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n < 1 || n > 3 {
		return 0, fmt.Errorf("unsupported auth version %q", v)
	}
	return n, nil
}

// isClientError reports failures the Swift client itself raised while
// talking to the store, as opposed to local misconfiguration.
func isClientError(err error) bool {
	var se *swift.Error
	if errors.As(err, &se) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (s *SwiftService) authenticate(ctx context.Context) error {
	err := withRetry(ctx, s.retry, s.logger, func() error {
		return s.conn.Authenticate(ctx)
	})
	if err != nil {
		s.metrics.sessionAttempts.WithLabelValues(outcomeError).Inc()
		return err
	}
	s.metrics.sessionAttempts.WithLabelValues(outcomeSuccess).Inc()
	return nil
}

// ensureSession re-attempts authentication if the session is not usable
func (s *SwiftService) ensureSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn.Authenticated() {
		return nil
	}
	if s.lastErr != nil {
		s.logger.Info("Re-attempting deferred Swift authentication", zap.NamedError("previous", s.lastErr))
	}
	if err := s.authenticate(ctx); err != nil {
		s.lastErr = err
		return &ConnectionError{Err: err}
	}
	s.lastErr = nil
	return nil
}

func segmentContainer(container string) string {
	return container + "_segments"
}

func (s *SwiftService) Upload(ctx context.Context, container string, objects []UploadObject) ([]Result, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	results := []Result{s.createContainer(ctx, container)}
	segmentsReady := false

	for _, obj := range objects {
		info, err := os.Stat(obj.Source)
		if err != nil {
			results = append(results, Result{
				Action:    ActionUploadObject,
				Container: container,
				Object:    obj.ObjectName,
				Path:      obj.Source,
				Err:       err,
			})
			continue
		}

		if s.profile.UseSLO && info.Size() > s.profile.SegmentSize {
			if !segmentsReady {
				results = append(results, s.createContainer(ctx, segmentContainer(container)))
				segmentsReady = true
			}
			results = append(results, s.uploadLarge(ctx, container, obj, info.Size()))
			continue
		}
		results = append(results, s.uploadObject(ctx, container, obj, info.Size()))
	}
	return results, nil
}

func (s *SwiftService) createContainer(ctx context.Context, container string) Result {
	r := Result{Action: ActionCreateContainer, Container: container}
	if err := s.conn.ContainerCreate(ctx, container, nil); err != nil {
		r.Err = err
		return r
	}
	r.Success = true
	return r
}

func (s *SwiftService) uploadObject(ctx context.Context, container string, obj UploadObject, size int64) Result {
	r := Result{Action: ActionUploadObject, Container: container, Object: obj.ObjectName, Path: obj.Source}

	f, err := os.Open(obj.Source)
	if err != nil {
		r.Err = err
		return r
	}
	defer f.Close()

	if _, err := s.conn.ObjectPut(ctx, container, obj.ObjectName, f, true, "", contentType, nil); err != nil {
		r.Err = err
		return r
	}
	r.Success = true
	r.Bytes = size
	return r
}

// uploadLarge stores the file as a static large object: segments go to the
// segment container and a manifest is written under the object name.
func (s *SwiftService) uploadLarge(ctx context.Context, container string, obj UploadObject, size int64) Result {
	r := Result{Action: ActionUploadObject, Container: container, Object: obj.ObjectName, Path: obj.Source}

	f, err := os.Open(obj.Source)
	if err != nil {
		r.Err = err
		return r
	}
	defer f.Close()

	lo, err := s.conn.StaticLargeObjectCreateFile(ctx, &swift.LargeObjectOpts{
		Container:        container,
		ObjectName:       obj.ObjectName,
		Flags:            os.O_CREATE | os.O_TRUNC | os.O_WRONLY,
		ContentType:      contentType,
		ChunkSize:        s.profile.SegmentSize,
		SegmentContainer: segmentContainer(container),
		SegmentPrefix:    obj.ObjectName + "/slo",
	})
	if err != nil {
		r.Err = err
		return r
	}

	s.logger.Debug("Uploading segmented object",
		zap.String("container", container),
		zap.String("object", obj.ObjectName),
		zap.Int64("size_bytes", size),
		zap.Int64("segment_size", s.profile.SegmentSize),
	)

	if _, err := io.Copy(lo, f); err != nil {
		_ = lo.Close()
		r.Err = fmt.Errorf("writing segments: %w", err)
		return r
	}
	if err := lo.Close(); err != nil {
		r.Err = fmt.Errorf("writing manifest: %w", err)
		return r
	}
	r.Success = true
	r.Bytes = size
	return r
}

func (s *SwiftService) Download(ctx context.Context, container string, objects []DownloadObject) ([]Result, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(objects))
	for _, obj := range objects {
		results = append(results, s.downloadObject(ctx, container, obj))
	}
	return results, nil
}

func (s *SwiftService) downloadObject(ctx context.Context, container string, obj DownloadObject) Result {
	r := Result{Action: ActionDownloadObject, Container: container, Object: obj.ObjectName, Path: obj.OutFile}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(obj.OutFile), 0750); err != nil {
		r.Err = fmt.Errorf("failed to create output directory: %w", err)
		return r
	}

	f, err := os.Create(obj.OutFile)
	if err != nil {
		r.Err = fmt.Errorf("failed to create output file: %w", err)
		return r
	}

	_, err = s.conn.ObjectGet(ctx, container, obj.ObjectName, f, true, nil)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		r.Err = err
		return r
	}

	if info, err := os.Stat(obj.OutFile); err == nil {
		r.Bytes = info.Size()
	}
	r.Success = true
	return r
}

// List pages through the container. A failed page ends the listing since
// there is no marker to continue from.
func (s *SwiftService) List(ctx context.Context, container string, opts ListOptions) ([]ListPage, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = s.pageSize
	}

	var pages []ListPage
	query := &swift.ObjectsOpts{Prefix: opts.Prefix, Limit: pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		objects, err := s.conn.Objects(ctx, container, query)
		if err != nil {
			pages = append(pages, ListPage{Err: err})
			break
		}

		page := ListPage{Success: true, Objects: make([]ObjectInfo, 0, len(objects))}
		for _, o := range objects {
			page.Objects = append(page.Objects, ObjectInfo{Name: o.Name, Size: o.Bytes})
		}
		pages = append(pages, page)

		if len(objects) < pageSize {
			break
		}
		query.Marker = objects[len(objects)-1].Name
	}
	return pages, nil
}

func (s *SwiftService) Delete(ctx context.Context, container string, objects []string) ([]Result, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(objects))
	for _, name := range objects {
		r := Result{Action: ActionDeleteObject, Container: container, Object: name}
		if err := s.deleteObject(ctx, container, name); err != nil {
			r.Err = err
		} else {
			r.Success = true
		}
		results = append(results, r)
	}
	return results, nil
}

// deleteObject removes segments along with a large object's manifest
func (s *SwiftService) deleteObject(ctx context.Context, container, name string) error {
	_, headers, err := s.conn.Object(ctx, container, name)
	if err != nil {
		return err
	}
	if headers.IsLargeObject() {
		return s.conn.LargeObjectDelete(ctx, container, name)
	}
	return s.conn.ObjectDelete(ctx, container, name)
}

func (s *SwiftService) Stat(ctx context.Context, container string, objects []string) ([]Result, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(objects))
	for _, name := range objects {
		r := Result{Action: ActionStatObject, Container: container, Object: name}
		info, headers, err := s.conn.Object(ctx, container, name)
		if err != nil {
			r.Err = err
			results = append(results, r)
			continue
		}
		r.Success = true
		r.Bytes = info.Bytes
		r.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			r.Headers[strings.ToLower(k)] = v
		}
		results = append(results, r)
	}
	return results, nil
}
