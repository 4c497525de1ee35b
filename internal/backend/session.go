package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Coder is implemented by errors that carry their own classification
type Coder interface {
	Code() ErrorCode
}

// FatalError is what a Session returns when an operation cannot complete.
// Whether it aborts the whole run is up to the caller.
type FatalError struct {
	Op      Operation
	Code    ErrorCode
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Code, e.Message)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a fatal error classified as not found
func IsNotFound(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe) && fe.Code == CodeNotFound
}

// Session is the pipeline-facing wrapper around a Backend. Every failure
// goes through fatal, which logs once and classifies the error.
type Session struct {
	backend Backend
	logger  *zap.Logger
}

func NewSession(b Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{backend: b, logger: logger}
}

// OpenSession opens target through the registry and wraps it
func OpenSession(ctx context.Context, cfg *config.Config, target string, logger *zap.Logger, reg prometheus.Registerer) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b, err := Open(ctx, cfg, target, logger, reg)
	if err != nil {
		s := &Session{logger: logger}
		return nil, s.fatal(OpOpen, "", err)
	}
	return NewSession(b, logger), nil
}

// Backend returns the wrapped backend
func (s *Session) Backend() Backend {
	return s.backend
}

func (s *Session) Put(ctx context.Context, sourcePath, remoteName string) error {
	if err := s.backend.Put(ctx, sourcePath, remoteName); err != nil {
		return s.fatal(OpPut, remoteName, err)
	}
	return nil
}

func (s *Session) Get(ctx context.Context, remoteName, localPath string) error {
	if err := s.backend.Get(ctx, remoteName, localPath); err != nil {
		return s.fatal(OpGet, remoteName, err)
	}
	return nil
}

func (s *Session) List(ctx context.Context) ([]string, error) {
	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, s.fatal(OpList, "", err)
	}
	return names, nil
}

func (s *Session) Delete(ctx context.Context, remoteName string) error {
	if err := s.backend.Delete(ctx, remoteName); err != nil {
		return s.fatal(OpDelete, remoteName, err)
	}
	return nil
}

// Query returns nil, nil when the object is absent.
func (s *Session) Query(ctx context.Context, remoteName string) (*FileInfo, error) {
	info, err := s.backend.Query(ctx, remoteName)
	if err != nil {
		return nil, s.fatal(OpQuery, remoteName, err)
	}
	return info, nil
}

// ErrorCode classifies err for op, asking the backend first
func (s *Session) ErrorCode(op Operation, err error) ErrorCode {
	if s.backend != nil {
		if code := s.backend.ErrorCode(op, err); code != 0 {
			return code
		}
	}
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return CodeGeneric
}

func (s *Session) fatal(op Operation, name string, err error) error {
	code := s.ErrorCode(op, err)

	s.logger.Error("Backend operation failed",
		zap.String("operation", string(op)),
		zap.String("name", name),
		zap.String("code", code.String()),
		zap.Error(err),
	)

	return &FatalError{
		Op:      op,
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}
