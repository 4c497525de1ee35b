package backend

import (
	"context"
)

// Operation names a backend call for error classification and logging
type Operation string

const (
	OpPut    Operation = "put"
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpDelete Operation = "delete"
	OpQuery  Operation = "query"
	OpOpen   Operation = "open"
)

// ErrorCode is the coarse classification handed back to the pipeline
type ErrorCode int

const (
	CodeGeneric ErrorCode = iota + 1
	CodeNotFound
	CodeConnectionFailed
	CodeConfiguration
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "backend_not_found"
	case CodeConnectionFailed:
		return "connection_failed"
	case CodeConfiguration:
		return "backend_configuration"
	default:
		return "backend_error"
	}
}

// FileInfo is the metadata returned by Query
type FileInfo struct {
	Size int64
}

// Backend is the contract every remote store implements. Names are always
// relative to the location the backend was opened on.
type Backend interface {
	Put(ctx context.Context, sourcePath, remoteName string) error
	Get(ctx context.Context, remoteName, localPath string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error

	// Query returns nil without error when the object does not exist.
	Query(ctx context.Context, remoteName string) (*FileInfo, error)

	// ErrorCode classifies an error returned by one of the operations.
	// Zero means the backend has no opinion.
	ErrorCode(op Operation, err error) ErrorCode
}
