package storage

import (
	"context"
)

// Action tags a single item of a batch operation
type Action string

const (
	ActionCreateContainer Action = "create_container"
	ActionUploadObject    Action = "upload_object"
	ActionDownloadObject  Action = "download_object"
	ActionDeleteObject    Action = "delete_object"
	ActionStatObject      Action = "stat_object"
)

// Result is the outcome of one item of a batch operation. Items are
// independent: a failed item never undoes a successful one.
type Result struct {
	Action    Action
	Container string
	Object    string
	Path      string
	Success   bool
	Err       error
	Bytes     int64
	Headers   map[string]string
}

// UploadObject pairs a local file with the object name it is stored under
type UploadObject struct {
	Source     string
	ObjectName string
}

// DownloadObject pairs an object name with the local file it is written to
type DownloadObject struct {
	ObjectName string
	OutFile    string
}

// ObjectInfo describes a listed object
type ObjectInfo struct {
	Name string
	Size int64
}

// ListOptions narrows a container listing
type ListOptions struct {
	Prefix   string
	PageSize int
}

// ListPage is one page of a container listing
type ListPage struct {
	Success bool
	Objects []ObjectInfo
	Err     error
}

// StoreClient is the batch-oriented object store service the backend
// delegates to. A returned error means the whole call could not be made;
// per-item failures are reported in the results.
type StoreClient interface {
	Upload(ctx context.Context, container string, objects []UploadObject) ([]Result, error)
	Download(ctx context.Context, container string, objects []DownloadObject) ([]Result, error)
	List(ctx context.Context, container string, opts ListOptions) ([]ListPage, error)
	Delete(ctx context.Context, container string, objects []string) ([]Result, error)
	Stat(ctx context.Context, container string, objects []string) ([]Result, error)
}
