package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/ncw/swift/v2"
)

// ErrNotFound marks a missing object or container independently of the
// transport that reported it.
var ErrNotFound = errors.New("object not found")

// ConfigurationError reports a missing or unusable setting. It is raised
// before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s environment variable not set", e.Field)
}

func (e *ConfigurationError) Code() backend.ErrorCode { return backend.CodeConfiguration }

// ConnectionError reports a session that could not be established
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %T %v", e.Err, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Code() backend.ErrorCode { return backend.CodeConnectionFailed }

// UploadError reports a failed upload item
type UploadError struct {
	Container string
	Object    string
	Action    Action
	Err       error
}

func (e *UploadError) Error() string {
	if e.Action != "" && e.Action != ActionUploadObject {
		return fmt.Sprintf("upload of %s to container %s failed during %s: %v", e.Object, e.Container, e.Action, e.Err)
	}
	return fmt.Sprintf("failed to upload object %s to container %s: %v", e.Object, e.Container, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DownloadError reports a failed download
type DownloadError struct {
	Container   string
	Object      string
	Destination string
	Err         error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download object %s/%s to file %s: %v", e.Container, e.Object, e.Destination, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DeleteError reports a failed delete
type DeleteError struct {
	Container string
	Object    string
	Err       error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete object %s/%s: %v", e.Container, e.Object, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// ListError reports a listing that could not be made at all
type ListError struct {
	Container string
	Prefix    string
	Err       error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("failed to list container %s (prefix %q): %v", e.Container, e.Prefix, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404-class condition
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var se *swift.Error
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
