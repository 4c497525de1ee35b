package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/ncw/swift/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockBackend(t *testing.T, prefix string) (*SwiftBackend, *MockStoreClient, *Metrics) {
	t.Helper()
	client := new(MockStoreClient)
	metrics := NewMetrics(prometheus.NewRegistry())
	addr := Address{Container: "C", Prefix: prefix}
	return NewSwiftBackend(addr, client, zap.NewNop(), metrics), client, metrics
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestPutContainerFailureIsWarning(t *testing.T) {
	b, client, metrics := newMockBackend(t, "a/")
	ctx := context.Background()

	client.On("Upload", ctx, "C", []UploadObject{{Source: "/tmp/f", ObjectName: "a/f"}}).Return([]Result{
		{Action: ActionCreateContainer, Container: "C", Err: errors.New("403 Forbidden")},
		{Action: ActionUploadObject, Container: "C", Object: "a/f", Success: true, Bytes: 7},
	}, nil)

	err := b.Put(ctx, "/tmp/f", "f")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.warnings))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.bytesUploaded))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("put", outcomeSuccess)))
	client.AssertExpectations(t)
}

func TestPutObjectFailureIsFatal(t *testing.T) {
	b, client, metrics := newMockBackend(t, "a/")
	ctx := context.Background()
	cause := errors.New("disk quota exceeded")

	client.On("Upload", ctx, "C", mock.Anything).Return([]Result{
		{Action: ActionCreateContainer, Container: "C", Success: true},
		{Action: ActionUploadObject, Container: "C", Object: "a/f", Err: cause},
	}, nil)

	err := b.Put(ctx, "/tmp/f", "f")
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "C", upErr.Container)
	assert.Equal(t, "a/f", upErr.Object)
	assert.Equal(t, ActionUploadObject, upErr.Action)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to upload object a/f to container C: disk quota exceeded", err.Error())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.warnings))
}

func TestPutUnknownActionFailureIsFatal(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Upload", ctx, "C", mock.Anything).Return([]Result{
		{Action: Action("upload_manifest"), Container: "C", Err: errors.New("boom")},
	}, nil)

	err := b.Put(ctx, "/tmp/f", "f")
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, Action("upload_manifest"), upErr.Action)
	assert.Equal(t, "f", upErr.Object)
	assert.Contains(t, err.Error(), "upload_manifest")
}

func TestPutClientError(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()
	connErr := &ConnectionError{Err: swift.AuthorizationFailed}

	client.On("Upload", ctx, "C", mock.Anything).Return(nil, connErr)

	err := b.Put(ctx, "/tmp/f", "f")
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, backend.CodeConnectionFailed, b.ErrorCode(backend.OpPut, err))
}

func TestGetFailure(t *testing.T) {
	b, client, _ := newMockBackend(t, "p/")
	ctx := context.Background()

	client.On("Download", ctx, "C", []DownloadObject{{ObjectName: "p/x", OutFile: "/tmp/out"}}).Return([]Result{
		{Action: ActionDownloadObject, Container: "C", Object: "p/x", Path: "/tmp/out", Err: swift.ObjectNotFound},
	}, nil)

	err := b.Get(ctx, "x", "/tmp/out")
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "p/x", dlErr.Object)
	assert.Equal(t, "/tmp/out", dlErr.Destination)
	assert.Equal(t, backend.CodeNotFound, b.ErrorCode(backend.OpGet, err))
}

func TestGetSuccessCountsBytes(t *testing.T) {
	b, client, metrics := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Download", ctx, "C", mock.Anything).Return([]Result{
		{Action: ActionDownloadObject, Container: "C", Object: "x", Success: true, Bytes: 42},
	}, nil)

	require.NoError(t, b.Get(ctx, "x", "/tmp/out"))
	assert.Equal(t, float64(42), testutil.ToFloat64(metrics.bytesDownloaded))
}

func TestListOmitsFailedPages(t *testing.T) {
	b, client, _ := newMockBackend(t, "a/")
	ctx := context.Background()

	client.On("List", ctx, "C", ListOptions{Prefix: "a/"}).Return([]ListPage{
		{Success: true, Objects: []ObjectInfo{{Name: "a/1"}, {Name: "a/2"}}},
		{Err: errors.New("503 Service Unavailable")},
		{Success: true, Objects: []ObjectInfo{{Name: "a/3"}, {Name: "b/stray"}, {Name: "a/"}}},
	}, nil)

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, names)
}

func TestListEmpty(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("List", ctx, "C", ListOptions{}).Return([]ListPage{{Success: true}}, nil)

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestListClientError(t *testing.T) {
	b, client, _ := newMockBackend(t, "a/")
	ctx := context.Background()

	client.On("List", ctx, "C", mock.Anything).Return(nil, &ConnectionError{Err: errors.New("dial tcp: refused")})

	_, err := b.List(ctx)
	var listErr *ListError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, "a/", listErr.Prefix)
	assert.Equal(t, backend.CodeConnectionFailed, b.ErrorCode(backend.OpList, err))
}

func TestDeleteFailure(t *testing.T) {
	b, client, _ := newMockBackend(t, "a/")
	ctx := context.Background()

	client.On("Delete", ctx, "C", []string{"a/x"}).Return([]Result{
		{Action: ActionDeleteObject, Container: "C", Object: "a/x", Err: swift.ObjectNotFound},
	}, nil)

	err := b.Delete(ctx, "x")
	var delErr *DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, "a/x", delErr.Object)
	assert.Equal(t, "failed to delete object C/a/x: Object Not Found", err.Error())
	assert.Equal(t, backend.CodeNotFound, b.ErrorCode(backend.OpDelete, err))
}

func TestQueryAbsentReturnsNil(t *testing.T) {
	b, client, metrics := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Stat", ctx, "C", []string{"missing"}).Return([]Result{
		{Action: ActionStatObject, Container: "C", Object: "missing", Err: swift.ObjectNotFound},
	}, nil)

	info, err := b.Query(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("query", outcomeAbsent)))
}

func TestQueryReadsContentLength(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Stat", ctx, "C", []string{"x"}).Return([]Result{
		{Action: ActionStatObject, Container: "C", Object: "x", Success: true, Bytes: 1, Headers: map[string]string{"content-length": "1048576"}},
	}, nil)

	info, err := b.Query(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(1048576), info.Size)
}

func TestQueryFallsBackToBytes(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Stat", ctx, "C", []string{"x"}).Return([]Result{
		{Action: ActionStatObject, Container: "C", Object: "x", Success: true, Bytes: 12},
	}, nil)

	info, err := b.Query(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
}

func TestQueryInvalidContentLength(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Stat", ctx, "C", []string{"x"}).Return([]Result{
		{Action: ActionStatObject, Container: "C", Object: "x", Success: true, Headers: map[string]string{"content-length": "lots"}},
	}, nil)

	info, err := b.Query(ctx, "x")
	assert.Nil(t, info)
	assert.ErrorContains(t, err, `invalid content-length "lots"`)
}

func TestQueryClientError(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()

	client.On("Stat", ctx, "C", mock.Anything).Return(nil, &ConnectionError{Err: swift.AuthorizationFailed})

	info, err := b.Query(ctx, "x")
	assert.Nil(t, info)
	require.Error(t, err)
	assert.Equal(t, backend.CodeConnectionFailed, b.ErrorCode(backend.OpQuery, err))
}

func TestErrorCode(t *testing.T) {
	b, _, _ := newMockBackend(t, "")

	assert.Equal(t, backend.CodeNotFound, b.ErrorCode(backend.OpGet, ErrNotFound))
	assert.Equal(t, backend.CodeNotFound, b.ErrorCode(backend.OpGet, &DownloadError{Err: swift.ContainerNotFound}))
	assert.Equal(t, backend.CodeConfiguration, b.ErrorCode(backend.OpOpen, &ConfigurationError{Field: "SWIFT_USERNAME"}))
	assert.Equal(t, backend.ErrorCode(0), b.ErrorCode(backend.OpPut, errors.New("other")))
	assert.Equal(t, backend.ErrorCode(0), b.ErrorCode(backend.OpPut, &swift.Error{StatusCode: 500, Text: "boom"}))
}

func TestSessionClassifiesBackendErrors(t *testing.T) {
	b, client, _ := newMockBackend(t, "")
	ctx := context.Background()
	session := backend.NewSession(b, zap.NewNop())

	client.On("Delete", ctx, "C", []string{"x"}).Return([]Result{
		{Action: ActionDeleteObject, Container: "C", Object: "x", Err: swift.ObjectNotFound},
	}, nil)

	err := session.Delete(ctx, "x")
	var fatal *backend.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, backend.OpDelete, fatal.Op)
	assert.Equal(t, backend.CodeNotFound, fatal.Code)
	assert.True(t, backend.IsNotFound(err))
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewSwiftBackend(Address{Container: "C", Prefix: "host/"}, newMemStore(), nil, nil)
	contents := map[string]string{
		"duplicity-full.20240101T000000Z.vol1.difftar.gpg": "volume one",
		"duplicity-full.20240101T000000Z.manifest.gpg":     "manifest",
		"duplicity-full-signatures.20240101T000000Z.sigtar": "signatures",
	}

	for name, content := range contents {
		require.NoError(t, b.Put(ctx, writeTempFile(t, "src", content), name))
	}

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"duplicity-full.20240101T000000Z.vol1.difftar.gpg",
		"duplicity-full.20240101T000000Z.manifest.gpg",
		"duplicity-full-signatures.20240101T000000Z.sigtar",
	}, names)

	for name, content := range contents {
		out := filepath.Join(t.TempDir(), "restored")
		require.NoError(t, b.Get(ctx, name, out))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))

		info, err := b.Query(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, int64(len(content)), info.Size)
	}
}

func TestMemStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := NewSwiftBackend(Address{Container: "C", Prefix: "A/"}, store, nil, nil)
	other := NewSwiftBackend(Address{Container: "C", Prefix: "B/"}, store, nil, nil)

	require.NoError(t, a.Put(ctx, writeTempFile(t, "f", "from a"), "x"))
	require.NoError(t, other.Put(ctx, writeTempFile(t, "f", "from b"), "y"))

	names, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)

	names, err = other.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, names)

	info, err := other.Query(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestMemStoreDeleteThenQuery(t *testing.T) {
	ctx := context.Background()
	b := NewSwiftBackend(Address{Container: "C"}, newMemStore(), nil, nil)

	require.NoError(t, b.Put(ctx, writeTempFile(t, "f", "data"), "x"))
	require.NoError(t, b.Delete(ctx, "x"))

	info, err := b.Query(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, info)

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	err = b.Delete(ctx, "x")
	assert.Equal(t, backend.CodeNotFound, b.ErrorCode(backend.OpDelete, err))
}

func TestMemStoreListUnknownContainer(t *testing.T) {
	b := NewSwiftBackend(Address{Container: "nope"}, newMemStore(), nil, nil)

	names, err := b.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
