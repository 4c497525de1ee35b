package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ StoreClient = (*MockStoreClient)(nil)

type MockStoreClient struct {
	mock.Mock
}

func (m *MockStoreClient) Upload(ctx context.Context, container string, objects []UploadObject) ([]Result, error) {
	args := m.Called(ctx, container, objects)
	results, _ := args.Get(0).([]Result)
	return results, args.Error(1)
}

func (m *MockStoreClient) Download(ctx context.Context, container string, objects []DownloadObject) ([]Result, error) {
	args := m.Called(ctx, container, objects)
	results, _ := args.Get(0).([]Result)
	return results, args.Error(1)
}

func (m *MockStoreClient) List(ctx context.Context, container string, opts ListOptions) ([]ListPage, error) {
	args := m.Called(ctx, container, opts)
	pages, _ := args.Get(0).([]ListPage)
	return pages, args.Error(1)
}

func (m *MockStoreClient) Delete(ctx context.Context, container string, objects []string) ([]Result, error) {
	args := m.Called(ctx, container, objects)
	results, _ := args.Get(0).([]Result)
	return results, args.Error(1)
}

func (m *MockStoreClient) Stat(ctx context.Context, container string, objects []string) ([]Result, error) {
	args := m.Called(ctx, container, objects)
	results, _ := args.Get(0).([]Result)
	return results, args.Error(1)
}
