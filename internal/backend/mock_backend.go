package backend

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

var _ Backend = (*MockBackend)(nil) // Ensure MockBackend implements Backend interface

type MockBackend struct {
	mock.Mock

	codesMu sync.Mutex
	codes   map[Operation]ErrorCode
}

func (m *MockBackend) Put(ctx context.Context, sourcePath, remoteName string) error {
	args := m.Called(ctx, sourcePath, remoteName)
	return args.Error(0)
}

func (m *MockBackend) Get(ctx context.Context, remoteName, localPath string) error {
	args := m.Called(ctx, remoteName, localPath)
	return args.Error(0)
}

func (m *MockBackend) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, remoteName string) error {
	args := m.Called(ctx, remoteName)
	return args.Error(0)
}

func (m *MockBackend) Query(ctx context.Context, remoteName string) (*FileInfo, error) {
	args := m.Called(ctx, remoteName)
	info, _ := args.Get(0).(*FileInfo)
	return info, args.Error(1)
}

// SetErrorCode makes ErrorCode classify every failure of op as code
func (m *MockBackend) SetErrorCode(op Operation, code ErrorCode) {
	m.codesMu.Lock()
	defer m.codesMu.Unlock()
	if m.codes == nil {
		m.codes = make(map[Operation]ErrorCode)
	}
	m.codes[op] = code
}

// ErrorCode returns the code set for op, zero otherwise
func (m *MockBackend) ErrorCode(op Operation, err error) ErrorCode {
	m.codesMu.Lock()
	defer m.codesMu.Unlock()
	return m.codes[op]
}
