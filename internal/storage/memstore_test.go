package storage

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// memStore is an in-memory StoreClient shared by several backends in tests
type memStore struct {
	mu         sync.Mutex
	containers map[string]map[string][]byte
	pageSize   int
}

func newMemStore() *memStore {
	return &memStore{containers: make(map[string]map[string][]byte), pageSize: 2}
}

func (m *memStore) Upload(ctx context.Context, container string, objects []UploadObject) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := []Result{{Action: ActionCreateContainer, Container: container, Success: true}}
	if m.containers[container] == nil {
		m.containers[container] = make(map[string][]byte)
	}
	for _, obj := range objects {
		r := Result{Action: ActionUploadObject, Container: container, Object: obj.ObjectName, Path: obj.Source}
		data, err := os.ReadFile(obj.Source)
		if err != nil {
			r.Err = err
		} else {
			m.containers[container][obj.ObjectName] = data
			r.Success = true
			r.Bytes = int64(len(data))
		}
		results = append(results, r)
	}
	return results, nil
}

func (m *memStore) Download(ctx context.Context, container string, objects []DownloadObject) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, obj := range objects {
		r := Result{Action: ActionDownloadObject, Container: container, Object: obj.ObjectName, Path: obj.OutFile}
		data, ok := m.containers[container][obj.ObjectName]
		if !ok {
			r.Err = ErrNotFound
		} else if err := os.WriteFile(obj.OutFile, data, 0600); err != nil {
			r.Err = err
		} else {
			r.Success = true
			r.Bytes = int64(len(data))
		}
		results = append(results, r)
	}
	return results, nil
}

func (m *memStore) List(ctx context.Context, container string, opts ListOptions) ([]ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.containers[container]
	if !ok {
		return []ListPage{{Err: ErrNotFound}}, nil
	}

	var names []string
	for name := range objects {
		if strings.HasPrefix(name, opts.Prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var pages []ListPage
	for len(names) > 0 || len(pages) == 0 {
		n := m.pageSize
		if n > len(names) {
			n = len(names)
		}
		page := ListPage{Success: true}
		for _, name := range names[:n] {
			page.Objects = append(page.Objects, ObjectInfo{Name: name, Size: int64(len(objects[name]))})
		}
		pages = append(pages, page)
		names = names[n:]
	}
	return pages, nil
}

func (m *memStore) Delete(ctx context.Context, container string, objects []string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, name := range objects {
		r := Result{Action: ActionDeleteObject, Container: container, Object: name}
		if _, ok := m.containers[container][name]; !ok {
			r.Err = ErrNotFound
		} else {
			delete(m.containers[container], name)
			r.Success = true
		}
		results = append(results, r)
	}
	return results, nil
}

func (m *memStore) Stat(ctx context.Context, container string, objects []string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, name := range objects {
		r := Result{Action: ActionStatObject, Container: container, Object: name}
		data, ok := m.containers[container][name]
		if !ok {
			r.Err = ErrNotFound
		} else {
			r.Success = true
			r.Headers = map[string]string{"content-length": strconv.Itoa(len(data))}
		}
		results = append(results, r)
	}
	return results, nil
}
