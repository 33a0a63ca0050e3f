package storage

import (
	"context"
	"fmt"
)

// MockObjectStore is a configurable in-memory ObjectStore for tests.
// Objects maps key -> content; ETags maps key -> fingerprint.
type MockObjectStore struct {
	Objects map[string][]byte
	ETags   map[string]string

	// ListProductFilesFunc overrides the default listing when set.
	ListProductFilesFunc func(ctx context.Context, dateSuffix string) ([]FileRef, error)
	// FetchErr, when set, is returned by every Fetch call.
	FetchErr error

	FetchCalls int
}

var _ ObjectStore = (*MockObjectStore)(nil)

// ListProductFiles returns one ref per stored object, in map order, unless
// overridden.
func (m *MockObjectStore) ListProductFiles(ctx context.Context, dateSuffix string) ([]FileRef, error) {
	if m.ListProductFilesFunc != nil {
		return m.ListProductFilesFunc(ctx, dateSuffix)
	}
	var refs []FileRef
	for key := range m.Objects {
		refs = append(refs, FileRef{Key: key, ETag: m.ETags[key]})
	}
	return refs, nil
}

// Fetch implements ObjectStore.
func (m *MockObjectStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	m.FetchCalls++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	data, ok := m.Objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return data, nil
}

// Fingerprint implements ObjectStore.
func (m *MockObjectStore) Fingerprint(ctx context.Context, key string) (string, error) {
	etag, ok := m.ETags[key]
	if !ok {
		return "", fmt.Errorf("no such object: %s", key)
	}
	return etag, nil
}
