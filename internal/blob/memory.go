package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailUploads makes every Upload return an error (for failure-path tests).
	FailUploads bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func key(container, path string) string { return container + "/" + path }

// Download returns a copy of the stored bytes.
func (s *MemoryStore) Download(_ context.Context, container, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key(container, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, path)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Upload stores a copy of data.
func (s *MemoryStore) Upload(_ context.Context, container, path string, data []byte, _ string) (Ref, error) {
	if s.FailUploads {
		return Ref{}, fmt.Errorf("upload %s/%s: simulated failure", container, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key(container, path)] = stored
	return Ref{Container: container, Path: path, SizeBytes: int64(len(data))}, nil
}

// Exists reports whether an object is stored (test helper).
func (s *MemoryStore) Exists(container, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key(container, path)]
	return ok
}

// Len returns the number of stored objects (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
