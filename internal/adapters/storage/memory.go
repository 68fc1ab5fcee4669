package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// MemoryBlobs keeps objects in process. Used with the memory backend.
type MemoryBlobs struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ ports.BlobStorage = (*MemoryBlobs)(nil)

// NewMemoryBlobs creates an empty store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string][]byte)}
}

func key(bucket, path string) string { return bucket + "/" + path }

func (m *MemoryBlobs) Put(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(bucket, path)
	if _, exists := m.objects[k]; exists {
		return fmt.Errorf("object %s already exists", k)
	}
	m.objects[k] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobs) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key(bucket, path)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobs) Delete(ctx context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key(bucket, path))
	return nil
}

func (m *MemoryBlobs) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key(bucket, path)]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s/%s?expires=%d", url.PathEscape(bucket), path, expires), nil
}

// Len returns the number of stored objects.
func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
