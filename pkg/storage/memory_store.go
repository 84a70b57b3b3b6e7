package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-process ObjectStore used when no MinIO endpoint is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

// NewMemoryStore builds an in-memory object store. Presigned URLs are
// rendered against baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{objects: make(map[string]memoryObject), baseURL: baseURL}
}

// Put stores the object body.
func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size >= 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

// PresignGet returns a pseudo URL with an expiry query parameter.
func (m *MemoryStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("presign get: object %s not found", key)
	}
	q := url.Values{}
	q.Set("expires", time.Now().UTC().Add(expiry).Format(time.RFC3339))
	return m.baseURL + "/" + url.PathEscape(key) + "?" + q.Encode(), nil
}

// Delete removes an object. Missing objects are ignored.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
