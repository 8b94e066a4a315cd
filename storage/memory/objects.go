// Package memory provides in-process storage implementations for tests and dry runs.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/poiesic/lectern/storage"
)

// ObjectStore is a map-backed storage.ObjectStore.
type ObjectStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	puts    int
}

var _ storage.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates an empty store whose references look like "mem://bucket/key".
func NewObjectStore(bucket string) *ObjectStore {
	return &ObjectStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Exists reports whether key is stored.
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Put stores the content of r under key.
func (s *ObjectStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	s.puts++
	return nil
}

// Get returns the object stored under key.
func (s *ObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Ref returns "mem://<bucket>/<key>".
func (s *ObjectStore) Ref(key string) string {
	return "mem://" + s.bucket + "/" + key
}

// Close is a no-op.
func (s *ObjectStore) Close() error {
	return nil
}

// Len returns the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// PutCount returns how many Put calls have succeeded.
func (s *ObjectStore) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// ContentType returns the content type recorded for key.
func (s *ObjectStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[key]
}
