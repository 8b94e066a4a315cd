package badger

import (
	"bytes"
	"context"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/storage"
)

// objectRefScheme prefixes references to objects held in BadgerDB.
const objectRefScheme = "badger://"

// ObjectStore implements storage.ObjectStore on top of BadgerDB so that a
// whole pipeline can run against a single local database.
type ObjectStore struct {
	backend *Backend
}

var _ storage.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates a new ObjectStore.
func NewObjectStore(backend *Backend) *ObjectStore {
	return &ObjectStore{backend: backend}
}

// Exists reports whether key is stored.
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	found := false
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		_, err := tx.Get(makeObjectKey(key))
		if err == nil {
			found = true
			return nil
		}
		if isNotFound(err) {
			return nil
		}
		return err
	})
	return found, err
}

// Put reads r fully and stores it under key. The content type is not retained.
func (s *ObjectStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeObjectKey(key), data)
	})
}

// Get returns the object stored under key.
func (s *ObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var data []byte
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeObjectKey(key))
		if err != nil {
			if isNotFound(err) {
				return storage.ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Ref returns "badger://<key>".
func (s *ObjectStore) Ref(key string) string {
	return objectRefScheme + key
}

// Close is a no-op; the shared Backend owns the database.
func (s *ObjectStore) Close() error {
	return nil
}
