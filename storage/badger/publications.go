package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// MetadataStore implements storage.MetadataStore for BadgerDB.
type MetadataStore struct {
	backend *Backend
}

var _ storage.MetadataStore = (*MetadataStore)(nil)

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(backend *Backend) *MetadataStore {
	return &MetadataStore{backend: backend}
}

// InsertIfAbsent stores pub unless its title is already present.
func (s *MetadataStore) InsertIfAbsent(ctx context.Context, pub *core.Publication) (bool, error) {
	if err := core.ValidatePublication(pub); err != nil {
		return false, err
	}

	inserted := false
	err := s.backend.update(ctx, func(tx *badger.Txn) error {
		key := makePublicationKey(pub.Title)
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		stored := *pub
		if stored.InsertedAt.IsZero() {
			stored.InsertedAt = time.Now().UTC()
		}
		value, err := storage.MarshalPublication(&stored)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		if err := tx.Set(makePublicationTimeKey(stored.InsertedAt, stored.Title), key); err != nil {
			return err
		}
		pub.InsertedAt = stored.InsertedAt
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Get retrieves a publication by title.
func (s *MetadataStore) Get(ctx context.Context, title string) (*core.Publication, error) {
	var pub *core.Publication
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		pub, err = readPublication(tx, makePublicationKey(title))
		return err
	})
	return pub, err
}

// List returns all publications in insertion order.
func (s *MetadataStore) List(ctx context.Context) ([]*core.Publication, error) {
	var pubs []*core.Publication
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(publicationTimeIndex)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			primary, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			pub, err := readPublication(tx, primary)
			if err != nil {
				return err
			}
			pubs = append(pubs, pub)
		}
		return nil
	})

	return pubs, err
}

// Close is a no-op; the shared Backend owns the database.
func (s *MetadataStore) Close() error {
	return nil
}

func readPublication(tx *badger.Txn, key []byte) (*core.Publication, error) {
	item, err := tx.Get(key)
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var pub *core.Publication
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		pub, unmarshalErr = storage.UnmarshalPublication(val)
		return unmarshalErr
	})
	return pub, err
}
