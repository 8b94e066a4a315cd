package storage

import (
	"context"
	"io"

	"github.com/poiesic/lectern/core"
)

// ObjectStore is a flat key/blob store such as a cloud storage bucket.
// Implementations must be thread-safe.
type ObjectStore interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Put stores the content of r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get opens the object stored under key.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Ref returns the canonical reference for key, e.g. "gs://bucket/key".
	Ref(key string) string

	// Close releases resources held by the store.
	Close() error
}

// MetadataStore persists publication records keyed by title.
type MetadataStore interface {
	// InsertIfAbsent stores pub unless a publication with the same title
	// already exists. Returns whether a new record was written.
	InsertIfAbsent(ctx context.Context, pub *core.Publication) (bool, error)

	// Get retrieves a publication by title.
	// Returns ErrNotFound if the publication doesn't exist.
	Get(ctx context.Context, title string) (*core.Publication, error)

	// List returns all stored publications ordered by insertion time.
	List(ctx context.Context) ([]*core.Publication, error)

	// Close releases resources held by the store.
	Close() error
}

// VectorIndex stores embedding records and answers nearest-neighbour queries.
type VectorIndex interface {
	// Upsert writes records, overwriting any existing records with the same IDs.
	Upsert(ctx context.Context, records []core.EmbeddingRecord) error

	// Query returns up to topK matches for vector, ordered by score (highest first).
	Query(ctx context.Context, vector []float32, topK int) ([]core.Match, error)

	// Delete removes records by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// DeletePrefix removes every record whose ID starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// CursorStore persists scrape traversal state between sessions and runs.
type CursorStore interface {
	// SaveCursor stores the cursor under its RunID.
	SaveCursor(ctx context.Context, cursor *core.ScrapeCursor) error

	// LoadCursor retrieves the cursor for runID.
	// Returns ErrNotFound if no cursor has been saved.
	LoadCursor(ctx context.Context, runID string) (*core.ScrapeCursor, error)
}
