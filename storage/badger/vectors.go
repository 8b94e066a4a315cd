package badger

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// VectorIndex implements storage.VectorIndex with a brute-force cosine scan
// over records stored in BadgerDB. It suits local runs and tests; large
// corpora belong in a remote index.
type VectorIndex struct {
	backend   *Backend
	dimension int
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a VectorIndex. A positive dimension makes Upsert
// and Query reject vectors of any other length.
func NewVectorIndex(backend *Backend, dimension int) *VectorIndex {
	return &VectorIndex{
		backend:   backend,
		dimension: dimension,
	}
}

// Upsert writes records in a single transaction.
func (v *VectorIndex) Upsert(ctx context.Context, records []core.EmbeddingRecord) error {
	for i := range records {
		if err := core.ValidateEmbeddingRecord(&records[i]); err != nil {
			return err
		}
		if err := v.checkDimension(records[i].Vector); err != nil {
			return fmt.Errorf("record %s: %w", records[i].ID, err)
		}
	}

	return v.backend.update(ctx, func(tx *badger.Txn) error {
		for i := range records {
			value, err := storage.MarshalEmbeddingRecord(&records[i])
			if err != nil {
				return err
			}
			if err := tx.Set(makeVectorKey(records[i].ID), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query scores every stored vector against vector and returns the topK best.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]core.Match, error) {
	if topK < 1 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := v.checkDimension(vector); err != nil {
		return nil, err
	}

	var matches []core.Match
	err := v.backend.scanPrefix(ctx, []byte(vectorPrefix), func(key, val []byte) error {
		record, err := storage.UnmarshalEmbeddingRecord(val)
		if err != nil {
			return err
		}
		matches = append(matches, core.Match{
			ID:       record.ID,
			Score:    cosineSimilarity(vector, record.Vector),
			Metadata: record.Metadata,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, ties by ID for stable output
	slices.SortFunc(matches, func(a, b core.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes records by ID.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	return v.backend.update(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePrefix removes every record whose ID starts with prefix.
func (v *VectorIndex) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, storage.ErrEmptyPrefix
	}

	var keys [][]byte
	err := v.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorKey(prefix)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	err = v.backend.update(ctx, func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close is a no-op; the shared Backend owns the database.
func (v *VectorIndex) Close() error {
	return nil
}

func (v *VectorIndex) checkDimension(vector []float32) error {
	if v.dimension > 0 && len(vector) != v.dimension {
		return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vector), v.dimension)
	}
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either has zero length.
func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
