package badger

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dimension int) *VectorIndex {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewVectorIndex(backend, dimension)
}

func record(id string, vector ...float32) core.EmbeddingRecord {
	return core.EmbeddingRecord{
		ID:       id,
		Vector:   vector,
		Metadata: core.VectorMetadata{DocumentID: "doc-1", Text: "text of " + id},
	}
}

func TestVectorIndex_UpsertAndQuery(t *testing.T) {
	idx := newTestIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []core.EmbeddingRecord{
		record("a", 1, 0, 0),
		record("b", 0.9, 0.1, 0),
		record("c", 0, 0, 1),
	}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "text of a", matches[0].Metadata.Text)
}

func TestVectorIndex_UpsertOverwrites(t *testing.T) {
	idx := newTestIndex(t, 0)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []core.EmbeddingRecord{record("doc-1-chunk-0", 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, []core.EmbeddingRecord{record("doc-1-chunk-0", 0, 1)}))

	matches, err := idx.Query(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestVectorIndex_Delete(t *testing.T) {
	idx := newTestIndex(t, 0)
	ctx := context.Background()

	var records []core.EmbeddingRecord
	for i := 0; i < 5; i++ {
		records = append(records, record(core.ChunkID("doc-1", i), float32(i+1), 1))
	}
	require.NoError(t, idx.Upsert(ctx, records))

	require.NoError(t, idx.Delete(ctx, []string{"doc-1-chunk-0", "doc-1-chunk-1", "missing"}))

	matches, err := idx.Query(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
	for _, m := range matches {
		assert.NotEqual(t, "doc-1-chunk-0", m.ID)
	}
}

func TestVectorIndex_DeletePrefix(t *testing.T) {
	idx := newTestIndex(t, 0)
	ctx := context.Background()

	var records []core.EmbeddingRecord
	for i := 0; i < 12; i++ {
		records = append(records, record(core.ChunkID("doc-1", i), float32(i+1), 1))
	}
	records = append(records, record(core.ChunkID("doc-10", 0), 1, 1))
	require.NoError(t, idx.Upsert(ctx, records))

	deleted, err := idx.DeletePrefix(ctx, core.ChunkIDPrefix("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, 12, deleted)

	matches, err := idx.Query(ctx, []float32{1, 1}, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-10-chunk-0", matches[0].ID)

	deleted, err = idx.DeletePrefix(ctx, core.ChunkIDPrefix("doc-1"))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = idx.DeletePrefix(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyPrefix)
}

func TestVectorIndex_Validation(t *testing.T) {
	idx := newTestIndex(t, 2)
	ctx := context.Background()

	err := idx.Upsert(ctx, []core.EmbeddingRecord{record("a", 1, 2, 3)})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	err = idx.Upsert(ctx, []core.EmbeddingRecord{record("a", float32(math.NaN()), 1)})
	assert.ErrorIs(t, err, core.ErrInvalidVector)

	_, err = idx.Query(ctx, []float32{1, 0}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = idx.Query(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestVectorIndex_TopKLimit(t *testing.T) {
	idx := newTestIndex(t, 0)
	ctx := context.Background()

	var records []core.EmbeddingRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(fmt.Sprintf("r%02d", i), 1, float32(i)/10))
	}
	require.NoError(t, idx.Upsert(ctx, records))

	matches, err := idx.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 5)
	assert.Equal(t, "r00", matches[0].ID)
	for i := 0; i < len(matches)-1; i++ {
		assert.GreaterOrEqual(t, matches[i].Score, matches[i+1].Score)
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
