package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunkTexts = []string{
	"Momentum returns are concentrated in small stocks.",
	"Value premiums have weakened over recent decades.",
	"Liquidity risk explains part of the size premium.",
	"Momentum crashes follow market rebounds.",
}

func seedIndex(t *testing.T) (*badger.Stores, *mock.MockEmbedder, string) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	docID := core.DocumentID("mem://research/pdfs/factors.pdf")
	records := make([]core.EmbeddingRecord, len(chunkTexts))
	for i, text := range chunkTexts {
		records[i] = core.EmbeddingRecord{
			ID:     core.ChunkID(docID, i),
			Vector: mock.GenerateDeterministicVector(text, mock.DefaultDimension),
			Metadata: core.VectorMetadata{
				DocumentID: docID,
				Title:      "Factors",
				ChunkIndex: i,
				Text:       text,
			},
		}
	}
	require.NoError(t, stores.Vectors.Upsert(context.Background(), records))
	return stores, embedder, docID
}

func TestSearcher_Search(t *testing.T) {
	stores, embedder, docID := seedIndex(t)
	s, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	matches, err := s.Search(context.Background(), chunkTexts[2], 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ChunkID(docID, 2), matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "Factors", matches[0].Metadata.Title)
}

type recordingMonitor struct {
	noopMonitor
	started  string
	verbatim []string
	finished int
}

func (m *recordingMonitor) Start(q string)               { m.started = q }
func (m *recordingMonitor) VerbatimHit(match core.Match) { m.verbatim = append(m.verbatim, match.ID) }
func (m *recordingMonitor) Finish(results []core.Match)  { m.finished = len(results) }

func TestSearcher_VerbatimBoost(t *testing.T) {
	stores, embedder, docID := seedIndex(t)
	s, err := NewSearcher(stores.Vectors, embedder, WithVerbatimBoost(5))
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	matches, err := s.SearchWithMonitor(context.Background(), "  momentum crashes  ", 2, monitor)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, core.ChunkID(docID, 3), matches[0].ID)
	assert.Greater(t, matches[0].Score, float32(5))
	assert.Equal(t, "momentum crashes", monitor.started)
	assert.Contains(t, monitor.verbatim, core.ChunkID(docID, 3))
	assert.NotContains(t, monitor.verbatim, core.ChunkID(docID, 0))
	assert.Equal(t, 2, monitor.finished)
}

func TestSearcher_SearchErrors(t *testing.T) {
	stores, embedder, _ := seedIndex(t)
	s, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(context.Background(), "value", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	}
	_, err = s.Search(context.Background(), "value", 3)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSearcher_DeleteDocument(t *testing.T) {
	stores, embedder, docID := seedIndex(t)
	s, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(context.Background(), docID, len(chunkTexts)))

	matches, err := s.Search(context.Background(), chunkTexts[0], 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.ErrorIs(t, s.DeleteDocument(context.Background(), docID, -1), ErrInvalidChunkCount)
	assert.ErrorIs(t, s.DeleteDocument(context.Background(), "", 3), core.ErrEmptyID)
}

func TestSearcher_DeleteDocumentAllChunks(t *testing.T) {
	stores, embedder, docID := seedIndex(t)
	s, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(context.Background(), docID, 0))

	matches, err := s.Search(context.Background(), chunkTexts[0], 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestNewSearcher_Validation(t *testing.T) {
	stores, embedder, _ := seedIndex(t)

	_, err := NewSearcher(nil, embedder)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)

	_, err = NewSearcher(stores.Vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewSearcher(stores.Vectors, embedder, WithVerbatimBoost(-1))
	assert.Error(t, err)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  bool
	}{
		{"all present", "Momentum crashes follow market rebounds.", "momentum rebounds", true},
		{"punctuation and case", "Liquidity (risk) matters!", "RISK, liquidity?", true},
		{"stop words ignored", "Value premiums weakened.", "what is the value premiums", true},
		{"missing word", "Value premiums weakened.", "value momentum", false},
		{"only stop words", "anything at all", "the of and", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.text, tt.query))
		})
	}
}
