package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// overfetch widens the vector query when re-ranking so boosted chunks just
// outside topK can move in.
const overfetch = 3

// Searcher runs semantic search and deletes over a vector index.
type Searcher struct {
	index         storage.VectorIndex
	embedder      ai.Embedder
	verbatimBoost float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithVerbatimBoost adds boost to the score of chunks whose excerpt contains
// every query word outside the stop list. Zero disables re-ranking.
func WithVerbatimBoost(boost float32) Option {
	return func(s *Searcher) error {
		if boost < 0 {
			return fmt.Errorf("verbatim boost must not be negative: %v", boost)
		}
		s.verbatimBoost = boost
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		index:    index,
		embedder: embedder,
		logger:   slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search returns up to topK chunks most similar to query, highest score first.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]core.Match, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	monitor.AfterEmbedding(vector)

	fetch := topK
	if s.verbatimBoost > 0 {
		fetch = topK * overfetch
	}
	matches, err := s.index.Query(ctx, vector, fetch)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	monitor.AfterVectorQuery(matches)

	if s.verbatimBoost > 0 {
		for i := range matches {
			if containsAllQueryWords(matches[i].Metadata.Text, query) {
				matches[i].Score += s.verbatimBoost
				monitor.VerbatimHit(matches[i])
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	s.logger.Debug("search complete", "query", query, "results", len(matches))
	monitor.Finish(matches)
	return matches, nil
}

// DeleteDocument removes the vectors of the first chunkCount chunks of docID.
// A chunkCount of 0 removes every chunk of the document.
func (s *Searcher) DeleteDocument(ctx context.Context, docID string, chunkCount int) error {
	if strings.TrimSpace(docID) == "" {
		return core.ErrEmptyID
	}
	if chunkCount < 0 {
		return ErrInvalidChunkCount
	}

	if chunkCount == 0 {
		deleted, err := s.index.DeletePrefix(ctx, core.ChunkIDPrefix(docID))
		if err != nil {
			return fmt.Errorf("failed to delete vectors of %s: %w", docID, err)
		}
		s.logger.Info("deleted document vectors", "document_id", docID, "chunks", deleted)
		return nil
	}

	ids := make([]string, chunkCount)
	for i := range ids {
		ids[i] = core.ChunkID(docID, i)
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete vectors of %s: %w", docID, err)
	}

	s.logger.Info("deleted document vectors", "document_id", docID, "chunks", chunkCount)
	return nil
}
