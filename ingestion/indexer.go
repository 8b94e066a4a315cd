package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const (
	DefaultBatchSize     = 50
	DefaultMaxInputChars = 1000
	DefaultExcerptChars  = 500
)

// DocumentRef identifies the document a set of chunks was taken from.
type DocumentRef struct {
	ID     string // Stable document identity, see core.DocumentID
	Title  string
	Source string // Object reference or URL the text was read from
}

// NewDocumentRef derives the document identity from source.
func NewDocumentRef(title, source string) DocumentRef {
	return DocumentRef{ID: core.DocumentID(source), Title: title, Source: source}
}

// ChunkFailure records a chunk that was not embedded.
type ChunkFailure struct {
	Index int
	Err   error
}

// BatchFailure records an upsert batch that was rejected.
type BatchFailure struct {
	Batch int // 1-based batch number
	Size  int
	Err   error
}

// UpsertReport describes the outcome of EmbedAndUpsert. Partial completion
// is a normal outcome.
type UpsertReport struct {
	DocumentID    string
	Chunks        int
	Stored        int
	Skipped       []ChunkFailure
	FailedBatches []BatchFailure
}

// FailedBatchNumbers returns the 1-based numbers of the failed batches.
func (r *UpsertReport) FailedBatchNumbers() []int {
	out := make([]int, len(r.FailedBatches))
	for i, f := range r.FailedBatches {
		out[i] = f.Batch
	}
	return out
}

// Err joins every recorded failure, or returns nil when there were none.
func (r *UpsertReport) Err() error {
	var errs []error
	for _, s := range r.Skipped {
		errs = append(errs, fmt.Errorf("chunk %d: %w", s.Index, s.Err))
	}
	for _, b := range r.FailedBatches {
		errs = append(errs, fmt.Errorf("batch %d: %w", b.Batch, b.Err))
	}
	return errors.Join(errs...)
}

// Indexer embeds chunks and upserts them into a vector index.
type Indexer struct {
	embedder      ai.Embedder
	index         storage.VectorIndex
	batchSize     int
	maxInputChars int
	excerptChars  int
	dimension     int
	normalize     bool
	logger        *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithBatchSize sets the number of records per upsert call. Default is 50.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) { ix.batchSize = n }
}

// WithMaxInputChars sets the rune length chunks are truncated to before
// embedding. Default is 1000.
func WithMaxInputChars(n int) IndexerOption {
	return func(ix *Indexer) { ix.maxInputChars = n }
}

// WithExcerptChars sets the rune length of the text stored as metadata. Default is 500.
func WithExcerptChars(n int) IndexerOption {
	return func(ix *Indexer) { ix.excerptChars = n }
}

// WithDimension rejects vectors of any other length. Zero accepts any length.
func WithDimension(n int) IndexerOption {
	return func(ix *Indexer) { ix.dimension = n }
}

// WithNormalize scales vectors to unit length before upsert.
func WithNormalize(enabled bool) IndexerOption {
	return func(ix *Indexer) { ix.normalize = enabled }
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder ai.Embedder, index storage.VectorIndex, opts ...IndexerOption) (*Indexer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}

	ix := &Indexer{
		embedder:      embedder,
		index:         index,
		batchSize:     DefaultBatchSize,
		maxInputChars: DefaultMaxInputChars,
		excerptChars:  DefaultExcerptChars,
		logger:        slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	return ix, nil
}

// EmbedAndUpsert embeds every chunk and upserts the successful embeddings
// in batches, sequentially. Failed chunks and batches are recorded in the
// report; earlier batches are never rolled back. An error is returned only
// when ctx ends, in which case the report covers the work done so far.
func (ix *Indexer) EmbedAndUpsert(ctx context.Context, doc DocumentRef, chunks []core.TextChunk) (*UpsertReport, error) {
	report := &UpsertReport{DocumentID: doc.ID, Chunks: len(chunks)}
	logger := ix.logger.With("document_id", doc.ID, "title", doc.Title)

	records := make([]core.EmbeddingRecord, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		vec, err := ix.embedder.EmbedText(ctx, truncateRunes(chunk.Text, ix.maxInputChars))
		if err == nil {
			err = checkVector(vec, ix.dimension)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			logger.Warn("skipping chunk", "chunk", chunk.Index, "err", err)
			report.Skipped = append(report.Skipped, ChunkFailure{Index: chunk.Index, Err: err})
			continue
		}
		if ix.normalize {
			vec = NormalizeVector(vec)
		}

		records = append(records, core.EmbeddingRecord{
			ID:     core.ChunkID(doc.ID, chunk.Index),
			Vector: vec,
			Metadata: core.VectorMetadata{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Source:     doc.Source,
				ChunkIndex: chunk.Index,
				Text:       truncateRunes(chunk.Text, ix.excerptChars),
			},
		})
	}

	for start, batch := 0, 1; start < len(records); start, batch = start+ix.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := min(start+ix.batchSize, len(records))
		if err := ix.index.Upsert(ctx, records[start:end]); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			logger.Error("batch upsert failed", "batch", batch, "size", end-start, "err", err)
			report.FailedBatches = append(report.FailedBatches, BatchFailure{Batch: batch, Size: end - start, Err: err})
			continue
		}
		report.Stored += end - start
		logger.Debug("batch upserted", "batch", batch, "size", end-start)
	}

	logger.Info("indexed document",
		"chunks", report.Chunks,
		"stored", report.Stored,
		"skipped", len(report.Skipped),
		"failed_batches", len(report.FailedBatches))
	return report, nil
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
