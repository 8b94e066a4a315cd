package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lectern/assets"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const (
	DefaultFetchAttempts = 3
	DefaultFetchBackoff  = time.Second
)

// Splitter divides document text into chunks.
type Splitter interface {
	Split(text string) []core.TextChunk
}

// SplitterFunc adapts a plain function to the Splitter interface.
type SplitterFunc func(text string) []core.TextChunk

// Split calls f(text).
func (f SplitterFunc) Split(text string) []core.TextChunk {
	return f(text)
}

// Pipeline indexes stored publication documents.
type Pipeline struct {
	objects       storage.ObjectStore
	splitter      Splitter
	indexer       *Indexer
	pool          *ants.Pool
	extract       TextExtractor
	fetchAttempts int
	fetchBackoff  time.Duration
	progress      io.Writer
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many documents are indexed concurrently.
// Default is 1, which indexes documents one after another.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithFetchRetry sets how often a document download is attempted and the
// initial backoff between attempts.
func WithFetchRetry(attempts int, backoff time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.fetchAttempts = attempts
		p.fetchBackoff = backoff
		return nil
	}
}

// WithTextExtractor replaces the PDF text extractor.
func WithTextExtractor(extract TextExtractor) Option {
	return func(p *Pipeline) error {
		p.extract = extract
		return nil
	}
}

// WithProgress reports IndexAll progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline reading documents from objects.
func NewPipeline(objects storage.ObjectStore, splitter Splitter, indexer *Indexer, opts ...Option) (*Pipeline, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if splitter == nil {
		return nil, ErrChunkerRequired
	}
	if indexer == nil {
		return nil, ErrVectorIndexRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		objects:       objects,
		splitter:      splitter,
		indexer:       indexer,
		pool:          pool,
		extract:       ExtractPDFText,
		fetchAttempts: DefaultFetchAttempts,
		fetchBackoff:  DefaultFetchBackoff,
		logger:        slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// DocumentFor returns the document identity of pub and the object key its
// file is stored under.
func DocumentFor(pub *core.Publication) (DocumentRef, string, error) {
	if pub.FileObject == nil || pub.FileLink == nil {
		return DocumentRef{}, "", fmt.Errorf("%w: %q", ErrNoDocument, pub.Title)
	}
	key, err := assets.Key(assets.KindFile, *pub.FileLink)
	if err != nil {
		return DocumentRef{}, "", err
	}
	return NewDocumentRef(pub.Title, *pub.FileObject), key, nil
}

// IndexDocument fetches, chunks and indexes the document of pub.
func (p *Pipeline) IndexDocument(ctx context.Context, pub *core.Publication) (*UpsertReport, error) {
	doc, key, err := DocumentFor(pub)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("title", pub.Title, "document_id", doc.ID)

	var data []byte
	err = RetryWithBackoff(ctx, func() error {
		rc, err := p.objects.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return Permanent(err)
		}
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	}, p.fetchAttempts, p.fetchBackoff)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	text, err := p.extract(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", key, err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, key)
	}
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, key)
	}
	logger.Debug("document chunked", "bytes", len(data), "chunks", len(chunks))

	return p.indexer.EmbedAndUpsert(ctx, doc, chunks)
}

// IndexSummary aggregates IndexAll.
type IndexSummary struct {
	Documents int
	Indexed   int
	Stored    int
	Skipped   int
	Reports   map[string]*UpsertReport // By title
	Failures  map[string]error         // Documents that could not be indexed, by title
}

// Err joins the document failures, or returns nil when there were none.
func (s *IndexSummary) Err() error {
	errs := make([]error, 0, len(s.Failures))
	for title, err := range s.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", title, err))
	}
	return errors.Join(errs...)
}

func (s *IndexSummary) add(title string, report *UpsertReport, err error) {
	if err != nil {
		s.Failures[title] = err
		return
	}
	s.Indexed++
	s.Stored += report.Stored
	s.Skipped += len(report.Skipped)
	s.Reports[title] = report
}

// IndexAll indexes every publication through the worker pool. A document
// that fails is recorded in the summary and does not stop the others; the
// returned error is non-nil only when ctx ends.
func (p *Pipeline) IndexAll(ctx context.Context, pubs []*core.Publication) (*IndexSummary, error) {
	summary := &IndexSummary{
		Documents: len(pubs),
		Reports:   make(map[string]*UpsertReport),
		Failures:  make(map[string]error),
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, "documents", len(pubs), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, pub := range pubs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			report, err := p.IndexDocument(ctx, pub)
			if err != nil {
				p.logger.Warn("failed to index document", "title", pub.Title, "err", err)
			}

			mu.Lock()
			summary.add(pub.Title, report, err)
			mu.Unlock()
			if tracker != nil {
				tracker.Increment(1)
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			summary.add(pub.Title, nil, err)
			mu.Unlock()
		}
	}
	wg.Wait()

	p.logger.Info("indexing complete",
		"documents", summary.Documents,
		"indexed", summary.Indexed,
		"failed", len(summary.Failures),
		"stored_chunks", summary.Stored)
	return summary, ctx.Err()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
