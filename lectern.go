// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lectern wires the scraper, the asset gate, the indexing pipeline
// and the searcher to the storage backends and AI provider selected by a
// config.Config.
package lectern

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/ai/openai"
	"github.com/poiesic/lectern/assets"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/scraper"
	"github.com/poiesic/lectern/search"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/poiesic/lectern/storage/gcs"
	"github.com/poiesic/lectern/storage/memory"
	"github.com/poiesic/lectern/storage/mongo"
	"github.com/poiesic/lectern/storage/pinecone"
	"github.com/poiesic/lectern/storage/sqlstore"
)

// ErrNoCursorStore is returned when a resume is requested but no backend
// can persist scrape cursors.
var ErrNoCursorStore = errors.New("no cursor store configured")

// Lectern owns the backends of one configuration.
type Lectern struct {
	cfg        *config.Config
	local      *badger.Stores
	objects    storage.ObjectStore
	metadata   storage.MetadataStore
	vectors    storage.VectorIndex
	cursors    storage.CursorStore
	provider   ai.AIProvider
	fetcher    assets.Fetcher
	newSession scraper.SessionFactory
	extract    ingestion.TextExtractor
	segmenter  chunker.Segmenter
	owned      []io.Closer
	logger     *slog.Logger
}

// Option configures a Lectern.
type Option func(*options)

type options struct {
	inMemory   bool
	provider   ai.AIProvider
	objects    storage.ObjectStore
	fetcher    assets.Fetcher
	newSession scraper.SessionFactory
	extract    ingestion.TextExtractor
	segmenter  chunker.Segmenter
}

// WithInMemory keeps the local badger database in memory.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// WithAIProvider replaces the OpenAI-compatible provider built from the config.
// The caller keeps ownership of p.
func WithAIProvider(p ai.AIProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithObjectStore replaces the configured object store backend.
func WithObjectStore(s storage.ObjectStore) Option {
	return func(o *options) { o.objects = s }
}

func WithFetcher(f assets.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithSessionFactory replaces the browser session selected by scraper.session.
func WithSessionFactory(f scraper.SessionFactory) Option {
	return func(o *options) { o.newSession = f }
}

// WithTextExtractor replaces PDF text extraction for indexing and summaries.
func WithTextExtractor(fn ingestion.TextExtractor) Option {
	return func(o *options) { o.extract = fn }
}

// WithSegmenter replaces the Punkt sentence segmenter of the chunker.
func WithSegmenter(s chunker.Segmenter) Option {
	return func(o *options) { o.segmenter = s }
}

// Open connects every backend named by cfg. On failure everything opened so
// far is closed again.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Lectern, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	l := &Lectern{
		cfg:        cfg,
		fetcher:    o.fetcher,
		newSession: o.newSession,
		extract:    o.extract,
		segmenter:  o.segmenter,
		logger:     slog.Default().With("component", "lectern"),
	}
	if err := l.open(ctx, o); err != nil {
		l.closeOwned()
		return nil, err
	}

	if l.fetcher == nil {
		l.fetcher = assets.NewHTTPFetcher(l.userAgent())
	}
	if l.newSession == nil {
		l.newSession = l.defaultSessionFactory()
	}
	if l.extract == nil {
		l.extract = ingestion.ExtractPDFText
	}
	return l, nil
}

func (l *Lectern) open(ctx context.Context, o *options) error {
	cfg := l.cfg
	// The local database also holds scrape cursors, so it is opened whenever
	// there is somewhere to put it.
	if cfg.NeedsBadger() || cfg.DataDir != "" || o.inMemory {
		stores, err := badger.Open(cfg.DataDir, o.inMemory, cfg.AI.Dimension)
		if err != nil {
			return fmt.Errorf("failed to open local database: %w", err)
		}
		l.local = stores
		l.cursors = stores.Cursors
	}

	switch {
	case o.objects != nil:
		l.objects = o.objects
	case cfg.Storage.Backend == config.BackendBadger:
		l.objects = l.local.Objects
	case cfg.Storage.Backend == config.BackendMemory:
		l.objects = memory.NewObjectStore(cfg.Storage.Bucket)
	case cfg.Storage.Backend == config.BackendGCS:
		bucket, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.Storage.Bucket,
			EmulatorHost:    cfg.Storage.EmulatorHost,
			CredentialsFile: cfg.Storage.CredentialsFile,
		})
		if err != nil {
			return err
		}
		l.own(bucket)
		l.objects = bucket
	}

	switch cfg.Metadata.Backend {
	case config.BackendBadger:
		l.metadata = l.local.Metadata
	case config.BackendMongo:
		store, err := mongo.New(ctx, mongo.Config{
			URI:        cfg.Metadata.URI,
			Database:   cfg.Metadata.Database,
			Collection: cfg.Metadata.Collection,
		})
		if err != nil {
			return err
		}
		l.own(store)
		l.metadata = store
	case config.BackendPostgres, config.BackendSQLite:
		store, err := sqlstore.Open(cfg.Metadata.Backend, cfg.Metadata.DSN)
		if err != nil {
			return err
		}
		l.own(store)
		l.metadata = store
	}

	switch cfg.Vectors.Backend {
	case config.BackendBadger:
		l.vectors = l.local.Vectors
	case config.BackendPinecone:
		index, err := pinecone.New(ctx, pinecone.Config{
			APIKey:     cfg.Vectors.APIKey,
			APIVersion: cfg.Vectors.APIVersion,
			IndexName:  cfg.Vectors.IndexName,
			Host:       cfg.Vectors.Host,
			Namespace:  cfg.Vectors.Namespace,
		})
		if err != nil {
			return err
		}
		l.own(index)
		l.vectors = index
	}

	if o.provider != nil {
		l.provider = o.provider
		return nil
	}
	provider, err := openai.NewProvider(aiConfig(cfg.AI))
	if err != nil {
		return err
	}
	l.own(provider)
	l.provider = provider
	return nil
}

func aiConfig(c config.AIConfig) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithDimension(c.Dimension),
		ai.WithRequestsPerSecond(c.RequestsPerSecond),
	}
	if c.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.EmbeddingHost))
	}
	if c.SummaryHost != "" {
		opts = append(opts, ai.WithSummaryHost(c.SummaryHost))
	}
	if c.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(c.EmbeddingModel))
	}
	if c.SummaryModel != "" {
		opts = append(opts, ai.WithSummaryModel(c.SummaryModel))
	}
	if c.Token != "" {
		opts = append(opts, ai.WithToken(c.Token))
	}
	if c.MaxInputChars > 0 {
		opts = append(opts, ai.WithMaxInputChars(c.MaxInputChars))
	}
	return ai.NewConfig(opts...)
}

func (l *Lectern) own(c io.Closer) {
	l.owned = append(l.owned, c)
}

// closeOwned closes what Open created, in reverse order, then the local database.
func (l *Lectern) closeOwned() error {
	var errs []error
	for i := len(l.owned) - 1; i >= 0; i-- {
		if err := l.owned[i].Close(); err != nil {
			l.logger.Error("error closing backend", "err", err)
			errs = append(errs, err)
		}
	}
	l.owned = nil
	if l.local != nil {
		if err := l.local.Close(); err != nil {
			l.logger.Error("error closing local database", "err", err)
			errs = append(errs, err)
		}
		l.local = nil
	}
	return errors.Join(errs...)
}

// Close releases every backend Open created. Injected dependencies are left open.
func (l *Lectern) Close() error {
	return l.closeOwned()
}

func (l *Lectern) ObjectStore() storage.ObjectStore     { return l.objects }
func (l *Lectern) MetadataStore() storage.MetadataStore { return l.metadata }
func (l *Lectern) VectorIndex() storage.VectorIndex     { return l.vectors }

func (l *Lectern) userAgent() string {
	if ua := strings.TrimSpace(l.cfg.Scraper.UserAgent); ua != "" {
		return ua
	}
	return scraper.DefaultUserAgent
}

func (l *Lectern) defaultSessionFactory() scraper.SessionFactory {
	sc := l.cfg.Scraper
	if sc.Session == config.SessionHTTP {
		return func() scraper.Session {
			return scraper.NewHTTPSession(&http.Client{Timeout: sc.PageTimeout() + sc.FileLinkTimeout()}, l.userAgent())
		}
	}
	return func() scraper.Session {
		opts := []scraper.ChromeOption{scraper.WithHeadless(sc.Headless)}
		if sc.ChromePath != "" {
			opts = append(opts, scraper.WithExecPath(sc.ChromePath))
		}
		if sc.UserAgent != "" {
			opts = append(opts, scraper.WithChromeUserAgent(sc.UserAgent))
		}
		return scraper.NewChromeSession(opts...)
	}
}

// selectors overlays the configured selectors on the defaults.
func selectors(c config.SelectorsConfig) scraper.Selectors {
	sel := scraper.DefaultSelectors()
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&sel.Item, c.Item)
	pick(&sel.Title, c.Title)
	pick(&sel.Image, c.Image)
	pick(&sel.DetailLink, c.DetailLink)
	pick(&sel.Summary, c.Summary)
	pick(&sel.NextPage, c.NextPage)
	pick(&sel.Overlay, c.Overlay)
	pick(&sel.FileLink, c.FileLink)
	return sel
}

// NewScraper builds a Scraper from the scraper section of the config.
func (l *Lectern) NewScraper() (*scraper.Scraper, error) {
	sc := l.cfg.Scraper
	opts := []scraper.Option{
		scraper.WithStartURL(sc.StartURL),
		scraper.WithSelectors(selectors(sc.Selectors)),
		scraper.WithTimeouts(sc.PageTimeout(), sc.ItemTimeout(), sc.FileLinkTimeout()),
		scraper.WithSettleDelay(sc.SettleDelay()),
		scraper.WithReadability(sc.Readability),
	}
	if l.cursors != nil {
		opts = append(opts, scraper.WithCursorStore(l.cursors))
	}
	return scraper.New(opts...)
}

// ScrapeReport summarizes one Scrape call.
type ScrapeReport struct {
	RunID    string
	Found    int // Publications collected by the scraper
	Assets   assets.StoreReport
	Inserted int // New metadata records
	Existing int // Titles already present
	Skipped  int // Publications without a usable title
	Failed   int // Metadata writes that failed
}

// Scrape runs the supervised scraper, stores the assets of every collected
// publication and inserts the records that are not present yet. Whatever
// was collected is stored even when the scraper ends with an error, which
// is then returned alongside the report.
//
// When ctx ends nothing is stored; the records collected so far are kept in
// the saved cursor, and resuming the run stores them together with the rest.
// With resume set the cursor saved under runID continues where it stopped.
// An empty runID starts a new run with a generated id.
func (l *Lectern) Scrape(ctx context.Context, runID string, resume bool) (*ScrapeReport, error) {
	cursor, err := l.startCursor(ctx, runID, resume)
	if err != nil {
		return nil, err
	}

	s, err := l.NewScraper()
	if err != nil {
		return nil, err
	}
	sup := scraper.NewSupervisor(s, l.newSession)
	sup.MaxRestarts = l.cfg.Scraper.MaxRestarts
	sup.RestartDelay = l.cfg.Scraper.RestartDelay()

	res, scrapeErr := sup.Run(ctx, cursor)
	report := &ScrapeReport{RunID: res.Cursor.RunID, Found: len(res.Publications)}
	logger := l.logger.With("run_id", report.RunID)
	if scrapeErr != nil {
		logger.Error("scrape ended with error", "collected", report.Found, "err", scrapeErr)
	}
	if ctx.Err() != nil {
		logger.Warn("scrape interrupted, resume the run to store what was collected", "collected", report.Found)
		return report, scrapeErr
	}

	gate := assets.NewGate(l.objects, l.fetcher)
	report.Assets, err = gate.Store(ctx, res.Publications)
	if err != nil {
		return report, errors.Join(scrapeErr, err)
	}

	for i := range res.Publications {
		pub := &res.Publications[i]
		if err := core.ValidatePublication(pub); err != nil {
			logger.Debug("skipping publication", "title", pub.Title, "err", err)
			report.Skipped++
			continue
		}
		inserted, err := l.metadata.InsertIfAbsent(ctx, pub)
		switch {
		case err != nil:
			logger.Warn("failed to insert publication", "title", pub.Title, "err", err)
			report.Failed++
		case inserted:
			report.Inserted++
		default:
			report.Existing++
		}
	}

	logger.Info("scrape stored",
		"found", report.Found,
		"inserted", report.Inserted,
		"existing", report.Existing,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, scrapeErr
}

func (l *Lectern) startCursor(ctx context.Context, runID string, resume bool) (*core.ScrapeCursor, error) {
	if runID == "" {
		if resume {
			return nil, fmt.Errorf("%w: a run id is required to resume", core.ErrEmptyID)
		}
		runID = uuid.NewString()
	}
	if !resume {
		return core.NewScrapeCursor(runID), nil
	}
	if l.cursors == nil {
		return nil, ErrNoCursorStore
	}

	cursor, err := l.cursors.LoadCursor(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		l.logger.Info("no saved cursor, starting fresh", "run_id", runID)
		return core.NewScrapeCursor(runID), nil
	}
	if err != nil {
		return nil, err
	}
	l.logger.Info("resuming scrape", "run_id", runID, "page", cursor.Page, "seen", len(cursor.Seen))
	return cursor, nil
}

// Publications returns every stored publication record in insertion order.
func (l *Lectern) Publications(ctx context.Context) ([]*core.Publication, error) {
	return l.metadata.List(ctx)
}

// NewPipeline creates an indexing pipeline over the configured backends.
// Options are applied after the ones derived from the config.
func (l *Lectern) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	cfg := l.cfg
	chunkOpts := []chunker.Option{
		chunker.WithMaxChars(cfg.Chunking.MaxChars),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	}
	if l.segmenter != nil {
		chunkOpts = append(chunkOpts, chunker.WithSegmenter(l.segmenter))
	}
	splitter, err := chunker.New(chunkOpts...)
	if err != nil {
		return nil, err
	}

	maxInput := cfg.AI.MaxInputChars
	if maxInput < 1 {
		maxInput = ingestion.DefaultMaxInputChars
	}
	indexer, err := ingestion.NewIndexer(l.provider.Embedder(), l.vectors,
		ingestion.WithBatchSize(cfg.Indexing.BatchSize),
		ingestion.WithMaxInputChars(maxInput),
		ingestion.WithExcerptChars(cfg.Indexing.ExcerptChars),
		ingestion.WithDimension(cfg.AI.Dimension),
		ingestion.WithNormalize(cfg.Indexing.Normalize),
	)
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithFetchRetry(cfg.Indexing.FetchAttempts, time.Second),
		ingestion.WithTextExtractor(l.extract),
	}
	if cfg.Indexing.PoolSize > 0 {
		base = append(base, ingestion.WithPoolSize(cfg.Indexing.PoolSize))
	}
	return ingestion.NewPipeline(l.objects, splitter, indexer, append(base, opts...)...)
}

// Index indexes the document of the publication titled title, or of every
// stored publication with a document when title is empty.
func (l *Lectern) Index(ctx context.Context, title string, opts ...ingestion.Option) (*ingestion.IndexSummary, error) {
	pubs, err := l.publications(ctx, title)
	if err != nil {
		return nil, err
	}

	p, err := l.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer p.Release()
	return p.IndexAll(ctx, pubs)
}

func (l *Lectern) publications(ctx context.Context, title string) ([]*core.Publication, error) {
	if title != "" {
		pub, err := l.metadata.Get(ctx, title)
		if err != nil {
			return nil, fmt.Errorf("failed to load %q: %w", title, err)
		}
		return []*core.Publication{pub}, nil
	}

	all, err := l.metadata.List(ctx)
	if err != nil {
		return nil, err
	}
	pubs := make([]*core.Publication, 0, len(all))
	for _, pub := range all {
		if pub.FileObject != nil {
			pubs = append(pubs, pub)
		}
	}
	return pubs, nil
}

// NewSearcher creates a searcher over the configured vector index.
func (l *Lectern) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(l.vectors, l.provider.Embedder(), opts...)
}

func (l *Lectern) Search(ctx context.Context, query string, topK int) ([]core.Match, error) {
	s, err := l.NewSearcher()
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, topK)
}

// Summarize summarizes the stored document of the publication titled title.
func (l *Lectern) Summarize(ctx context.Context, title string) (string, error) {
	pub, err := l.metadata.Get(ctx, title)
	if err != nil {
		return "", fmt.Errorf("failed to load %q: %w", title, err)
	}
	_, key, err := ingestion.DocumentFor(pub)
	if err != nil {
		return "", err
	}

	rc, err := l.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	text, err := l.extract(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", key, err)
	}
	return l.provider.Summarizer().Summarize(ctx, text)
}

// DeleteDocument removes the first chunks vectors of the document of the
// publication titled title, or all of them when chunks is 0. The metadata
// record and stored objects stay.
func (l *Lectern) DeleteDocument(ctx context.Context, title string, chunks int) error {
	pub, err := l.metadata.Get(ctx, title)
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", title, err)
	}
	doc, _, err := ingestion.DocumentFor(pub)
	if err != nil {
		return err
	}

	s, err := l.NewSearcher()
	if err != nil {
		return err
	}
	return s.DeleteDocument(ctx, doc.ID, chunks)
}
