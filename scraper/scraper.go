package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// DefaultStartURL is the Research Foundation listing sorted newest first.
const DefaultStartURL = "https://rpc.cfainstitute.org/en/research-foundation/publications#sort=%40officialz32xdate%20descending&f:SeriesContent=[Research%20Foundation]"

const (
	DefaultPageTimeout     = 10 * time.Second
	DefaultItemTimeout     = 10 * time.Second
	DefaultFileLinkTimeout = 20 * time.Second
	DefaultSettleDelay     = 3 * time.Second

	// overlayTimeout bounds the wait for the consent banner.
	overlayTimeout = 2 * time.Second

	// saveTimeout bounds a cursor save, which outlives a cancelled run.
	saveTimeout = 5 * time.Second
)

// Result accumulates the output of a traversal. It is updated in place so
// that work done before a session failure is kept.
type Result struct {
	Publications []core.Publication
	Cursor       *core.ScrapeCursor
}

// NewResult returns a result resuming from cursor, holding the records the
// cursor collected before it was saved. A nil cursor starts a fresh run.
func NewResult(cursor *core.ScrapeCursor) *Result {
	if cursor == nil {
		cursor = core.NewScrapeCursor("")
	}
	if cursor.Resolved == nil {
		cursor.Resolved = make(map[string]bool)
	}
	return &Result{
		Publications: slices.Clone(cursor.Collected),
		Cursor:       cursor,
	}
}

// Scraper traverses a listing. It holds no session state; the session is
// passed to Run so a supervisor can replace it between attempts.
type Scraper struct {
	startURL    string
	base        *url.URL
	selectors   Selectors
	pageTimeout time.Duration
	itemTimeout time.Duration
	fileTimeout time.Duration
	settleDelay time.Duration
	readability bool
	cursors     storage.CursorStore
	logger      *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

func WithStartURL(u string) Option {
	return func(s *Scraper) { s.startURL = u }
}

func WithSelectors(sel Selectors) Option {
	return func(s *Scraper) { s.selectors = sel }
}

// WithTimeouts sets the bounded waits for the next control, the listing
// items after paging and the detail page file link.
func WithTimeouts(page, item, fileLink time.Duration) Option {
	return func(s *Scraper) {
		s.pageTimeout = page
		s.itemTimeout = item
		s.fileTimeout = fileLink
	}
}

// WithSettleDelay sets the pause after paging that lets scripted listings re-render.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Scraper) { s.settleDelay = d }
}

// WithReadability fills missing summaries from the detail page's readable excerpt.
func WithReadability(enabled bool) Option {
	return func(s *Scraper) { s.readability = enabled }
}

// WithCursorStore persists the cursor after every page and resolved item.
func WithCursorStore(cs storage.CursorStore) Option {
	return func(s *Scraper) { s.cursors = cs }
}

// New creates a Scraper.
func New(opts ...Option) (*Scraper, error) {
	s := &Scraper{
		startURL:    DefaultStartURL,
		selectors:   DefaultSelectors(),
		pageTimeout: DefaultPageTimeout,
		itemTimeout: DefaultItemTimeout,
		fileTimeout: DefaultFileLinkTimeout,
		settleDelay: DefaultSettleDelay,
		logger:      slog.Default().With("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}

	base, err := url.Parse(s.startURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid start url %q", s.startURL)
	}
	s.base = &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	return s, nil
}

// Run continues the traversal recorded in res.Cursor using sess, which must
// be open. It returns nil once the listing is exhausted and every detail
// page has been visited. Errors wrapping ErrSessionLost mean sess must be
// replaced; res keeps everything collected so far.
func (s *Scraper) Run(ctx context.Context, sess Session, res *Result) error {
	if res.Cursor == nil {
		res.Cursor = core.NewScrapeCursor("")
	}
	if res.Cursor.Resolved == nil {
		res.Cursor.Resolved = make(map[string]bool)
	}

	if !res.Cursor.Done {
		if err := s.traverseListing(ctx, sess, res); err != nil {
			return err
		}
	}
	return s.resolveFileLinks(ctx, sess, res)
}

func (s *Scraper) traverseListing(ctx context.Context, sess Session, res *Result) error {
	cur := res.Cursor
	logger := s.logger.With("run_id", cur.RunID)

	if err := sess.Navigate(ctx, s.startURL); err != nil {
		if isFatal(ctx, err) {
			return err
		}
		logger.Warn("failed to open listing", "url", s.startURL, "err", err)
		return s.finishListing(ctx, res)
	}
	s.DismissOverlay(ctx, sess)
	if err := sess.WaitFor(ctx, s.selectors.Item, s.itemTimeout); err != nil {
		if isFatal(ctx, err) {
			return err
		}
		logger.Info("listing has no items", "err", err)
		return s.finishListing(ctx, res)
	}

	// Pages extracted before a restart are skipped without re-extraction.
	for page := 0; page < cur.Page; page++ {
		more, err := s.nextPage(ctx, sess)
		if err != nil {
			return err
		}
		if !more {
			return s.finishListing(ctx, res)
		}
	}

	for {
		html, err := sess.HTML(ctx)
		if err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("failed to read listing page", "page", cur.Page+1, "err", err)
			return s.finishListing(ctx, res)
		}
		items, err := ExtractPageItems(html, s.selectors, s.base)
		if err != nil {
			logger.Warn("failed to extract listing page", "page", cur.Page+1, "err", err)
		}

		added := 0
		for _, item := range items {
			if cur.HasSeen(item.Title) {
				logger.Debug("skipping duplicate title", "title", item.Title)
				continue
			}
			cur.Seen = append(cur.Seen, item.Title)
			res.Publications = append(res.Publications, item)
			added++
		}
		cur.Page++
		logger.Info("extracted listing page", "page", cur.Page, "items", len(items), "new", added)
		s.saveCursor(ctx, res)

		more, err := s.nextPage(ctx, sess)
		if err != nil {
			return err
		}
		if !more {
			return s.finishListing(ctx, res)
		}
	}
}

// nextPage advances the listing. A missing or unusable next control is the
// normal end of the listing and reports false without error.
func (s *Scraper) nextPage(ctx context.Context, sess Session) (bool, error) {
	s.DismissOverlay(ctx, sess)

	if err := sess.WaitFor(ctx, s.selectors.NextPage, s.pageTimeout); err != nil {
		if isFatal(ctx, err) {
			return false, err
		}
		s.logger.Debug("no more pages", "err", err)
		return false, nil
	}
	if err := sess.Click(ctx, s.selectors.NextPage); err != nil {
		if isFatal(ctx, err) {
			return false, err
		}
		s.logger.Debug("failed to navigate to next page", "err", err)
		return false, nil
	}
	if err := sess.WaitFor(ctx, s.selectors.Item, s.itemTimeout); err != nil {
		if isFatal(ctx, err) {
			return false, err
		}
		s.logger.Debug("next page has no items", "err", err)
		return false, nil
	}
	if err := sleepCtx(ctx, s.settleDelay); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scraper) finishListing(ctx context.Context, res *Result) error {
	res.Cursor.Done = true
	s.saveCursor(ctx, res)
	return ctx.Err()
}

// DismissOverlay clicks away the consent banner when one is shown.
func (s *Scraper) DismissOverlay(ctx context.Context, sess Session) {
	if s.selectors.Overlay == "" {
		return
	}
	if err := sess.WaitFor(ctx, s.selectors.Overlay, overlayTimeout); err != nil {
		s.logger.Debug("overlay not found", "err", err)
		return
	}
	if err := sess.Click(ctx, s.selectors.Overlay); err != nil {
		s.logger.Debug("overlay could not be dismissed", "err", err)
		return
	}
	s.logger.Debug("overlay dismissed")
}

func (s *Scraper) resolveFileLinks(ctx context.Context, sess Session, res *Result) error {
	cur := res.Cursor
	for i := range res.Publications {
		pub := &res.Publications[i]
		if cur.Resolved[pub.Title] {
			continue
		}
		if pub.DetailLink != nil {
			link, err := s.ResolveFileLink(ctx, sess, pub)
			if err != nil {
				return err
			}
			pub.FileLink = link
		}
		cur.Resolved[pub.Title] = true
		s.saveCursor(ctx, res)
	}
	s.logger.Info("resolved file links", "run_id", cur.RunID, "publications", len(res.Publications))
	return nil
}

// ResolveFileLink visits pub's detail page and returns its file link, or nil
// when the page shows none within the file link timeout. Only errors that
// end the session or the context are returned.
func (s *Scraper) ResolveFileLink(ctx context.Context, sess Session, pub *core.Publication) (*string, error) {
	detail := core.Deref(pub.DetailLink)
	logger := s.logger.With("title", pub.Title, "detail_link", detail)

	if err := sess.Navigate(ctx, detail); err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		logger.Warn("failed to open detail page", "err", err)
		return nil, nil
	}

	waitErr := sess.WaitFor(ctx, s.selectors.FileLink, s.fileTimeout)
	if waitErr != nil && isFatal(ctx, waitErr) {
		return nil, waitErr
	}
	if waitErr != nil && !s.needsExcerpt(pub) {
		logger.Debug("no file link on detail page", "err", waitErr)
		return nil, nil
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		logger.Warn("failed to read detail page", "err", err)
		return nil, nil
	}

	base, _ := url.Parse(detail)
	if s.needsExcerpt(pub) {
		pub.Summary = readableExcerpt(html, base)
	}
	if waitErr != nil {
		logger.Debug("no file link on detail page", "err", waitErr)
		return nil, nil
	}

	link, err := ExtractFileLink(html, s.selectors, base)
	if err != nil {
		logger.Warn("failed to extract file link", "err", err)
		return nil, nil
	}
	logger.Debug("resolved file link", "file_link", core.Deref(link))
	return link, nil
}

func (s *Scraper) needsExcerpt(pub *core.Publication) bool {
	return s.readability && pub.Summary == nil
}

// saveCursor persists the cursor together with the records collected so
// far. It runs detached from ctx so that progress made before a
// cancellation is kept.
func (s *Scraper) saveCursor(ctx context.Context, res *Result) {
	if s.cursors == nil {
		return
	}
	cur := res.Cursor
	cur.Collected = res.Publications
	cur.UpdatedAt = time.Now().UTC()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.cursors.SaveCursor(saveCtx, cur); err != nil {
		s.logger.Warn("failed to save cursor", "run_id", cur.RunID, "err", err)
	}
}

func readableExcerpt(html string, base *url.URL) *string {
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return nil
	}
	return core.Ptr(collapse(article.Excerpt))
}

// isFatal reports whether err must end the traversal attempt: the session
// is gone or the caller gave up.
func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, ErrSessionLost) || ctx.Err() != nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
