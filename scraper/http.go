package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent identifies HTTP sessions to servers and robots.txt.
const DefaultUserAgent = "lectern/1.0 (+https://github.com/poiesic/lectern)"

// HTTPSession browses static pages with plain HTTP requests. Clicking an
// element follows its href, so it suits listings whose pagination is made of
// ordinary links. Pages disallowed by robots.txt are not fetched.
type HTTPSession struct {
	client    *http.Client
	userAgent string

	mu      sync.Mutex
	open    bool
	robots  map[string]*robotstxt.Group
	current *url.URL
	html    string
	doc     *goquery.Document
	logger  *slog.Logger
}

var _ Session = (*HTTPSession)(nil)

// NewHTTPSession creates an unopened session. A nil client uses a client with a 30s timeout.
func NewHTTPSession(client *http.Client, userAgent string) *HTTPSession {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPSession{
		client:    client,
		userAgent: userAgent,
		logger:    slog.Default().With("component", "http-session"),
	}
}

func (s *HTTPSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.robots = make(map[string]*robotstxt.Group)
	return nil
}

func (s *HTTPSession) Navigate(ctx context.Context, rawURL string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if !s.allowed(ctx, u) {
		return fmt.Errorf("disallowed by robots.txt: %s", rawURL)
	}

	body, err := s.fetch(ctx, u.String())
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	s.mu.Lock()
	s.current, s.html, s.doc = u, body, doc
	s.mu.Unlock()
	return nil
}

// WaitFor checks the loaded page once. Static pages do not change, so waiting
// longer cannot make the selector appear.
func (s *HTTPSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()

	if doc == nil || doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
	}
	return nil
}

// Click follows the href of the first element matching selector.
func (s *HTTPSession) Click(ctx context.Context, selector string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	doc, current := s.doc, s.current
	s.mu.Unlock()

	if doc == nil {
		return ErrNoPage
	}
	sel := doc.Find(selector).First()
	href, ok := sel.Attr("href")
	if !ok {
		// Pagination controls are often a wrapper around the anchor.
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	if !ok {
		return fmt.Errorf("element %q has no link to follow", selector)
	}
	target := NormalizeLink(current, href)
	if target == nil {
		return fmt.Errorf("element %q links to non-navigable %q", selector, href)
	}
	return s.Navigate(ctx, *target)
}

func (s *HTTPSession) HTML(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", ErrNoPage
	}
	return s.html, nil
}

func (s *HTTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.current, s.html, s.doc = nil, "", nil
	return nil
}

func (s *HTTPSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("%w: session is not open", ErrSessionLost)
	}
	return nil
}

func (s *HTTPSession) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// allowed consults robots.txt for u's host, loading it on first use.
// An unreachable or malformed robots.txt allows everything.
func (s *HTTPSession) allowed(ctx context.Context, u *url.URL) bool {
	s.mu.Lock()
	group, loaded := s.robots[u.Host]
	s.mu.Unlock()

	if !loaded {
		group = s.loadRobots(ctx, u)
		s.mu.Lock()
		s.robots[u.Host] = group
		s.mu.Unlock()
	}
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (s *HTTPSession) loadRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("robots.txt unavailable", "url", robotsURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		s.logger.Debug("failed to parse robots.txt", "url", robotsURL, "err", err)
		return nil
	}
	return data.FindGroup(s.userAgent)
}
