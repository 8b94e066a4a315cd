package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const testStart = "https://example.org/publications"

type testItem struct {
	title, summary, image, detail string
}

func listingHTML(hasNext bool, items ...testItem) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, it := range items {
		b.WriteString(`<div class="coveo-result-frame">`)
		if it.title != "" {
			fmt.Fprintf(&b, `<h4 class="coveo-title"><a href="%s">%s</a></h4>`, it.detail, it.title)
		}
		if it.image != "" {
			fmt.Fprintf(&b, `<img class="coveo-result-image" src="%s">`, it.image)
		}
		if it.detail != "" {
			fmt.Fprintf(&b, `<a class="CoveoResultLink" href="%s">more</a>`, it.detail)
		}
		if it.summary != "" {
			fmt.Fprintf(&b, `<div class="result-body">%s</div>`, it.summary)
		}
		b.WriteString(`</div>`)
	}
	if hasNext {
		b.WriteString(`<span class="coveo-pager-next">Next</span>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailHTML(fileHref string) string {
	if fileHref == "" {
		return "<html><body><p>No download</p></body></html>"
	}
	return fmt.Sprintf(`<html><body><a href="%s">Download</a></body></html>`, fileHref)
}

// fakeSite is shared by every session a test creates, so it observes the
// whole run across restarts.
type fakeSite struct {
	listing []string
	pages   map[string]string

	// crashOn makes the named operation fail once with ErrSessionLost.
	// Keys are "navigate:<url>", "html:<listing page>" and "open".
	crashOn map[string]int

	opened      int
	navigations map[string]int
}

func newFakeSite(listing ...string) *fakeSite {
	return &fakeSite{
		listing:     listing,
		pages:       make(map[string]string),
		crashOn:     make(map[string]int),
		navigations: make(map[string]int),
	}
}

func (f *fakeSite) crash(key string) error {
	if f.crashOn[key] > 0 {
		f.crashOn[key]--
		return fmt.Errorf("%w: browser crashed during %s", ErrSessionLost, key)
	}
	return nil
}

func (f *fakeSite) factory() SessionFactory {
	return func() Session { return &fakeSession{site: f, listingPage: -1} }
}

type fakeSession struct {
	site        *fakeSite
	open        bool
	listingPage int
	html        string
}

func (s *fakeSession) Open(ctx context.Context) error {
	if err := s.site.crash("open"); err != nil {
		return err
	}
	s.site.opened++
	s.open = true
	return nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if !s.open {
		return ErrSessionLost
	}
	if err := s.site.crash("navigate:" + url); err != nil {
		return err
	}
	s.site.navigations[url]++
	if url == testStart {
		s.listingPage = 0
		s.html = s.site.listing[0]
		return nil
	}
	page, ok := s.site.pages[url]
	if !ok {
		return fmt.Errorf("HTTP 404 for %s", url)
	}
	s.listingPage = -1
	s.html = page
	return nil
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if !s.open {
		return ErrSessionLost
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil || doc.Find(selector).Length() == 0 {
		return ErrWaitTimeout
	}
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	if !s.open {
		return ErrSessionLost
	}
	if selector != DefaultSelectors().NextPage || s.listingPage < 0 || s.listingPage+1 >= len(s.site.listing) {
		return fmt.Errorf("nothing clickable for %s", selector)
	}
	s.listingPage++
	s.html = s.site.listing[s.listingPage]
	return nil
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	if !s.open {
		return "", ErrSessionLost
	}
	if s.listingPage >= 0 {
		if err := s.site.crash(fmt.Sprintf("html:%d", s.listingPage)); err != nil {
			return "", err
		}
	}
	return s.html, nil
}

func (s *fakeSession) Close() error {
	s.open = false
	return nil
}
