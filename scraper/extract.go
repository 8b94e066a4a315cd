package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/lectern/core"
)

// ExtractPageItems returns one publication per listing item in html.
// Each field is extracted independently; a field that cannot be found is left
// nil and an item without a title gets core.NotAvailable as its title.
func ExtractPageItems(html string, sel Selectors, base *url.URL) ([]core.Publication, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	logger := slog.Default().With("component", "scraper")
	var pubs []core.Publication
	doc.Find(sel.Item).Each(func(i int, item *goquery.Selection) {
		pub := core.Publication{
			Title:      core.NotAvailable,
			Summary:    core.Ptr(collapse(item.Find(sel.Summary).First().Text())),
			ImageLink:  attrLink(item, sel.Image, "src", base),
			DetailLink: attrLink(item, sel.DetailLink, "href", base),
		}
		if title := collapse(item.Find(sel.Title).First().Text()); title != "" {
			pub.Title = title
		}

		logger.Debug("extracted item",
			"index", i,
			"title", pub.Title,
			"has_summary", pub.Summary != nil,
			"has_image", pub.ImageLink != nil,
			"has_detail", pub.DetailLink != nil)
		pubs = append(pubs, pub)
	})
	return pubs, nil
}

// ExtractFileLink returns the first link matching sel.FileLink on a detail page.
func ExtractFileLink(html string, sel Selectors, base *url.URL) (*string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}
	return attrLink(doc.Selection, sel.FileLink, "href", base), nil
}

func attrLink(s *goquery.Selection, selector, attr string, base *url.URL) *string {
	v, ok := s.Find(selector).First().Attr(attr)
	if !ok {
		return nil
	}
	return NormalizeLink(base, v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
