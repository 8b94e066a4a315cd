package scraper

// Selectors are the CSS selectors locating listing and detail page elements.
type Selectors struct {
	Item       string // One listing entry
	Title      string // Title anchor within an item
	Image      string // Thumbnail within an item
	DetailLink string // Anchor to the detail page within an item
	Summary    string // Summary block within an item
	NextPage   string // Pagination control advancing the listing
	Overlay    string // Dismiss control of a consent banner
	FileLink   string // Downloadable file anchor on the detail page
}

// DefaultSelectors matches the CFA Institute Research Foundation listing.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:       ".coveo-result-frame",
		Title:      "h4.coveo-title a",
		Image:      "img.coveo-result-image",
		DetailLink: "a.CoveoResultLink",
		Summary:    "div.result-body",
		NextPage:   ".coveo-pager-next",
		Overlay:    "#privacy-banner .alert-dismissable",
		FileLink:   `a[href$=".pdf"]`,
	}
}
