package scraper

import (
	"net/url"
	"strings"

	"github.com/poiesic/lectern/core"
)

// NormalizeLink rewrites raw into an absolute http(s) URL against base.
// Protocol-relative links take the scheme of base and root-relative links
// its origin. Returns nil for empty, fragment-only and non-navigable links.
func NormalizeLink(base *url.URL, raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == core.NotAvailable || strings.HasPrefix(raw, "#") {
		return nil
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	if !u.IsAbs() {
		if base == nil {
			return nil
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if u.Host == "" {
		return nil
	}
	return core.Ptr(u.String())
}
