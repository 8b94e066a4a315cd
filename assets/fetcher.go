package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher downloads a remote asset.
type Fetcher interface {
	// Fetch opens sourceURL. The caller closes the returned body.
	Fetch(ctx context.Context, sourceURL string) (body io.ReadCloser, contentType string, err error)
}

// HTTPFetcher downloads assets with GET requests.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher with a 60s timeout.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: 60 * time.Second},
		UserAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: %s returned HTTP %d", ErrFetchFailed, sourceURL, resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
