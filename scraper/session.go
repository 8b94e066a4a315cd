package scraper

import (
	"context"
	"time"
)

// Session is a stateful browsing context driven by one traversal at a time.
// Implementations wrap failures that make the session unusable in
// ErrSessionLost; every other error is scoped to the single operation.
type Session interface {
	// Open starts the session. It must be called before any other method.
	Open(ctx context.Context) error

	// Navigate loads url as the current page.
	Navigate(ctx context.Context, url string) error

	// WaitFor blocks until selector matches on the current page or timeout
	// elapses, in which case it returns ErrWaitTimeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// SessionFactory creates unopened sessions. A Supervisor calls it once per attempt.
type SessionFactory func() Session
