package scraper

import "errors"

var (
	// ErrSessionLost indicates the browsing session is no longer usable and
	// must be replaced.
	ErrSessionLost = errors.New("session lost")

	// ErrWaitTimeout indicates a bounded wait expired before the selector matched.
	ErrWaitTimeout = errors.New("timed out waiting for selector")

	// ErrRestartsExhausted indicates the supervisor gave up after MaxRestarts.
	ErrRestartsExhausted = errors.New("session restarts exhausted")

	// ErrNoPage indicates an operation needs a loaded page.
	ErrNoPage = errors.New("no page loaded")
)
