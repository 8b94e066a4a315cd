package assets

import "errors"

var (
	// ErrInvalidSource indicates a source URL from which no object key can be derived.
	ErrInvalidSource = errors.New("invalid asset source")

	// ErrFetchFailed indicates the asset could not be downloaded.
	ErrFetchFailed = errors.New("asset download failed")
)
