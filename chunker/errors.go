package chunker

import "errors"

var (
	// ErrInvalidMaxChars is returned when MaxChars is not positive.
	ErrInvalidMaxChars = errors.New("max chars must be positive")

	// ErrInvalidOverlap is returned when Overlap is negative.
	ErrInvalidOverlap = errors.New("overlap cannot be negative")
)
