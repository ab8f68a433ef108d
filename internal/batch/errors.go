package batch

import "errors"

// Sentinel errors for the batch driver, checked with errors.Is.
var (
	// ErrInvalidInput marks a source file that could not be decoded:
	// unsupported format or corrupt bytes. The image is skipped.
	ErrInvalidInput = errors.New("batch: invalid input")

	// ErrIOFailure marks a source read or output write failure. The
	// image is skipped; the batch continues.
	ErrIOFailure = errors.New("batch: io failure")
)
