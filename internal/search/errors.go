package search

import "errors"

// Sentinel errors for the search controller, checked with errors.Is.
var (
	// ErrConfiguration marks a fatal configuration error: start_q >= 100
	// or an out-of-range threshold.
	ErrConfiguration = errors.New("search: configuration error")

	// ErrInvalidInput marks a zero-dimensional or otherwise unusable
	// source image.
	ErrInvalidInput = errors.New("search: invalid input")

	// ErrEncoderFailure marks a candidate or fallback encode that
	// returned failure; fatal for the image.
	ErrEncoderFailure = errors.New("search: encoder failure")
)
