package config

import "errors"

var (
	// ErrNilConfig indicates Load was called with a nil pointer.
	ErrNilConfig = errors.New("config pointer is nil")

	// ErrParseFailed wraps environment parsing failures.
	ErrParseFailed = errors.New("failed to parse environment")
)
