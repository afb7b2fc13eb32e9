package retry

import "errors"

var (
	// ErrInvalidConfig indicates unusable retry parameters.
	ErrInvalidConfig = errors.New("invalid retry configuration")

	// ErrNilBreaker indicates the executor was created without a breaker.
	ErrNilBreaker = errors.New("circuit breaker is required")

	// ErrExhausted wraps the final failure after the attempt budget is
	// spent.
	ErrExhausted = errors.New("retry attempts exhausted")
)
