package breaker

import "errors"

var (
	// ErrInvalidConfig indicates unusable breaker parameters.
	ErrInvalidConfig = errors.New("invalid circuit breaker configuration")

	// ErrOpen indicates the breaker rejected the call without attempting
	// the upstream dependency.
	ErrOpen = errors.New("circuit breaker is open")
)
