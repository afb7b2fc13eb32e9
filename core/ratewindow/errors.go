package ratewindow

import "errors"

var (
	// ErrInvalidConfig indicates unusable rate limiting parameters.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")
)
