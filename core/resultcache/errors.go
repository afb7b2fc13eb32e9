package resultcache

import "errors"

var (
	// ErrInvalidConfig indicates unusable cache parameters.
	ErrInvalidConfig = errors.New("invalid result cache configuration")

	// ErrNotReserved indicates Complete or Abandon was called for a
	// fingerprint with no outstanding reservation.
	ErrNotReserved = errors.New("fingerprint is not reserved")
)
