package queue

import "errors"

var (
	// ErrInvalidPriority is returned for priorities outside low..high.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrUnsupportedDriver is returned by Open for unknown store drivers.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
	// ErrNilClaim is returned when resolving without a claim.
	ErrNilClaim = errors.New("claim is nil")
)
