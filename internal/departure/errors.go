package departure

import "errors"

var (
	// ErrValidation marks a malformed query parameter (weekday, clock time).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidInput marks a raw update that cannot be turned into an identity.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps every failure coming out of the snapshot store.
	ErrStorage = errors.New("storage failure")
	// ErrUpstreamUnavailable is returned when a poll cycle could not fetch data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
