package rate

import "errors"

var (
	// ErrRateLimited is returned when the attempt budget for a key is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps Redis failures. Callers should fail closed.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
