package rate

import "errors"

var (
	// ErrRateLimited is returned once the failure budget of a window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis transport failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
