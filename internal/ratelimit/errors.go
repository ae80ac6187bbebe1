package ratelimit

import "errors"

var ErrRateLimited = errors.New("rate limited")

// RateLimitedError wraps a failed decision so callers can render the wait.
type RateLimitedError struct {
	Decision Decision
}

func (e *RateLimitedError) Error() string {
	return "too many requests, please try again later"
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Err returns a *RateLimitedError when d rejected the request, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RateLimitedError{Decision: d}
}
