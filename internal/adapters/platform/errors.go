package platform

import "errors"

// Sentinel kinds for platform client errors.
var (
	ErrRateLimited      = errors.New("grant platform rate limit exceeded")
	ErrUnexpectedStatus = errors.New("unexpected grant platform status")
	ErrInvalidBaseURL   = errors.New("invalid grant platform base url")
	ErrTooManyPages     = errors.New("grant platform pagination did not terminate")
)
