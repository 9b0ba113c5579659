package service

import "errors"

// Sentinel error kinds returned by Service. The HTTP layer maps them to
// status codes.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotStarted   = errors.New("service not started")
	ErrSyncDisabled = errors.New("platform sync not configured")
	ErrBackpressure = errors.New("sync queue full")
)
