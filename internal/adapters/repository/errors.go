package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("score set not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrEmptyKey     = errors.New("score set key must not be empty")
)
