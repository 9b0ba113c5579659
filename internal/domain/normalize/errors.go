package normalize

import "errors"

// Sentinel kinds for alias table errors.
var (
	ErrUnknownField = errors.New("unknown canonical field")
	ErrEmptyAliases = errors.New("alias list must not be empty")
)
