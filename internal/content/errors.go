package content

import "errors"

// Content errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status filter")
)
