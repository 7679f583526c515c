package cache

import "errors"

// Canonical, backend-neutral errors cache consumers must handle.
var (
	ErrNotFound = errors.New("cache: not found")
)
