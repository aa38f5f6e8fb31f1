package store

import "errors"

// ErrNotFound is returned when a keyed lookup (conversation, memory) finds
// no row.
var ErrNotFound = errors.New("store: not found")
