package store

import "errors"

var (
	// ErrStorageUnavailable wraps failures of the underlying device
	// storage (open, write, serialization). Callers keep their in-memory
	// state authoritative until the next successful write.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	ErrNotFound = errors.New("record not found")
)
