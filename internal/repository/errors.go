package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update loses its guard:
	// the row exists but is no longer in the state the caller required.
	ErrConflict = errors.New("state conflict")

	// ErrDuplicateID is returned when an insert collides with an existing
	// unique key; trip-ID generation retries on it.
	ErrDuplicateID = errors.New("duplicate id")
)
