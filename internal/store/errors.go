package store

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a session transition finds the record in
	// a different status than expected. The caller surfaces this as an
	// invalid-or-expired session, never as an internal error.
	ErrConflict = errors.New("store: status conflict")

	// ErrDuplicate is returned when creating a record whose primary key
	// already exists.
	ErrDuplicate = errors.New("store: duplicate record")

	// ErrMalformedRecord is returned when a stored record cannot be
	// serialized or deserialized.
	ErrMalformedRecord = errors.New("store: malformed record")
)
