package storage

import "errors"

// Sentinel errors shared by the memory, postgres and clickhouse backends.
// Callers match them with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing primary key. Idempotent writers treat it as success.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record fails validation before
	// it reaches the backend.
	ErrInvalidInput = errors.New("invalid input")
)
