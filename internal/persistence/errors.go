package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConflict is returned when a candidate window intersects an active
	// reservation for the same room.
	ErrConflict = errors.New("persistence: slot conflict")
	// ErrConstraintViolation is returned when a stored value breaks a schema
	// check constraint or a guarded status transition precondition.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
