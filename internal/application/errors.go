package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal may not perform
	// the operation, e.g. responding to another requester's proposal.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested reservation or proposal
	// does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSlotTaken is returned when a candidate window intersects an active
	// reservation for the same room.
	ErrSlotTaken = errors.New("application: slot taken")
	// ErrSlotNoLongerAvailable is returned when a proposed substitute slot
	// was booked between proposal and acceptance.
	ErrSlotNoLongerAvailable = errors.New("application: slot no longer available")
	// ErrInvalidTransition is returned when an operation is applied to a
	// reservation or proposal whose current status does not allow it.
	ErrInvalidTransition = errors.New("application: invalid transition")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
