package persistence

import (
	"context"
	"time"
)

// ReservationFilter narrows reservation queries.
type ReservationFilter struct {
	RoomID      string
	RequesterID string
	GroupID     string
	Statuses    []ReservationStatus
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// ReservationRepository stores reservations and performs the atomic mutations
// the booking workflows depend on. Implementations must run each mutating
// method in a single transaction; the conflict-checked creations return
// ErrConflict without writing anything when the candidate window is taken.
type ReservationRepository interface {
	// CreateReservation inserts one reservation after verifying, inside the
	// same transaction, that its window does not intersect any blocking
	// reservation for the room.
	CreateReservation(ctx context.Context, reservation Reservation) error
	// CreateGroup inserts every reservation or none. Any conflict aborts the
	// whole group with ErrConflict.
	CreateGroup(ctx context.Context, reservations []Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// ListBlocking returns pending and confirmed reservations for a room,
	// excluding excludeID when non-empty.
	ListBlocking(ctx context.Context, roomID, excludeID string) ([]Reservation, error)
	// UpdateStatus transitions a reservation out of one of the expected
	// statuses. It returns ErrNotFound when the id is unknown and
	// ErrConstraintViolation when the current status is not in expected.
	UpdateStatus(ctx context.Context, id string, expected []ReservationStatus, next ReservationStatus, reason *string, at time.Time) (Reservation, error)
	// ListExpirable returns pending reservations whose start precedes the
	// reference instant.
	ListExpirable(ctx context.Context, reference time.Time) ([]Reservation, error)
}

// ProposalRepository stores alternative proposals together with the two
// atomic workflows that touch reservations and proposals in one step.
type ProposalRepository interface {
	// CreateRejectionProposal marks the reservation rejected and inserts the
	// pending proposal in one transaction. A second pending proposal for the
	// same reservation fails with ErrDuplicate.
	CreateRejectionProposal(ctx context.Context, reservationID string, reason string, proposal AlternativeProposal) (Reservation, error)
	GetProposal(ctx context.Context, id string) (AlternativeProposal, error)
	ListProposalsForReservation(ctx context.Context, reservationID string) ([]AlternativeProposal, error)
	// AcceptProposal atomically re-checks the proposed window, inserts the
	// replacement reservation as confirmed, and marks the proposal accepted.
	// A conflict aborts with ErrConflict and leaves the proposal pending.
	AcceptProposal(ctx context.Context, proposalID string, replacement Reservation, respondedAt time.Time) (AlternativeProposal, error)
	// RejectProposal marks a pending proposal rejected.
	RejectProposal(ctx context.Context, proposalID string, respondedAt time.Time) (AlternativeProposal, error)
}

// RoomCatalog exposes the read-only room lookups the core needs for
// referential checks and event payloads.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserDirectory exposes the read-only user lookups the core needs for
// referential checks and event payloads.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}
