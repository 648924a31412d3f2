package persistence

import "time"

// ReservationStatus is the closed set of lifecycle states for a reservation.
type ReservationStatus string

const (
	// StatusPending marks a reservation awaiting an approver decision.
	StatusPending ReservationStatus = "pending"
	// StatusConfirmed marks an approved reservation holding its slot.
	StatusConfirmed ReservationStatus = "confirmed"
	// StatusRejected marks a reservation declined by an approver.
	StatusRejected ReservationStatus = "rejected"
	// StatusCancelled marks a reservation withdrawn by its requester or an admin.
	StatusCancelled ReservationStatus = "cancelled"
	// StatusExpired marks a pending reservation whose window elapsed undecided.
	StatusExpired ReservationStatus = "expired"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined out of s.
// Confirmed is not terminal: an explicit cancel may still follow.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Blocks reports whether a reservation in this status occupies its room
// window for conflict purposes.
func (s ReservationStatus) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ProposalStatus is the closed set of states for an alternative proposal.
type ProposalStatus string

const (
	// ProposalPending marks a proposal awaiting the requester's response.
	ProposalPending ProposalStatus = "pending"
	// ProposalAccepted marks a proposal the requester accepted.
	ProposalAccepted ProposalStatus = "accepted"
	// ProposalRejected marks a proposal the requester declined.
	ProposalRejected ProposalStatus = "rejected"
)

// Valid reports whether s is a known proposal status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalAccepted, ProposalRejected:
		return true
	}
	return false
}

// Reservation is a time-bounded hold on a room.
type Reservation struct {
	ID               string
	RoomID           string
	RequesterID      string
	Start            time.Time
	End              time.Time
	Status           ReservationStatus
	GroupID          *string
	RejectionReason  *string
	Purpose          string
	ParticipantCount int
	DepartmentID     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AlternativeProposal is a substitute slot offered alongside a rejection.
type AlternativeProposal struct {
	ID                    string
	OriginalReservationID string
	ProposedRoomID        string
	ProposedStart         time.Time
	ProposedEnd           time.Time
	ProposerID            string
	Status                ProposalStatus
	RespondedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Room is a catalog entry for a physical meeting room. The booking core only
// reads rooms; administration owns the write path.
type Room struct {
	ID            string
	Name          string
	Location      string
	Capacity      int
	ResponsibleID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User is an account referenced by reservations. Read-only from the core.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
