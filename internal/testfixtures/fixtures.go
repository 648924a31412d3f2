// Package testfixtures provides deterministic clocks, identifier generators,
// record fixtures, and an in-memory store for exercising the booking core
// without a database.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

var (
	userCounter        uint64
	roomCounter        uint64
	reservationCounter uint64
	proposalCounter    uint64
)

var referenceTime = time.Date(2030, time.June, 3, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It sits far enough in the future that fixture windows pass the
// not-in-the-past validation against real clocks.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user fixture.
type UserOption func(*persistence.User)

// NewUserFixture returns a deterministic user with optional overrides.
func NewUserFixture(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-24 * time.Hour)
	user := persistence.User{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        "member",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserRole overrides the generated role.
func WithUserRole(role string) UserOption {
	return func(u *persistence.User) { u.Role = role }
}

// RoomOption configures a generated room fixture.
type RoomOption func(*persistence.Room)

// NewRoomFixture returns a deterministic room with optional overrides.
func NewRoomFixture(opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(-24 * time.Hour)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Floor 2",
		Capacity:  8,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(r *persistence.Room) { r.Capacity = capacity }
}

// ReservationOption configures a generated reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservationFixture returns a deterministic pending reservation one hour
// long, starting at ReferenceTime plus an hour per fixture so consecutive
// fixtures never overlap.
func NewReservationFixture(roomID, requesterID string, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	reservation := persistence.Reservation{
		ID:          fmt.Sprintf("resv-%03d", idx),
		RoomID:      roomID,
		RequesterID: requesterID,
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      persistence.StatusPending,
		Purpose:     "standup",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) { r.ID = id }
}

// WithWindow overrides the reservation window.
func WithWindow(start, end time.Time) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Start = start
		r.End = end
	}
}

// WithStatus overrides the reservation status.
func WithStatus(status persistence.ReservationStatus) ReservationOption {
	return func(r *persistence.Reservation) { r.Status = status }
}

// WithGroupID sets the batch group identifier.
func WithGroupID(groupID string) ReservationOption {
	return func(r *persistence.Reservation) { r.GroupID = &groupID }
}

// ProposalOption configures a generated proposal fixture.
type ProposalOption func(*persistence.AlternativeProposal)

// NewProposalFixture returns a deterministic pending proposal for the given
// reservation, offering the given room one day after ReferenceTime.
func NewProposalFixture(reservationID, roomID, proposerID string, opts ...ProposalOption) persistence.AlternativeProposal {
	idx := atomic.AddUint64(&proposalCounter, 1)
	start := referenceTime.Add(24*time.Hour + time.Duration(idx)*time.Hour)
	proposal := persistence.AlternativeProposal{
		ID:                    fmt.Sprintf("prop-%03d", idx),
		OriginalReservationID: reservationID,
		ProposedRoomID:        roomID,
		ProposedStart:         start,
		ProposedEnd:           start.Add(time.Hour),
		ProposerID:            proposerID,
		Status:                persistence.ProposalPending,
		CreatedAt:             referenceTime,
		UpdatedAt:             referenceTime,
	}
	for _, opt := range opts {
		opt(&proposal)
	}
	return proposal
}

// WithProposalID overrides the generated proposal ID.
func WithProposalID(id string) ProposalOption {
	return func(p *persistence.AlternativeProposal) { p.ID = id }
}

// WithProposedWindow overrides the proposed window.
func WithProposedWindow(start, end time.Time) ProposalOption {
	return func(p *persistence.AlternativeProposal) {
		p.ProposedStart = start
		p.ProposedEnd = end
	}
}

// WithProposalStatus overrides the proposal status.
func WithProposalStatus(status persistence.ProposalStatus) ProposalOption {
	return func(p *persistence.AlternativeProposal) { p.Status = status }
}
