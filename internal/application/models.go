package application

import (
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// Principal represents the already-authenticated actor invoking a service
// method. Role checks beyond requester identity and the admin flag belong to
// the external auth layer.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// ReservationInput captures caller provided fields for a single booking.
type ReservationInput struct {
	RoomID           string
	Start            time.Time
	End              time.Time
	Purpose          string
	ParticipantCount int
	DepartmentID     *string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// Slot is a time-of-day window applied to one or more dates, expressed as
// "HH:MM" wall-clock strings.
type Slot struct {
	Start string
	End   string
}

// BatchInput captures a multi-slot booking request: each slot is expanded
// across the inclusive date range, producing one candidate reservation per
// date and slot.
type BatchInput struct {
	RoomID           string
	Slots            []Slot
	FromDate         time.Time
	ToDate           time.Time
	Purpose          string
	ParticipantCount int
	DepartmentID     *string
}

// CreateBatchParams wraps the data required to create a reservation batch.
type CreateBatchParams struct {
	Principal Principal
	Input     BatchInput
}

// Alternative describes a substitute slot offered alongside a rejection.
type Alternative struct {
	RoomID string
	Start  time.Time
	End    time.Time
}

// RejectParams wraps the data required to reject a reservation.
type RejectParams struct {
	Principal     Principal
	ReservationID string
	Reason        string
	Alternative   *Alternative
}

// ListReservationsParams narrows reservation listings.
type ListReservationsParams struct {
	Principal   Principal
	RoomID      string
	RequesterID string
	Statuses    []persistence.ReservationStatus
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// RoomOccupancy reports how much of a room's opening hours are taken on a
// given day.
type RoomOccupancy struct {
	RoomID        string
	Day           time.Time
	TotalSlots    int
	OccupiedSlots int
	Percentage    float64
}
