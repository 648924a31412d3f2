package application

import (
	"context"
	"time"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/persistence"
)

// eventEmitter publishes domain events after a mutation commits. Room and
// requester snapshots are best-effort enrichment; a failed lookup never
// delays or fails emission, and a nil publisher silently discards.
type eventEmitter struct {
	publisher events.Publisher
	rooms     persistence.RoomCatalog
	users     persistence.UserDirectory
	now       func() time.Time
}

func (e *eventEmitter) emit(ctx context.Context, typ events.Type, actorID string, reservation persistence.Reservation, proposal *persistence.AlternativeProposal) {
	if e == nil || e.publisher == nil {
		return
	}

	event := events.Event{
		Type:        typ,
		OccurredAt:  e.now(),
		ActorID:     actorID,
		Reservation: reservation,
		Proposal:    proposal,
	}

	if e.rooms != nil {
		if room, err := e.rooms.GetRoom(ctx, reservation.RoomID); err == nil {
			event.Room = &room
		}
	}
	if e.users != nil {
		if user, err := e.users.GetUser(ctx, reservation.RequesterID); err == nil {
			event.Requester = &user
		}
	}

	e.publisher.Publish(ctx, event)
}
