// Package events defines the domain events emitted after booking mutations
// commit, and a fire-and-forget publisher that downstream collaborators
// (audit log, notifications, email) consume without being able to fail or
// block the core mutation.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// Type identifies a domain event.
type Type string

const (
	// TypeReservationCreated is emitted after a reservation is inserted pending.
	TypeReservationCreated Type = "reservation.created"
	// TypeReservationConfirmed is emitted after an approver confirms.
	TypeReservationConfirmed Type = "reservation.confirmed"
	// TypeReservationRejected is emitted after an approver rejects.
	TypeReservationRejected Type = "reservation.rejected"
	// TypeReservationCancelled is emitted after a requester or admin cancels.
	TypeReservationCancelled Type = "reservation.cancelled"
	// TypeReservationExpired is emitted by the expiry reconciler.
	TypeReservationExpired Type = "reservation.expired"
	// TypeAlternativeProposed is emitted when a rejection carries a substitute slot.
	TypeAlternativeProposed Type = "alternative.proposed"
	// TypeAlternativeAccepted is emitted when the requester accepts a proposal.
	TypeAlternativeAccepted Type = "alternative.accepted"
	// TypeAlternativeRejected is emitted when the requester declines a proposal.
	TypeAlternativeRejected Type = "alternative.rejected"
)

// Event carries the snapshot of the mutated records. Room and Requester are
// read-only enrichments for notification payloads and may be nil when the
// lookup failed; enrichment never blocks emission.
type Event struct {
	Type        Type
	OccurredAt  time.Time
	ActorID     string
	Reservation persistence.Reservation
	Proposal    *persistence.AlternativeProposal
	Room        *persistence.Room
	Requester   *persistence.User
}

// Publisher hands committed events to downstream consumers. Implementations
// must never block the caller or surface failures to it.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Sink receives events from the async publisher's delivery goroutine.
type Sink interface {
	Deliver(ctx context.Context, event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event)

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, event Event) {
	f(ctx, event)
}

// AsyncPublisher buffers events on a channel drained by a single goroutine.
// When the buffer is full the event is dropped and logged; delivery is
// strictly best-effort.
type AsyncPublisher struct {
	logger *slog.Logger
	sinks  []Sink
	buffer chan Event

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncPublisher starts the delivery goroutine. A non-positive buffer size
// falls back to 64.
func NewAsyncPublisher(buffer int, logger *slog.Logger, sinks ...Sink) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &AsyncPublisher{
		logger: logger,
		sinks:  sinks,
		buffer: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event without blocking. A full buffer drops the event,
// as does publishing after Close.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("publisher closed, dropping event",
			"type", string(event.Type),
			"reservation_id", event.Reservation.ID)
		return
	}
	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("event buffer full, dropping event",
			"type", string(event.Type),
			"reservation_id", event.Reservation.ID)
	}
}

// Close stops accepting events and drains the buffer before returning.
func (p *AsyncPublisher) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.buffer)
		<-p.done
	})
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.buffer {
		p.deliver(event)
	}
}

func (p *AsyncPublisher) deliver(event Event) {
	ctx := context.Background()
	for _, sink := range p.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("event sink panicked",
						"type", string(event.Type),
						"panic", r)
				}
			}()
			sink.Deliver(ctx, event)
		}()
	}
}

// NopPublisher discards every event. Useful for tests and tools that do not
// care about side effects.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}
