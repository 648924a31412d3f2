// Package expiry runs the periodic sweep that transitions stale pending
// reservations to expired.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/persistence"
)

// DefaultInterval is the sweep cadence when none is configured.
const DefaultInterval = 5 * time.Minute

// Reconciler sweeps pending reservations whose start time has passed and
// marks them expired. Each record is transitioned independently so one
// failure does not block the rest of the sweep.
type Reconciler struct {
	reservations persistence.ReservationRepository
	publisher    events.Publisher
	now          func() time.Time
	interval     time.Duration
	logger       *slog.Logger
}

// NewReconciler creates a reconciler. A non-positive interval falls back to
// DefaultInterval.
func NewReconciler(
	reservations persistence.ReservationRepository,
	publisher events.Publisher,
	now func() time.Time,
	interval time.Duration,
	logger *slog.Logger,
) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reconciler{
		reservations: reservations,
		publisher:    publisher,
		now:          now,
		interval:     interval,
		logger:       logger.With(slog.String("component", "expiry")),
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("expiry reconciler started", slog.Duration("interval", r.interval))

	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("expiry reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires every pending reservation whose start precedes the current
// time. It returns the number of reservations expired.
func (r *Reconciler) Sweep(ctx context.Context) int {
	reference := r.now()

	stale, err := r.reservations.ListExpirable(ctx, reference)
	if err != nil {
		r.logger.Error("expiry sweep failed to list", slog.String("error", err.Error()))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	expired := 0
	for _, reservation := range stale {
		updated, err := r.reservations.UpdateStatus(ctx, reservation.ID,
			[]persistence.ReservationStatus{persistence.StatusPending},
			persistence.StatusExpired, nil, reference)
		if err != nil {
			// A concurrent confirm or cancel may have won; the next
			// sweep will not see this record again.
			r.logger.Warn("failed to expire reservation",
				slog.String("reservation_id", reservation.ID),
				slog.String("error", err.Error()))
			continue
		}
		expired++

		r.publisher.Publish(ctx, events.Event{
			Type:        events.TypeReservationExpired,
			OccurredAt:  reference,
			Reservation: updated,
		})
	}

	r.logger.Info("expiry sweep completed",
		slog.Int("candidates", len(stale)),
		slog.Int("expired", expired))
	return expired
}
