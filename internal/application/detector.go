package application

import (
	"context"
	"time"

	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
)

// OverlapDetector answers whether a candidate window intersects any blocking
// (pending or confirmed) reservation for a room. Every mutation path shares
// this detector; the sqlite repository re-runs the same predicate inside its
// write transaction so concurrent writers cannot both pass.
type OverlapDetector struct {
	reservations persistence.ReservationRepository
}

// NewOverlapDetector wires the detector to a reservation repository.
func NewOverlapDetector(reservations persistence.ReservationRepository) *OverlapDetector {
	return &OverlapDetector{reservations: reservations}
}

// HasConflict reports whether [start, end) intersects a blocking reservation
// for roomID. excludeID, when non-empty, ignores the reservation being
// modified.
func (d *OverlapDetector) HasConflict(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	if d == nil || d.reservations == nil {
		return false, nil
	}
	blocking, err := d.reservations.ListBlocking(ctx, roomID, excludeID)
	if err != nil {
		return false, err
	}
	for _, existing := range blocking {
		if interval.Overlaps(start, end, existing.Start, existing.End) {
			return true, nil
		}
	}
	return false, nil
}
