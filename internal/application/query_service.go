package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
)

// occupancySlotLength is the grid step used when computing how much of a
// room's opening hours are taken.
const occupancySlotLength = 30 * time.Minute

// QueryService answers read-only questions about reservations and rooms.
type QueryService struct {
	reservations persistence.ReservationRepository
	rooms        persistence.RoomCatalog
	openingStart string
	openingEnd   string
	cache        *occupancyCache
	now          func() time.Time
	logger       *slog.Logger
}

// NewQueryService wires dependencies for the query surface. openingStart and
// openingEnd are "HH:MM" wall-clock bounds for the occupancy grid.
func NewQueryService(
	reservations persistence.ReservationRepository,
	rooms persistence.RoomCatalog,
	openingStart, openingEnd string,
	now func() time.Time,
	logger *slog.Logger,
) *QueryService {
	if now == nil {
		now = time.Now
	}
	if openingStart == "" {
		openingStart = "08:00"
	}
	if openingEnd == "" {
		openingEnd = "20:00"
	}
	return &QueryService{
		reservations: reservations,
		rooms:        rooms,
		openingStart: openingStart,
		openingEnd:   openingEnd,
		cache:        newOccupancyCache(0, 0, now),
		now:          now,
		logger:       logger,
	}
}

// ListReservations enumerates reservations matching the filter, ordered by
// start time.
func (s *QueryService) ListReservations(ctx context.Context, params ListReservationsParams) ([]persistence.Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("QueryService is nil")
	}
	if s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}

	filter := persistence.ReservationFilter{
		RoomID:      params.RoomID,
		RequesterID: params.RequesterID,
		Statuses:    params.Statuses,
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	}

	reservations, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ordered := make([]persistence.Reservation, len(reservations))
	copy(ordered, reservations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	return ordered, nil
}

// RoomOccupancy computes the share of opening-hour slots on the given day
// that intersect a pending or confirmed reservation for the room. Recent
// results are served from a TTL cache.
func (s *QueryService) RoomOccupancy(ctx context.Context, roomID string, day time.Time) (RoomOccupancy, error) {
	if s == nil {
		return RoomOccupancy{}, fmt.Errorf("QueryService is nil")
	}
	if roomID == "" {
		vErr := &ValidationError{}
		vErr.add("room_id", "room is required")
		return RoomOccupancy{}, vErr
	}

	if s.rooms != nil {
		if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return RoomOccupancy{}, ErrNotFound
			}
			return RoomOccupancy{}, err
		}
	}

	key := occupancyCacheKey(roomID, day)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	dayStart := startOfDay(day)
	openStart, err := atClockTime(dayStart, s.openingStart)
	if err != nil {
		return RoomOccupancy{}, fmt.Errorf("invalid opening start: %w", err)
	}
	openEnd, err := atClockTime(dayStart, s.openingEnd)
	if err != nil {
		return RoomOccupancy{}, fmt.Errorf("invalid opening end: %w", err)
	}
	if !openEnd.After(openStart) {
		return RoomOccupancy{}, fmt.Errorf("opening hours are empty")
	}

	blocking, err := s.reservations.ListBlocking(ctx, roomID, "")
	if err != nil {
		return RoomOccupancy{}, err
	}

	total := 0
	occupied := 0
	for slotStart := openStart; slotStart.Before(openEnd); slotStart = slotStart.Add(occupancySlotLength) {
		slotEnd := slotStart.Add(occupancySlotLength)
		if slotEnd.After(openEnd) {
			slotEnd = openEnd
		}
		total++
		for _, reservation := range blocking {
			if interval.Overlaps(slotStart, slotEnd, reservation.Start, reservation.End) {
				occupied++
				break
			}
		}
	}

	occupancy := RoomOccupancy{
		RoomID:        roomID,
		Day:           dayStart,
		TotalSlots:    total,
		OccupiedSlots: occupied,
	}
	if total > 0 {
		occupancy.Percentage = float64(occupied) / float64(total) * 100
	}

	s.cache.Store(key, occupancy)
	return occupancy, nil
}

func atClockTime(dayStart time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, dayStart.Location()), nil
}
