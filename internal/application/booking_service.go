package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
)

// maxBatchDays caps the inclusive date range a batch request may span.
const maxBatchDays = 31

// BookingService orchestrates single and multi-slot reservation creation.
type BookingService struct {
	reservations persistence.ReservationRepository
	rooms        persistence.RoomCatalog
	users        persistence.UserDirectory
	detector     *OverlapDetector
	emitter      *eventEmitter
	idGenerator  func() string
	now          func() time.Time
	minDuration  time.Duration
	logger       *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(
	reservations persistence.ReservationRepository,
	rooms persistence.RoomCatalog,
	users persistence.UserDirectory,
	publisher events.Publisher,
	idGenerator func() string,
	now func() time.Time,
	minDuration time.Duration,
	logger *slog.Logger,
) *BookingService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if minDuration <= 0 {
		minDuration = interval.DefaultMinimumDuration
	}
	return &BookingService{
		reservations: reservations,
		rooms:        rooms,
		users:        users,
		detector:     NewOverlapDetector(reservations),
		emitter:      &eventEmitter{publisher: publisher, rooms: rooms, users: users, now: now},
		idGenerator:  idGenerator,
		now:          now,
		minDuration:  minDuration,
		logger:       logger,
	}
}

// CreateReservation validates the request and inserts a pending reservation.
// The conflict check and the insert run inside one repository transaction, so
// of two concurrent overlapping requests exactly one succeeds; the other
// observes ErrSlotTaken.
func (s *BookingService) CreateReservation(ctx context.Context, params CreateReservationParams) (persistence.Reservation, error) {
	if s == nil {
		return persistence.Reservation{}, fmt.Errorf("BookingService is nil")
	}
	input := params.Input
	logger := serviceLogger(ctx, s.logger, "booking", "create_reservation", "room_id", input.RoomID)

	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}
	if params.Principal.UserID == "" {
		vErr.add("requester_id", "requester is required")
	}
	if vErr.HasErrors() {
		return persistence.Reservation{}, vErr
	}

	if err := interval.Validate(input.Start, input.End, s.now(), s.minDuration); err != nil {
		return persistence.Reservation{}, err
	}

	if err := s.ensureRoomExists(ctx, input.RoomID); err != nil {
		return persistence.Reservation{}, err
	}
	if err := s.ensureUserExists(ctx, params.Principal.UserID); err != nil {
		return persistence.Reservation{}, err
	}

	createdAt := s.now()
	reservation := persistence.Reservation{
		ID:               s.idGenerator(),
		RoomID:           input.RoomID,
		RequesterID:      params.Principal.UserID,
		Start:            input.Start,
		End:              input.End,
		Status:           persistence.StatusPending,
		Purpose:          strings.TrimSpace(input.Purpose),
		ParticipantCount: input.ParticipantCount,
		DepartmentID:     input.DepartmentID,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}

	if err := s.reservations.CreateReservation(ctx, reservation); err != nil {
		mapped := mapReservationRepoError(err)
		logger.Warn("reservation not created", "error_kind", ErrorKind(mapped))
		return persistence.Reservation{}, mapped
	}

	s.emitter.emit(ctx, events.TypeReservationCreated, params.Principal.UserID, reservation, nil)
	logger.Info("reservation created", "reservation_id", reservation.ID)

	return reservation, nil
}

// CreateBatch expands the requested slots across the inclusive date range and
// inserts every resulting reservation under one group, or none at all. Any
// conflicting candidate rejects the entire batch.
func (s *BookingService) CreateBatch(ctx context.Context, params CreateBatchParams) ([]persistence.Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	input := params.Input
	logger := serviceLogger(ctx, s.logger, "booking", "create_batch", "room_id", input.RoomID)

	candidates, err := s.expandBatch(params)
	if err != nil {
		return nil, err
	}

	if err := s.ensureRoomExists(ctx, input.RoomID); err != nil {
		return nil, err
	}
	if err := s.ensureUserExists(ctx, params.Principal.UserID); err != nil {
		return nil, err
	}

	// Fail fast before opening the insert transaction. The repository
	// re-checks under the write lock, so this is an optimization, not the
	// correctness boundary.
	for _, candidate := range candidates {
		conflicted, err := s.detector.HasConflict(ctx, candidate.RoomID, candidate.Start, candidate.End, "")
		if err != nil {
			return nil, err
		}
		if conflicted {
			logger.Warn("batch rejected, slot taken", "start", candidate.Start)
			return nil, ErrSlotTaken
		}
	}

	if err := s.reservations.CreateGroup(ctx, candidates); err != nil {
		mapped := mapReservationRepoError(err)
		logger.Warn("batch not created", "error_kind", ErrorKind(mapped))
		return nil, mapped
	}

	for _, reservation := range candidates {
		s.emitter.emit(ctx, events.TypeReservationCreated, params.Principal.UserID, reservation, nil)
	}
	logger.Info("batch created",
		"group_id", derefString(candidates[0].GroupID),
		"count", len(candidates))

	return candidates, nil
}

// expandBatch validates the batch shape and produces one candidate
// reservation per date and slot, all sharing a fresh group id.
func (s *BookingService) expandBatch(params CreateBatchParams) ([]persistence.Reservation, error) {
	input := params.Input

	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}
	if params.Principal.UserID == "" {
		vErr.add("requester_id", "requester is required")
	}
	if len(input.Slots) == 0 {
		vErr.add("slots", "at least one slot is required")
	}
	if input.FromDate.IsZero() || input.ToDate.IsZero() {
		vErr.add("dates", "date range is required")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	from := startOfDay(input.FromDate)
	to := startOfDay(input.ToDate)
	if to.Before(from) {
		vErr.add("dates", "end date must not precede start date")
		return nil, vErr
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxBatchDays {
		vErr.add("dates", fmt.Sprintf("date range is limited to %d days", maxBatchDays))
		return nil, vErr
	}

	type slotTimes struct {
		startHour, startMin int
		endHour, endMin     int
	}
	parsed := make([]slotTimes, 0, len(input.Slots))
	for i, slot := range input.Slots {
		start, err := time.Parse("15:04", slot.Start)
		if err != nil {
			vErr.add(fmt.Sprintf("slots[%d]", i), "start must be HH:MM")
			continue
		}
		end, err := time.Parse("15:04", slot.End)
		if err != nil {
			vErr.add(fmt.Sprintf("slots[%d]", i), "end must be HH:MM")
			continue
		}
		parsed = append(parsed, slotTimes{
			startHour: start.Hour(), startMin: start.Minute(),
			endHour: end.Hour(), endMin: end.Minute(),
		})
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	groupID := s.idGenerator()
	now := s.now()
	loc := input.FromDate.Location()

	candidates := make([]persistence.Reservation, 0, days*len(parsed))
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, slot := range parsed {
			start := time.Date(day.Year(), day.Month(), day.Day(), slot.startHour, slot.startMin, 0, 0, loc)
			end := time.Date(day.Year(), day.Month(), day.Day(), slot.endHour, slot.endMin, 0, 0, loc)
			if err := interval.Validate(start, end, now, s.minDuration); err != nil {
				return nil, err
			}
			candidates = append(candidates, persistence.Reservation{
				ID:               s.idGenerator(),
				RoomID:           input.RoomID,
				RequesterID:      params.Principal.UserID,
				Start:            start,
				End:              end,
				Status:           persistence.StatusPending,
				GroupID:          &groupID,
				Purpose:          strings.TrimSpace(input.Purpose),
				ParticipantCount: input.ParticipantCount,
				DepartmentID:     input.DepartmentID,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	for i := 1; i < len(candidates); i++ {
		prev, cur := candidates[i-1], candidates[i]
		if interval.Overlaps(prev.Start, prev.End, cur.Start, cur.End) {
			vErr.add("slots", "batch contains overlapping candidates")
			return nil, vErr
		}
	}

	return candidates, nil
}

func (s *BookingService) ensureRoomExists(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("room_id", "room does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func (s *BookingService) ensureUserExists(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("requester_id", "requester does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrConflict):
		return ErrSlotTaken
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("references", "related records are missing")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		return ErrInvalidTransition
	}
	return err
}
