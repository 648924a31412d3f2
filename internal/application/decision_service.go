package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
)

// DecisionService applies approver decisions and requester cancellations to
// the reservation state machine. Who may confirm or reject is decided by the
// external auth layer before these methods are invoked; the service enforces
// only the transitions themselves.
type DecisionService struct {
	reservations persistence.ReservationRepository
	proposals    persistence.ProposalRepository
	emitter      *eventEmitter
	idGenerator  func() string
	now          func() time.Time
	minDuration  time.Duration
	logger       *slog.Logger
}

// NewDecisionService wires dependencies for decision operations.
func NewDecisionService(
	reservations persistence.ReservationRepository,
	proposals persistence.ProposalRepository,
	rooms persistence.RoomCatalog,
	users persistence.UserDirectory,
	publisher events.Publisher,
	idGenerator func() string,
	now func() time.Time,
	minDuration time.Duration,
	logger *slog.Logger,
) *DecisionService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if minDuration <= 0 {
		minDuration = interval.DefaultMinimumDuration
	}
	return &DecisionService{
		reservations: reservations,
		proposals:    proposals,
		emitter:      &eventEmitter{publisher: publisher, rooms: rooms, users: users, now: now},
		idGenerator:  idGenerator,
		now:          now,
		minDuration:  minDuration,
		logger:       logger,
	}
}

// Confirm transitions a pending reservation to confirmed.
func (s *DecisionService) Confirm(ctx context.Context, principal Principal, reservationID string) (persistence.Reservation, error) {
	if s == nil {
		return persistence.Reservation{}, fmt.Errorf("DecisionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "decision", "confirm", "reservation_id", reservationID)

	reservation, err := s.reservations.UpdateStatus(ctx, reservationID,
		[]persistence.ReservationStatus{persistence.StatusPending},
		persistence.StatusConfirmed, nil, s.now())
	if err != nil {
		mapped := mapReservationRepoError(err)
		logger.Warn("confirm failed", "error_kind", ErrorKind(mapped))
		return persistence.Reservation{}, mapped
	}

	s.emitter.emit(ctx, events.TypeReservationConfirmed, principal.UserID, reservation, nil)
	logger.Info("reservation confirmed")
	return reservation, nil
}

// Reject transitions a pending reservation to rejected, storing the reason.
// When an alternative slot is supplied, the rejection and the pending
// proposal are persisted in one transaction so a proposal never references a
// reservation left pending.
func (s *DecisionService) Reject(ctx context.Context, params RejectParams) (persistence.Reservation, *persistence.AlternativeProposal, error) {
	if s == nil {
		return persistence.Reservation{}, nil, fmt.Errorf("DecisionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "decision", "reject", "reservation_id", params.ReservationID)

	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		vErr := &ValidationError{}
		vErr.add("reason", "rejection reason is required")
		return persistence.Reservation{}, nil, vErr
	}

	if params.Alternative == nil {
		reservation, err := s.reservations.UpdateStatus(ctx, params.ReservationID,
			[]persistence.ReservationStatus{persistence.StatusPending},
			persistence.StatusRejected, &reason, s.now())
		if err != nil {
			mapped := mapReservationRepoError(err)
			logger.Warn("reject failed", "error_kind", ErrorKind(mapped))
			return persistence.Reservation{}, nil, mapped
		}
		s.emitter.emit(ctx, events.TypeReservationRejected, params.Principal.UserID, reservation, nil)
		logger.Info("reservation rejected")
		return reservation, nil, nil
	}

	alt := *params.Alternative
	vErr := &ValidationError{}
	if strings.TrimSpace(alt.RoomID) == "" {
		vErr.add("alternative.room_id", "alternative room is required")
	}
	if vErr.HasErrors() {
		return persistence.Reservation{}, nil, vErr
	}
	if err := interval.Validate(alt.Start, alt.End, s.now(), s.minDuration); err != nil {
		return persistence.Reservation{}, nil, err
	}

	now := s.now()
	proposal := persistence.AlternativeProposal{
		ID:                    s.idGenerator(),
		OriginalReservationID: params.ReservationID,
		ProposedRoomID:        alt.RoomID,
		ProposedStart:         alt.Start,
		ProposedEnd:           alt.End,
		ProposerID:            params.Principal.UserID,
		Status:                persistence.ProposalPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	reservation, err := s.proposals.CreateRejectionProposal(ctx, params.ReservationID, reason, proposal)
	if err != nil {
		mapped := mapProposalRepoError(err)
		logger.Warn("reject with alternative failed", "error_kind", ErrorKind(mapped))
		return persistence.Reservation{}, nil, mapped
	}

	s.emitter.emit(ctx, events.TypeReservationRejected, params.Principal.UserID, reservation, nil)
	s.emitter.emit(ctx, events.TypeAlternativeProposed, params.Principal.UserID, reservation, &proposal)
	logger.Info("reservation rejected with alternative", "proposal_id", proposal.ID)
	return reservation, &proposal, nil
}

// Cancel transitions a reservation to cancelled from any non-terminal
// status. Only the original requester or an admin may cancel. Re-cancelling
// an already-cancelled reservation is a no-op success.
func (s *DecisionService) Cancel(ctx context.Context, principal Principal, reservationID string) (persistence.Reservation, error) {
	if s == nil {
		return persistence.Reservation{}, fmt.Errorf("DecisionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "decision", "cancel", "reservation_id", reservationID)

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return persistence.Reservation{}, mapReservationRepoError(err)
	}

	if existing.RequesterID != principal.UserID && !principal.IsAdmin {
		return persistence.Reservation{}, ErrUnauthorized
	}

	if existing.Status == persistence.StatusCancelled {
		logger.Info("reservation already cancelled")
		return existing, nil
	}

	reservation, err := s.reservations.UpdateStatus(ctx, reservationID,
		[]persistence.ReservationStatus{persistence.StatusPending, persistence.StatusConfirmed},
		persistence.StatusCancelled, nil, s.now())
	if err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			// Lost a race or the reservation is in another terminal state.
			current, getErr := s.reservations.GetReservation(ctx, reservationID)
			if getErr == nil && current.Status == persistence.StatusCancelled {
				return current, nil
			}
			return persistence.Reservation{}, ErrInvalidTransition
		}
		mapped := mapReservationRepoError(err)
		logger.Warn("cancel failed", "error_kind", ErrorKind(mapped))
		return persistence.Reservation{}, mapped
	}

	s.emitter.emit(ctx, events.TypeReservationCancelled, principal.UserID, reservation, nil)
	logger.Info("reservation cancelled")
	return reservation, nil
}

func mapProposalRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		// A pending proposal already exists for this reservation.
		return ErrInvalidTransition
	}
	return mapReservationRepoError(err)
}
