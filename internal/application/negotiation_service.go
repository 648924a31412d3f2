package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/persistence"
)

// NegotiationService lets the original requester respond to an alternative
// proposal attached to their rejected reservation.
type NegotiationService struct {
	reservations persistence.ReservationRepository
	proposals    persistence.ProposalRepository
	emitter      *eventEmitter
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewNegotiationService wires dependencies for proposal responses.
func NewNegotiationService(
	reservations persistence.ReservationRepository,
	proposals persistence.ProposalRepository,
	rooms persistence.RoomCatalog,
	users persistence.UserDirectory,
	publisher events.Publisher,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *NegotiationService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &NegotiationService{
		reservations: reservations,
		proposals:    proposals,
		emitter:      &eventEmitter{publisher: publisher, rooms: rooms, users: users, now: now},
		idGenerator:  idGenerator,
		now:          now,
		logger:       logger,
	}
}

// AcceptAlternative materializes a pending proposal into a new confirmed
// reservation. The proposed window is re-checked inside the transaction that
// inserts the replacement: the substitute room may have been booked since the
// proposal was made, in which case the proposal stays pending and the caller
// observes ErrSlotNoLongerAvailable.
func (s *NegotiationService) AcceptAlternative(ctx context.Context, principal Principal, proposalID string) (persistence.Reservation, persistence.AlternativeProposal, error) {
	if s == nil {
		return persistence.Reservation{}, persistence.AlternativeProposal{}, fmt.Errorf("NegotiationService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "negotiation", "accept", "proposal_id", proposalID)

	proposal, original, err := s.loadPendingProposal(ctx, principal, proposalID)
	if err != nil {
		logger.Warn("accept rejected", "error_kind", ErrorKind(err))
		return persistence.Reservation{}, persistence.AlternativeProposal{}, err
	}

	now := s.now()
	replacement := persistence.Reservation{
		ID:               s.idGenerator(),
		RoomID:           proposal.ProposedRoomID,
		RequesterID:      original.RequesterID,
		Start:            proposal.ProposedStart,
		End:              proposal.ProposedEnd,
		Status:           persistence.StatusConfirmed,
		Purpose:          original.Purpose,
		ParticipantCount: original.ParticipantCount,
		DepartmentID:     original.DepartmentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	accepted, err := s.proposals.AcceptProposal(ctx, proposalID, replacement, now)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			logger.Warn("proposed slot no longer available")
			return persistence.Reservation{}, persistence.AlternativeProposal{}, ErrSlotNoLongerAvailable
		}
		mapped := mapProposalRepoError(err)
		logger.Warn("accept failed", "error_kind", ErrorKind(mapped))
		return persistence.Reservation{}, persistence.AlternativeProposal{}, mapped
	}

	s.emitter.emit(ctx, events.TypeAlternativeAccepted, principal.UserID, replacement, &accepted)
	logger.Info("alternative accepted", "reservation_id", replacement.ID)
	return replacement, accepted, nil
}

// RejectAlternative declines a pending proposal; the original reservation
// remains rejected with no further action.
func (s *NegotiationService) RejectAlternative(ctx context.Context, principal Principal, proposalID string) (persistence.AlternativeProposal, error) {
	if s == nil {
		return persistence.AlternativeProposal{}, fmt.Errorf("NegotiationService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "negotiation", "reject", "proposal_id", proposalID)

	_, original, err := s.loadPendingProposal(ctx, principal, proposalID)
	if err != nil {
		logger.Warn("reject refused", "error_kind", ErrorKind(err))
		return persistence.AlternativeProposal{}, err
	}

	rejected, err := s.proposals.RejectProposal(ctx, proposalID, s.now())
	if err != nil {
		mapped := mapProposalRepoError(err)
		logger.Warn("reject failed", "error_kind", ErrorKind(mapped))
		return persistence.AlternativeProposal{}, mapped
	}

	s.emitter.emit(ctx, events.TypeAlternativeRejected, principal.UserID, original, &rejected)
	logger.Info("alternative rejected")
	return rejected, nil
}

// loadPendingProposal fetches the proposal and its original reservation and
// verifies the caller is the original requester and the proposal is still
// open.
func (s *NegotiationService) loadPendingProposal(ctx context.Context, principal Principal, proposalID string) (persistence.AlternativeProposal, persistence.Reservation, error) {
	proposal, err := s.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return persistence.AlternativeProposal{}, persistence.Reservation{}, mapProposalRepoError(err)
	}
	if proposal.Status != persistence.ProposalPending {
		return persistence.AlternativeProposal{}, persistence.Reservation{}, ErrInvalidTransition
	}

	original, err := s.reservations.GetReservation(ctx, proposal.OriginalReservationID)
	if err != nil {
		return persistence.AlternativeProposal{}, persistence.Reservation{}, mapReservationRepoError(err)
	}
	if original.RequesterID != principal.UserID {
		return persistence.AlternativeProposal{}, persistence.Reservation{}, ErrUnauthorized
	}

	return proposal, original, nil
}
