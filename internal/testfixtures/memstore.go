package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
)

// MemStore is an in-memory implementation of every persistence interface. It
// mirrors the SQLite repositories' semantics, including the conflict re-check
// on insert, the guarded status transitions, and the single pending proposal
// rule, so application tests exercise the same contract the real store
// enforces.
type MemStore struct {
	mu           sync.RWMutex
	reservations map[string]persistence.Reservation
	proposals    map[string]persistence.AlternativeProposal
	rooms        map[string]persistence.Room
	users        map[string]persistence.User
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		reservations: make(map[string]persistence.Reservation),
		proposals:    make(map[string]persistence.AlternativeProposal),
		rooms:        make(map[string]persistence.Room),
		users:        make(map[string]persistence.User),
	}
}

// AddRoom seeds a room.
func (s *MemStore) AddRoom(room persistence.Room) {
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
}

// AddUser seeds a user.
func (s *MemStore) AddUser(user persistence.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// AddReservation seeds a reservation without conflict checking.
func (s *MemStore) AddReservation(reservation persistence.Reservation) {
	s.mu.Lock()
	s.reservations[reservation.ID] = cloneReservation(reservation)
	s.mu.Unlock()
}

// AddProposal seeds a proposal without invariant checking.
func (s *MemStore) AddProposal(proposal persistence.AlternativeProposal) {
	s.mu.Lock()
	s.proposals[proposal.ID] = cloneProposal(proposal)
	s.mu.Unlock()
}

// CreateReservation implements persistence.ReservationRepository.
func (s *MemStore) CreateReservation(_ context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || !reservation.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	if s.hasConflictLocked(reservation.RoomID, reservation.Start, reservation.End, "") {
		return persistence.ErrConflict
	}
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// CreateGroup implements persistence.ReservationRepository. All reservations
// are inserted or none; members conflicting with each other also abort.
func (s *MemStore) CreateGroup(_ context.Context, reservations []persistence.Reservation) error {
	if len(reservations) == 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]persistence.Reservation, len(reservations))
	for _, reservation := range reservations {
		if reservation.ID == "" || !reservation.Status.Valid() {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.reservations[reservation.ID]; ok {
			return persistence.ErrDuplicate
		}
		if _, ok := staged[reservation.ID]; ok {
			return persistence.ErrDuplicate
		}
		if s.hasConflictLocked(reservation.RoomID, reservation.Start, reservation.End, "") {
			return persistence.ErrConflict
		}
		for _, earlier := range staged {
			if earlier.RoomID == reservation.RoomID &&
				interval.Overlaps(earlier.Start, earlier.End, reservation.Start, reservation.End) {
				return persistence.ErrConflict
			}
		}
		staged[reservation.ID] = cloneReservation(reservation)
	}

	for id, reservation := range staged {
		s.reservations[id] = reservation
	}
	return nil
}

// GetReservation implements persistence.ReservationRepository.
func (s *MemStore) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// ListReservations implements persistence.ReservationRepository.
func (s *MemStore) ListReservations(_ context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []persistence.Reservation
	for _, reservation := range s.reservations {
		if filter.RoomID != "" && reservation.RoomID != filter.RoomID {
			continue
		}
		if filter.RequesterID != "" && reservation.RequesterID != filter.RequesterID {
			continue
		}
		if filter.GroupID != "" && (reservation.GroupID == nil || *reservation.GroupID != filter.GroupID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, reservation.Status) {
			continue
		}
		if filter.StartsAfter != nil && !reservation.End.After(*filter.StartsAfter) {
			continue
		}
		if filter.EndsBefore != nil && !reservation.Start.Before(*filter.EndsBefore) {
			continue
		}
		matched = append(matched, cloneReservation(reservation))
	}

	sortReservations(matched)
	return matched, nil
}

// ListBlocking implements persistence.ReservationRepository.
func (s *MemStore) ListBlocking(_ context.Context, roomID, excludeID string) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blocking []persistence.Reservation
	for _, reservation := range s.reservations {
		if reservation.RoomID != roomID || !reservation.Status.Blocks() {
			continue
		}
		if excludeID != "" && reservation.ID == excludeID {
			continue
		}
		blocking = append(blocking, cloneReservation(reservation))
	}

	sortReservations(blocking)
	return blocking, nil
}

// UpdateStatus implements persistence.ReservationRepository.
func (s *MemStore) UpdateStatus(_ context.Context, id string, expected []persistence.ReservationStatus, next persistence.ReservationStatus, reason *string, at time.Time) (persistence.Reservation, error) {
	if !next.Valid() || len(expected) == 0 {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStatusLocked(id, expected, next, reason, at)
}

func (s *MemStore) updateStatusLocked(id string, expected []persistence.ReservationStatus, next persistence.ReservationStatus, reason *string, at time.Time) (persistence.Reservation, error) {
	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if !containsStatus(expected, reservation.Status) {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	reservation.Status = next
	if reason != nil {
		value := *reason
		reservation.RejectionReason = &value
	}
	reservation.UpdatedAt = at
	s.reservations[id] = reservation
	return cloneReservation(reservation), nil
}

// ListExpirable implements persistence.ReservationRepository.
func (s *MemStore) ListExpirable(_ context.Context, reference time.Time) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []persistence.Reservation
	for _, reservation := range s.reservations {
		if reservation.Status == persistence.StatusPending && reservation.Start.Before(reference) {
			stale = append(stale, cloneReservation(reservation))
		}
	}

	sortReservations(stale)
	return stale, nil
}

// CreateRejectionProposal implements persistence.ProposalRepository.
func (s *MemStore) CreateRejectionProposal(_ context.Context, reservationID string, reason string, proposal persistence.AlternativeProposal) (persistence.Reservation, error) {
	if proposal.ID == "" || !proposal.Status.Valid() {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[proposal.ID]; ok {
		return persistence.Reservation{}, persistence.ErrDuplicate
	}
	for _, existing := range s.proposals {
		if existing.OriginalReservationID == proposal.OriginalReservationID &&
			existing.Status == persistence.ProposalPending {
			return persistence.Reservation{}, persistence.ErrDuplicate
		}
	}

	rejected, err := s.updateStatusLocked(reservationID,
		[]persistence.ReservationStatus{persistence.StatusPending},
		persistence.StatusRejected, &reason, proposal.CreatedAt)
	if err != nil {
		return persistence.Reservation{}, err
	}

	s.proposals[proposal.ID] = cloneProposal(proposal)
	return rejected, nil
}

// GetProposal implements persistence.ProposalRepository.
func (s *MemStore) GetProposal(_ context.Context, id string) (persistence.AlternativeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proposal, ok := s.proposals[id]
	if !ok {
		return persistence.AlternativeProposal{}, persistence.ErrNotFound
	}
	return cloneProposal(proposal), nil
}

// ListProposalsForReservation implements persistence.ProposalRepository.
func (s *MemStore) ListProposalsForReservation(_ context.Context, reservationID string) ([]persistence.AlternativeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var proposals []persistence.AlternativeProposal
	for _, proposal := range s.proposals {
		if proposal.OriginalReservationID == reservationID {
			proposals = append(proposals, cloneProposal(proposal))
		}
	}

	sort.Slice(proposals, func(i, j int) bool {
		if !proposals[i].CreatedAt.Equal(proposals[j].CreatedAt) {
			return proposals[i].CreatedAt.Before(proposals[j].CreatedAt)
		}
		return proposals[i].ID < proposals[j].ID
	})
	return proposals, nil
}

// AcceptProposal implements persistence.ProposalRepository. A window conflict
// returns ErrConflict without touching the proposal or inserting the
// replacement.
func (s *MemStore) AcceptProposal(_ context.Context, proposalID string, replacement persistence.Reservation, respondedAt time.Time) (persistence.AlternativeProposal, error) {
	if replacement.ID == "" || !replacement.Status.Valid() {
		return persistence.AlternativeProposal{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[proposalID]
	if !ok {
		return persistence.AlternativeProposal{}, persistence.ErrNotFound
	}
	if proposal.Status != persistence.ProposalPending {
		return persistence.AlternativeProposal{}, persistence.ErrConstraintViolation
	}

	if _, ok := s.reservations[replacement.ID]; ok {
		return persistence.AlternativeProposal{}, persistence.ErrDuplicate
	}
	if s.hasConflictLocked(replacement.RoomID, replacement.Start, replacement.End, "") {
		return persistence.AlternativeProposal{}, persistence.ErrConflict
	}

	s.reservations[replacement.ID] = cloneReservation(replacement)

	responded := respondedAt
	proposal.Status = persistence.ProposalAccepted
	proposal.RespondedAt = &responded
	proposal.UpdatedAt = respondedAt
	s.proposals[proposalID] = proposal
	return cloneProposal(proposal), nil
}

// RejectProposal implements persistence.ProposalRepository.
func (s *MemStore) RejectProposal(_ context.Context, proposalID string, respondedAt time.Time) (persistence.AlternativeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[proposalID]
	if !ok {
		return persistence.AlternativeProposal{}, persistence.ErrNotFound
	}
	if proposal.Status != persistence.ProposalPending {
		return persistence.AlternativeProposal{}, persistence.ErrConstraintViolation
	}

	responded := respondedAt
	proposal.Status = persistence.ProposalRejected
	proposal.RespondedAt = &responded
	proposal.UpdatedAt = respondedAt
	s.proposals[proposalID] = proposal
	return cloneProposal(proposal), nil
}

// GetRoom implements persistence.RoomCatalog.
func (s *MemStore) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms implements persistence.RoomCatalog.
func (s *MemStore) ListRooms(_ context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

// GetUser implements persistence.UserDirectory.
func (s *MemStore) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *MemStore) hasConflictLocked(roomID string, start, end time.Time, excludeID string) bool {
	for _, existing := range s.reservations {
		if existing.RoomID != roomID || !existing.Status.Blocks() {
			continue
		}
		if excludeID != "" && existing.ID == excludeID {
			continue
		}
		if interval.Overlaps(existing.Start, existing.End, start, end) {
			return true
		}
	}
	return false
}

func containsStatus(statuses []persistence.ReservationStatus, status persistence.ReservationStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func sortReservations(reservations []persistence.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		if !reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].Start.Before(reservations[j].Start)
		}
		return reservations[i].ID < reservations[j].ID
	})
}

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	clone := reservation
	if reservation.GroupID != nil {
		value := *reservation.GroupID
		clone.GroupID = &value
	}
	if reservation.RejectionReason != nil {
		value := *reservation.RejectionReason
		clone.RejectionReason = &value
	}
	if reservation.DepartmentID != nil {
		value := *reservation.DepartmentID
		clone.DepartmentID = &value
	}
	return clone
}

func cloneProposal(proposal persistence.AlternativeProposal) persistence.AlternativeProposal {
	clone := proposal
	if proposal.RespondedAt != nil {
		value := *proposal.RespondedAt
		clone.RespondedAt = &value
	}
	return clone
}
