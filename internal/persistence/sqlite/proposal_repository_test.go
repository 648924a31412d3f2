package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

type proposalFixture struct {
	reservations *ReservationRepository
	proposals    *ProposalRepository
	pool         *ConnectionPool
}

// newProposalFixture seeds two rooms, two users, and one pending reservation
// "resv-1" in room-1.
func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()

	pool := newTestPool(t)
	seedRoom(t, pool, "room-1")
	seedRoom(t, pool, "room-2")
	seedUser(t, pool, "user-1")
	seedUser(t, pool, "user-2")

	reservations := NewReservationRepository(pool)
	if err := reservations.CreateReservation(context.Background(),
		testReservation("resv-1", time.Hour, time.Hour)); err != nil {
		t.Fatalf("seed reservation failed: %v", err)
	}

	return &proposalFixture{
		reservations: reservations,
		proposals:    NewProposalRepository(pool),
		pool:         pool,
	}
}

func testProposal(id, reservationID string, startOffset time.Duration) persistence.AlternativeProposal {
	start := testBase.Add(startOffset)
	return persistence.AlternativeProposal{
		ID:                    id,
		OriginalReservationID: reservationID,
		ProposedRoomID:        "room-2",
		ProposedStart:         start,
		ProposedEnd:           start.Add(time.Hour),
		ProposerID:            "user-2",
		Status:                persistence.ProposalPending,
		CreatedAt:             testBase,
		UpdatedAt:             testBase,
	}
}

func TestProposalRepository_CreateRejectionProposal(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	rejected, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "double booked",
		testProposal("prop-1", "resv-1", 24*time.Hour))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if rejected.Status != persistence.StatusRejected {
		t.Fatalf("expected rejected reservation, got %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "double booked" {
		t.Fatalf("reason not stored: %v", rejected.RejectionReason)
	}

	stored, err := f.proposals.GetProposal(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get proposal failed: %v", err)
	}
	if stored.Status != persistence.ProposalPending {
		t.Fatalf("expected pending proposal, got %s", stored.Status)
	}
	if stored.OriginalReservationID != "resv-1" {
		t.Fatalf("proposal references wrong reservation %q", stored.OriginalReservationID)
	}
}

func TestProposalRepository_CreateRejectionProposal_RequiresPendingReservation(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.reservations.UpdateStatus(ctx, "resv-1",
		[]persistence.ReservationStatus{persistence.StatusPending},
		persistence.StatusConfirmed, nil, testBase); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	_, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "late",
		testProposal("prop-1", "resv-1", 24*time.Hour))
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	// The proposal insert must have been rolled back.
	if _, err := f.proposals.GetProposal(ctx, "prop-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("proposal must not be persisted, got %v", err)
	}
}

func TestProposalRepository_SinglePendingProposalPerReservation(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "first",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Re-seed a pending reservation state by inserting the proposal directly:
	// the partial unique index must refuse a second pending proposal for the
	// same reservation.
	err := f.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertProposal(tx, testProposal("prop-2", "resv-1", 48*time.Hour))
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestProposalRepository_AcceptProposal(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "moved",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	replacement := testReservation("resv-2", 24*time.Hour, time.Hour)
	replacement.RoomID = "room-2"
	replacement.Status = persistence.StatusConfirmed

	respondedAt := testBase.Add(time.Hour)
	accepted, err := f.proposals.AcceptProposal(ctx, "prop-1", replacement, respondedAt)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if accepted.Status != persistence.ProposalAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.RespondedAt == nil || !accepted.RespondedAt.Equal(respondedAt) {
		t.Fatalf("responded timestamp not stored: %v", accepted.RespondedAt)
	}

	stored, err := f.reservations.GetReservation(ctx, "resv-2")
	if err != nil {
		t.Fatalf("replacement not persisted: %v", err)
	}
	if stored.Status != persistence.StatusConfirmed {
		t.Fatalf("expected confirmed replacement, got %s", stored.Status)
	}
}

func TestProposalRepository_AcceptProposal_ConflictRollsBack(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "moved",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Book the proposed window in room-2 before the requester accepts.
	squatter := testReservation("squatter", 24*time.Hour, time.Hour)
	squatter.RoomID = "room-2"
	squatter.Status = persistence.StatusConfirmed
	if err := f.reservations.CreateReservation(ctx, squatter); err != nil {
		t.Fatalf("squatter create failed: %v", err)
	}

	replacement := testReservation("resv-2", 24*time.Hour, time.Hour)
	replacement.RoomID = "room-2"
	replacement.Status = persistence.StatusConfirmed

	_, err := f.proposals.AcceptProposal(ctx, "prop-1", replacement, testBase.Add(time.Hour))
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Proposal stays pending, replacement is absent.
	current, getErr := f.proposals.GetProposal(ctx, "prop-1")
	if getErr != nil {
		t.Fatalf("get proposal failed: %v", getErr)
	}
	if current.Status != persistence.ProposalPending {
		t.Fatalf("expected pending proposal after rollback, got %s", current.Status)
	}
	if _, err := f.reservations.GetReservation(ctx, "resv-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("replacement must not be persisted, got %v", err)
	}
}

func TestProposalRepository_AcceptProposal_RequiresPending(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "moved",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.proposals.RejectProposal(ctx, "prop-1", testBase.Add(time.Hour)); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	replacement := testReservation("resv-2", 24*time.Hour, time.Hour)
	replacement.RoomID = "room-2"
	replacement.Status = persistence.StatusConfirmed

	_, err := f.proposals.AcceptProposal(ctx, "prop-1", replacement, testBase.Add(2*time.Hour))
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestProposalRepository_RejectProposal(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "moved",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	respondedAt := testBase.Add(time.Hour)
	rejected, err := f.proposals.RejectProposal(ctx, "prop-1", respondedAt)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != persistence.ProposalRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RespondedAt == nil || !rejected.RespondedAt.Equal(respondedAt) {
		t.Fatalf("responded timestamp not stored: %v", rejected.RespondedAt)
	}

	// Responding twice fails the guard.
	if _, err := f.proposals.RejectProposal(ctx, "prop-1", respondedAt); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestProposalRepository_ListProposalsForReservation(t *testing.T) {
	t.Parallel()

	f := newProposalFixture(t)
	ctx := context.Background()

	if _, err := f.proposals.CreateRejectionProposal(ctx, "resv-1", "moved",
		testProposal("prop-1", "resv-1", 24*time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.proposals.RejectProposal(ctx, "prop-1", testBase.Add(time.Hour)); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	listed, err := f.proposals.ListProposalsForReservation(ctx, "resv-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "prop-1" {
		t.Fatalf("unexpected proposals %+v", listed)
	}
}
