package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

const proposalColumns = `id, original_reservation_id, proposed_room_id,
	proposed_start_at, proposed_end_at, proposer_id, status, responded_at,
	created_at, updated_at`

// ProposalRepository implements persistence.ProposalRepository over SQLite.
type ProposalRepository struct {
	pool *ConnectionPool
}

// NewProposalRepository creates the repository.
func NewProposalRepository(pool *ConnectionPool) *ProposalRepository {
	return &ProposalRepository{pool: pool}
}

// CreateRejectionProposal rejects the reservation and inserts the pending
// proposal in one transaction. The partial unique index on pending proposals
// turns a second open proposal into persistence.ErrDuplicate.
func (r *ProposalRepository) CreateRejectionProposal(ctx context.Context, reservationID string, reason string, proposal persistence.AlternativeProposal) (persistence.Reservation, error) {
	if proposal.ID == "" || !proposal.Status.Valid() {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	var rejected persistence.Reservation
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		rejected, err = updateStatusTx(tx, reservationID,
			[]persistence.ReservationStatus{persistence.StatusPending},
			persistence.StatusRejected, &reason, proposal.CreatedAt)
		if err != nil {
			return err
		}
		return insertProposal(tx, proposal)
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return rejected, nil
}

func insertProposal(tx *sql.Tx, proposal persistence.AlternativeProposal) error {
	_, err := tx.Exec(
		`INSERT INTO alternative_proposals (`+proposalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		proposal.ID,
		proposal.OriginalReservationID,
		proposal.ProposedRoomID,
		formatTime(proposal.ProposedStart),
		formatTime(proposal.ProposedEnd),
		proposal.ProposerID,
		string(proposal.Status),
		nullTime(proposal.RespondedAt),
		formatTime(proposal.CreatedAt),
		formatTime(proposal.UpdatedAt),
	)
	return mapError(err)
}

// GetProposal retrieves a proposal by id.
func (r *ProposalRepository) GetProposal(ctx context.Context, id string) (persistence.AlternativeProposal, error) {
	if id == "" {
		return persistence.AlternativeProposal{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM alternative_proposals WHERE id = ?`, id)
	return scanProposal(row)
}

// ListProposalsForReservation returns proposals for a reservation ordered by
// creation time.
func (r *ProposalRepository) ListProposalsForReservation(ctx context.Context, reservationID string) ([]persistence.AlternativeProposal, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+proposalColumns+` FROM alternative_proposals
		WHERE original_reservation_id = ?
		ORDER BY created_at ASC, id ASC`,
		reservationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var proposals []persistence.AlternativeProposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return proposals, nil
}

// AcceptProposal re-checks the proposed window, inserts the replacement
// reservation, and marks the proposal accepted, all in one transaction. A
// conflict rolls everything back and leaves the proposal pending.
func (r *ProposalRepository) AcceptProposal(ctx context.Context, proposalID string, replacement persistence.Reservation, respondedAt time.Time) (persistence.AlternativeProposal, error) {
	if replacement.ID == "" || !replacement.Status.Valid() {
		return persistence.AlternativeProposal{}, persistence.ErrConstraintViolation
	}

	var accepted persistence.AlternativeProposal
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := scanProposal(tx.QueryRow(
			`SELECT `+proposalColumns+` FROM alternative_proposals WHERE id = ?`, proposalID))
		if err != nil {
			return err
		}
		if current.Status != persistence.ProposalPending {
			return persistence.ErrConstraintViolation
		}

		if err := insertConflictChecked(tx, replacement); err != nil {
			return err
		}

		accepted, err = respondProposalTx(tx, proposalID, persistence.ProposalAccepted, respondedAt)
		return err
	})
	if err != nil {
		return persistence.AlternativeProposal{}, err
	}
	return accepted, nil
}

// RejectProposal marks a pending proposal rejected.
func (r *ProposalRepository) RejectProposal(ctx context.Context, proposalID string, respondedAt time.Time) (persistence.AlternativeProposal, error) {
	var rejected persistence.AlternativeProposal
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		rejected, err = respondProposalTx(tx, proposalID, persistence.ProposalRejected, respondedAt)
		return err
	})
	if err != nil {
		return persistence.AlternativeProposal{}, err
	}
	return rejected, nil
}

func respondProposalTx(tx *sql.Tx, proposalID string, next persistence.ProposalStatus, respondedAt time.Time) (persistence.AlternativeProposal, error) {
	result, err := tx.Exec(
		`UPDATE alternative_proposals
		SET status = ?, responded_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(next), formatTime(respondedAt), formatTime(respondedAt), proposalID)
	if err != nil {
		return persistence.AlternativeProposal{}, mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AlternativeProposal{}, mapError(err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM alternative_proposals WHERE id = ?`, proposalID).Scan(&exists); err != nil {
			return persistence.AlternativeProposal{}, mapError(err)
		}
		if exists == 0 {
			return persistence.AlternativeProposal{}, persistence.ErrNotFound
		}
		return persistence.AlternativeProposal{}, persistence.ErrConstraintViolation
	}

	return scanProposal(tx.QueryRow(
		`SELECT `+proposalColumns+` FROM alternative_proposals WHERE id = ?`, proposalID))
}

func scanProposal(row rowScanner) (persistence.AlternativeProposal, error) {
	var proposal persistence.AlternativeProposal
	var startStr, endStr, statusStr, createdStr, updatedStr string
	var respondedAt sql.NullString

	err := row.Scan(
		&proposal.ID,
		&proposal.OriginalReservationID,
		&proposal.ProposedRoomID,
		&startStr,
		&endStr,
		&proposal.ProposerID,
		&statusStr,
		&respondedAt,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AlternativeProposal{}, persistence.ErrNotFound
		}
		return persistence.AlternativeProposal{}, mapError(err)
	}

	proposal.Status = persistence.ProposalStatus(statusStr)
	if proposal.RespondedAt, err = timePtr(respondedAt); err != nil {
		return persistence.AlternativeProposal{}, err
	}
	if proposal.ProposedStart, err = parseTime(startStr); err != nil {
		return persistence.AlternativeProposal{}, err
	}
	if proposal.ProposedEnd, err = parseTime(endStr); err != nil {
		return persistence.AlternativeProposal{}, err
	}
	if proposal.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.AlternativeProposal{}, err
	}
	if proposal.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.AlternativeProposal{}, err
	}

	return proposal, nil
}
