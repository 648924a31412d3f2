package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// blockingOverlapClause is the single SQL rendering of the half-open overlap
// rule: an existing pending or confirmed reservation conflicts with the
// candidate [start, end) iff existing.start < end AND start < existing.end.
// It mirrors interval.Overlaps; every mutation path re-runs it inside its
// write transaction.
const blockingOverlapClause = `room_id = ?
	AND status IN ('pending', 'confirmed')
	AND start_at < ?
	AND end_at > ?`

const reservationColumns = `id, room_id, requester_id, start_at, end_at, status,
	group_id, rejection_reason, purpose, participant_count, department_id,
	created_at, updated_at`

// ReservationRepository implements persistence.ReservationRepository over
// SQLite.
type ReservationRepository struct {
	pool *ConnectionPool
}

// NewReservationRepository creates the repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

// CreateReservation inserts one conflict-checked reservation.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || !reservation.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertConflictChecked(tx, reservation)
	})
}

// CreateGroup inserts every reservation or none.
func (r *ReservationRepository) CreateGroup(ctx context.Context, reservations []persistence.Reservation) error {
	if len(reservations) == 0 {
		return persistence.ErrConstraintViolation
	}
	for _, reservation := range reservations {
		if reservation.ID == "" || !reservation.Status.Valid() {
			return persistence.ErrConstraintViolation
		}
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, reservation := range reservations {
			if err := insertConflictChecked(tx, reservation); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertConflictChecked verifies the window is free and inserts, all within
// the caller's transaction. Rows inserted earlier in the same transaction are
// visible to the conflict query, so overlapping group members also abort.
func insertConflictChecked(tx *sql.Tx, reservation persistence.Reservation) error {
	var conflicts int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM reservations WHERE `+blockingOverlapClause,
		reservation.RoomID,
		formatTime(reservation.End),
		formatTime(reservation.Start),
	).Scan(&conflicts)
	if err != nil {
		return mapError(err)
	}
	if conflicts > 0 {
		return persistence.ErrConflict
	}

	_, err = tx.Exec(
		`INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.RoomID,
		reservation.RequesterID,
		formatTime(reservation.Start),
		formatTime(reservation.End),
		string(reservation.Status),
		nullString(reservation.GroupID),
		nullString(reservation.RejectionReason),
		reservation.Purpose,
		reservation.ParticipantCount,
		nullString(reservation.DepartmentID),
		formatTime(reservation.CreatedAt),
		formatTime(reservation.UpdatedAt),
	)
	return mapError(err)
}

// GetReservation retrieves a reservation by id.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// ListReservations lists reservations matching the filter, ordered by start.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// ListBlocking returns pending and confirmed reservations for a room.
func (r *ReservationRepository) ListBlocking(ctx context.Context, roomID, excludeID string) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_id = ? AND status IN ('pending', 'confirmed')`
	args := []any{roomID}
	if excludeID != "" {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// UpdateStatus transitions a reservation out of one of the expected statuses.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, expected []persistence.ReservationStatus, next persistence.ReservationStatus, reason *string, at time.Time) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if !next.Valid() || len(expected) == 0 {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	// The reconciler and the decision paths contend on this write; busy
	// errors are retried instead of surfacing to callers.
	var updated persistence.Reservation
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			updated, err = updateStatusTx(tx, id, expected, next, reason, at)
			return err
		})
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return updated, nil
}

func updateStatusTx(tx *sql.Tx, id string, expected []persistence.ReservationStatus, next persistence.ReservationStatus, reason *string, at time.Time) (persistence.Reservation, error) {
	placeholders := make([]string, len(expected))
	args := []any{string(next), nullString(reason), formatTime(at), id}
	for i, status := range expected {
		placeholders[i] = "?"
		args = append(args, string(status))
	}

	result, err := tx.Exec(
		`UPDATE reservations
		SET status = ?, rejection_reason = COALESCE(?, rejection_reason), updated_at = ?
		WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish an unknown id from a guarded transition that lost.
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM reservations WHERE id = ?`, id).Scan(&exists); err != nil {
			return persistence.Reservation{}, mapError(err)
		}
		if exists == 0 {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	row := tx.QueryRow(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// ListExpirable returns pending reservations whose start precedes reference.
func (r *ReservationRepository) ListExpirable(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'pending' AND start_at < ?
		ORDER BY start_at ASC, id ASC`,
		formatTime(reference))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

func buildListQuery(filter persistence.ReservationFilter) (string, []any) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`

	var conditions []string
	var args []any

	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "end_at > ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "start_at < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_at ASC, id ASC"

	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var startStr, endStr, statusStr, createdStr, updatedStr string
	var groupID, rejectionReason, departmentID sql.NullString

	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.RequesterID,
		&startStr,
		&endStr,
		&statusStr,
		&groupID,
		&rejectionReason,
		&reservation.Purpose,
		&reservation.ParticipantCount,
		&departmentID,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, mapError(err)
	}

	reservation.Status = persistence.ReservationStatus(statusStr)
	reservation.GroupID = stringPtr(groupID)
	reservation.RejectionReason = stringPtr(rejectionReason)
	reservation.DepartmentID = stringPtr(departmentID)

	if reservation.Start, err = parseTime(startStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTime(endStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Reservation{}, err
	}

	return reservation, nil
}

func collectReservations(rows *sql.Rows) ([]persistence.Reservation, error) {
	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}
