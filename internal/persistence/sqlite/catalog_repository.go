package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/room-reservation/internal/persistence"
)

// CatalogRepository serves the read-only room and user lookups the booking
// core performs. The write path for both catalogs belongs to the external
// administration service; it shares this database but not this code.
type CatalogRepository struct {
	pool *ConnectionPool
}

// NewCatalogRepository creates the repository.
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetRoom retrieves a room by id.
func (r *CatalogRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	var room persistence.Room
	var responsibleID sql.NullString
	var createdStr, updatedStr string

	err := r.pool.db.QueryRowContext(ctx,
		`SELECT id, name, location, capacity, responsible_id, created_at, updated_at
		FROM rooms WHERE id = ?`, id).Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.Capacity,
		&responsibleID,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, mapError(err)
	}

	room.ResponsibleID = stringPtr(responsibleID)
	if room.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Room{}, err
	}

	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (r *CatalogRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, name, location, capacity, responsible_id, created_at, updated_at
		FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		var room persistence.Room
		var responsibleID sql.NullString
		var createdStr, updatedStr string

		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Location,
			&room.Capacity,
			&responsibleID,
			&createdStr,
			&updatedStr,
		); err != nil {
			return nil, mapError(err)
		}

		room.ResponsibleID = stringPtr(responsibleID)
		if room.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		if room.UpdatedAt, err = parseTime(updatedStr); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return rooms, nil
}

// GetUser retrieves a user by id.
func (r *CatalogRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	var user persistence.User
	var createdStr, updatedStr string

	err := r.pool.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, created_at, updated_at
		FROM users WHERE id = ?`, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, mapError(err)
	}

	if user.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.User{}, err
	}

	return user, nil
}
