package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations lists schema versions in application order. Applied versions are
// recorded in schema_migrations so reruns are no-ops.
var migrations = []struct {
	version    int
	statements []string
}{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS rooms (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				location TEXT NOT NULL DEFAULT '',
				capacity INTEGER NOT NULL DEFAULT 0,
				responsible_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'member',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS reservations (
				id TEXT PRIMARY KEY,
				room_id TEXT NOT NULL REFERENCES rooms(id),
				requester_id TEXT NOT NULL REFERENCES users(id),
				start_at TEXT NOT NULL,
				end_at TEXT NOT NULL,
				status TEXT NOT NULL
					CHECK (status IN ('pending','confirmed','rejected','cancelled','expired')),
				group_id TEXT,
				rejection_reason TEXT,
				purpose TEXT NOT NULL DEFAULT '',
				participant_count INTEGER NOT NULL DEFAULT 0,
				department_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (end_at > start_at)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reservations_room_window
				ON reservations (room_id, start_at, end_at, status)`,
			`CREATE INDEX IF NOT EXISTS idx_reservations_expiry
				ON reservations (status, start_at)`,
			`CREATE INDEX IF NOT EXISTS idx_reservations_group
				ON reservations (group_id)`,
			`CREATE TABLE IF NOT EXISTS alternative_proposals (
				id TEXT PRIMARY KEY,
				original_reservation_id TEXT NOT NULL REFERENCES reservations(id),
				proposed_room_id TEXT NOT NULL REFERENCES rooms(id),
				proposed_start_at TEXT NOT NULL,
				proposed_end_at TEXT NOT NULL,
				proposer_id TEXT NOT NULL REFERENCES users(id),
				status TEXT NOT NULL
					CHECK (status IN ('pending','accepted','rejected')),
				responded_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (proposed_end_at > proposed_start_at)
			)`,
			// At most one open proposal per rejected reservation.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_proposals_single_pending
				ON alternative_proposals (original_reservation_id)
				WHERE status = 'pending'`,
		},
	},
}

// Migrate brings the schema up to the latest version.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		applied, err := migrationApplied(ctx, pool.db, migration.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, statement := range migration.statements {
				if _, err := tx.Exec(statement); err != nil {
					return fmt.Errorf("sqlite: migration %d: %w", migration.version, err)
				}
			}
			_, err := tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`,
				migration.version)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: check migration %d: %w", version, err)
	}
	return count > 0, nil
}
