package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	version     int
	description string
	statements  []string
}

// migrations are applied in order; a version is never edited once released.
var migrations = []migration{
	{
		version:     1,
		description: "group manager schedules, members and key pairs",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS schedules (
				schedule_id INTEGER PRIMARY KEY AUTOINCREMENT,
				name        TEXT NOT NULL UNIQUE,
				schedule    BLOB NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS members (
				member_id   INTEGER PRIMARY KEY AUTOINCREMENT,
				schedule_id INTEGER NOT NULL REFERENCES schedules(schedule_id) ON DELETE CASCADE,
				identity    TEXT NOT NULL UNIQUE,
				key_name    TEXT NOT NULL,
				public_key  BLOB NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS members_schedule_idx ON members(schedule_id)`,
			`CREATE TABLE IF NOT EXISTS ekeys (
				ekey_name   TEXT PRIMARY KEY,
				public_key  BLOB NOT NULL,
				private_key BLOB NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "producer content keys and consumer decryption keys",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS content_keys (
				time_slot TEXT PRIMARY KEY,
				key       BLOB NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS decryption_keys (
				key_name TEXT PRIMARY KEY,
				key      BLOB NOT NULL
			)`,
		},
	},
}

// Migrate creates the schema_migrations table and applies pending
// migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.DB().ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version           INTEGER PRIMARY KEY,
		description       TEXT NOT NULL,
		applied_at        TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		started := time.Now()
		applied := false
		err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
			if err == nil {
				return nil
			}
			if err != sql.ErrNoRows {
				return err
			}
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description, applied_at, execution_time_ms) VALUES (?, ?, ?, ?)`,
				m.version, m.description, time.Now().UTC().Format(time.RFC3339), time.Since(started).Milliseconds())
			applied = err == nil
			return err
		})
		if err != nil {
			return fmt.Errorf("sqlite: migration %d (%s): %w", m.version, m.description, err)
		}
		if applied {
			s.logger.Info("migration applied", "version", m.version, "description", m.description, "duration", time.Since(started))
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.pool.DB().QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, s.mapper.MapError(err)
	}
	return int(version.Int64), nil
}
