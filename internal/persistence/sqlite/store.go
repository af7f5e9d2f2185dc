// Package sqlite persists group manager, producer and consumer state in a
// SQLite database through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// Store implements persistence.GroupManagerDb, persistence.ProducerDb and
// persistence.ConsumerDb on one database.
type Store struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	logger *slog.Logger
}

var (
	_ persistence.GroupManagerDb = (*Store)(nil)
	_ persistence.ProducerDb     = (*Store)(nil)
	_ persistence.ConsumerDb     = (*Store)(nil)
)

// Open connects to the database described by config. Call Migrate before
// first use.
func Open(config Config, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: logging.Default(logger).With("component", "sqlite"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// write runs fn in a transaction, retrying while the database is locked.
func (s *Store) write(ctx context.Context, fn TransactionFunc) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, fn)
	})
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.pool.DB().QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return true, nil
}

// --- schedules ---

func (s *Store) HasSchedule(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM schedules WHERE name = ?`, name)
}

func (s *Store) ListAllScheduleNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT name FROM schedules ORDER BY name`)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.mapper.MapError(err)
		}
		names = append(names, name)
	}
	return names, s.mapper.MapError(rows.Err())
}

func (s *Store) GetSchedule(ctx context.Context, name string) (*schedule.Schedule, error) {
	var wire []byte
	err := s.pool.DB().QueryRowContext(ctx, `SELECT schedule FROM schedules WHERE name = ?`, name).Scan(&wire)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: schedule %q", persistence.ErrNotFound, name)
	}
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return schedule.DecodeSchedule(wire)
}

func (s *Store) GetScheduleMembers(ctx context.Context, name string) ([]persistence.Member, error) {
	found, err := s.HasSchedule(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: schedule %q", persistence.ErrNotFound, name)
	}

	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT m.key_name, m.public_key
		FROM members m JOIN schedules s ON m.schedule_id = s.schedule_id
		WHERE s.name = ?`, name)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		var keyName string
		member := persistence.Member{ScheduleName: name}
		if err := rows.Scan(&keyName, &member.PublicKey); err != nil {
			return nil, s.mapper.MapError(err)
		}
		if member.KeyName, err = ndn.ParseName(keyName); err != nil {
			return nil, fmt.Errorf("sqlite: stored key name %q: %w", keyName, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	sortMembers(members)
	return members, nil
}

func (s *Store) AddSchedule(ctx context.Context, name string, sched *schedule.Schedule) error {
	wire, err := sched.Encode()
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO schedules (name, schedule) VALUES (?, ?)`, name, wire)
		return s.mapper.MapError(err)
	})
}

func (s *Store) DeleteSchedule(ctx context.Context, name string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM members WHERE schedule_id IN (SELECT schedule_id FROM schedules WHERE name = ?)`, name); err != nil {
			return s.mapper.MapError(err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE name = ?`, name)
		return s.mapper.MapError(err)
	})
}

func (s *Store) RenameSchedule(ctx context.Context, oldName, newName string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE schedules SET name = ? WHERE name = ?`, newName, oldName)
		if err != nil {
			return s.mapper.MapError(err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: schedule %q", persistence.ErrNotFound, oldName)
		}
		return nil
	})
}

func (s *Store) UpdateSchedule(ctx context.Context, name string, sched *schedule.Schedule) error {
	wire, err := sched.Encode()
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (name, schedule) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET schedule = excluded.schedule`, name, wire)
		return s.mapper.MapError(err)
	})
}

// --- members ---

func (s *Store) HasMember(ctx context.Context, identity ndn.Name) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM members WHERE identity = ?`, identity.String())
}

func (s *Store) ListAllMembers(ctx context.Context) ([]ndn.Name, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT identity FROM members`)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var identities []ndn.Name
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, s.mapper.MapError(err)
		}
		identity, err := ndn.ParseName(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: stored identity %q: %w", raw, err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	sortNames(identities)
	return identities, nil
}

func (s *Store) GetMemberSchedule(ctx context.Context, identity ndn.Name) (string, error) {
	var name string
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT s.name FROM members m JOIN schedules s ON m.schedule_id = s.schedule_id
		WHERE m.identity = ?`, identity.String()).Scan(&name)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: member %s", persistence.ErrNotFound, identity)
	}
	return name, s.mapper.MapError(err)
}

func (s *Store) AddMember(ctx context.Context, scheduleName string, keyName ndn.Name, publicKey []byte) error {
	identity := persistence.IdentityOf(keyName)
	return s.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO members (schedule_id, identity, key_name, public_key)
			SELECT schedule_id, ?, ?, ? FROM schedules WHERE name = ?`,
			identity.String(), keyName.String(), publicKey, scheduleName)
		if err != nil {
			return s.mapper.MapError(err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: schedule %q", persistence.ErrForeignKeyViolation, scheduleName)
		}
		return nil
	})
}

func (s *Store) UpdateMemberSchedule(ctx context.Context, identity ndn.Name, scheduleName string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		var scheduleID int64
		err := tx.QueryRowContext(ctx, `SELECT schedule_id FROM schedules WHERE name = ?`, scheduleName).Scan(&scheduleID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: schedule %q", persistence.ErrForeignKeyViolation, scheduleName)
		}
		if err != nil {
			return s.mapper.MapError(err)
		}
		result, err := tx.ExecContext(ctx, `UPDATE members SET schedule_id = ? WHERE identity = ?`, scheduleID, identity.String())
		if err != nil {
			return s.mapper.MapError(err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: member %s", persistence.ErrNotFound, identity)
		}
		return nil
	})
}

func (s *Store) DeleteMember(ctx context.Context, identity ndn.Name) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM members WHERE identity = ?`, identity.String())
		return s.mapper.MapError(err)
	})
}

// --- group key pairs ---

func (s *Store) HasEKey(ctx context.Context, eKeyName ndn.Name) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM ekeys WHERE ekey_name = ?`, eKeyName.String())
}

func (s *Store) AddEKey(ctx context.Context, eKeyName ndn.Name, pair persistence.KeyPair) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO ekeys (ekey_name, public_key, private_key) VALUES (?, ?, ?)`,
			eKeyName.String(), pair.PublicKey, pair.PrivateKey)
		return s.mapper.MapError(err)
	})
}

func (s *Store) GetEKey(ctx context.Context, eKeyName ndn.Name) (persistence.KeyPair, error) {
	var pair persistence.KeyPair
	err := s.pool.DB().QueryRowContext(ctx, `SELECT public_key, private_key FROM ekeys WHERE ekey_name = ?`,
		eKeyName.String()).Scan(&pair.PublicKey, &pair.PrivateKey)
	if err == sql.ErrNoRows {
		return persistence.KeyPair{}, fmt.Errorf("%w: e-key %s", persistence.ErrNotFound, eKeyName)
	}
	return pair, s.mapper.MapError(err)
}

func (s *Store) DeleteEKey(ctx context.Context, eKeyName ndn.Name) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM ekeys WHERE ekey_name = ?`, eKeyName.String())
		return s.mapper.MapError(err)
	})
}

func (s *Store) CleanEKeys(ctx context.Context) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM ekeys`)
		return s.mapper.MapError(err)
	})
}

// --- content keys ---

func (s *Store) HasContentKey(ctx context.Context, bucket time.Time) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM content_keys WHERE time_slot = ?`, persistence.BucketKey(bucket))
}

func (s *Store) GetContentKey(ctx context.Context, bucket time.Time) ([]byte, error) {
	var key []byte
	err := s.pool.DB().QueryRowContext(ctx, `SELECT key FROM content_keys WHERE time_slot = ?`,
		persistence.BucketKey(bucket)).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: content key %s", persistence.ErrNotFound, persistence.BucketKey(bucket))
	}
	return key, s.mapper.MapError(err)
}

func (s *Store) AddContentKey(ctx context.Context, bucket time.Time, key []byte) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO content_keys (time_slot, key) VALUES (?, ?)`,
			persistence.BucketKey(bucket), key)
		return s.mapper.MapError(err)
	})
}

func (s *Store) DeleteContentKey(ctx context.Context, bucket time.Time) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM content_keys WHERE time_slot = ?`, persistence.BucketKey(bucket))
		return s.mapper.MapError(err)
	})
}

// --- consumer keys ---

func (s *Store) GetKey(ctx context.Context, keyName ndn.Name) ([]byte, error) {
	var key []byte
	err := s.pool.DB().QueryRowContext(ctx, `SELECT key FROM decryption_keys WHERE key_name = ?`,
		keyName.String()).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: key %s", persistence.ErrNotFound, keyName)
	}
	return key, s.mapper.MapError(err)
}

func (s *Store) AddKey(ctx context.Context, keyName ndn.Name, key []byte) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO decryption_keys (key_name, key) VALUES (?, ?)`, keyName.String(), key)
		return s.mapper.MapError(err)
	})
}

func (s *Store) DeleteKey(ctx context.Context, keyName ndn.Name) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM decryption_keys WHERE key_name = ?`, keyName.String())
		return s.mapper.MapError(err)
	})
}

func sortMembers(members []persistence.Member) {
	slices.SortFunc(members, func(a, b persistence.Member) int {
		return a.KeyName.Compare(b.KeyName)
	})
}

func sortNames(names []ndn.Name) {
	slices.SortFunc(names, ndn.Name.Compare)
}
