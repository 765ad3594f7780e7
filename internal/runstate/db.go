package runstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by the database store. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	getStateQuery = `SELECT value FROM run_state WHERE key = $1`

	putStateQuery = `
INSERT INTO run_state (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	clearStateQuery = `DELETE FROM run_state WHERE key = $1`

	acquireLeaseQuery = `
INSERT INTO run_lease (key, owner, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
WHERE run_lease.expires_at < $4 OR run_lease.owner = EXCLUDED.owner`

	releaseLeaseQuery = `DELETE FROM run_lease WHERE key = $1 AND owner = $2`
)

// DBStore keeps the run state in the run_state table of a PostgreSQL database
// and implements Locker over the run_lease table.
type DBStore struct {
	db  DBTX
	key string
	now func() time.Time
}

var (
	_ Store  = (*DBStore)(nil)
	_ Locker = (*DBStore)(nil)
)

// NewDBStore creates a database-backed store for the given record key
func NewDBStore(db DBTX, key string) *DBStore {
	if key == "" {
		key = DefaultKey
	}
	return &DBStore{db: db, key: key, now: time.Now}
}

// Get reads the run state row. A missing row is Fresh.
func (s *DBStore) Get(ctx context.Context) (State, error) {
	var value string
	err := s.db.QueryRow(ctx, getStateQuery, s.key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fresh(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to query run state: %w", err)
	}
	state, err := Decode(value)
	if err != nil {
		return State{}, fmt.Errorf("run state row %q: %w", s.key, err)
	}
	return state, nil
}

// Put upserts the run state row
func (s *DBStore) Put(ctx context.Context, state State) error {
	if state.Kind == KindFresh {
		return fmt.Errorf("cannot write a fresh run state, use Clear instead")
	}
	if _, err := s.db.Exec(ctx, putStateQuery, s.key, state.Encode(), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert run state: %w", err)
	}
	return nil
}

// Clear deletes the run state row
func (s *DBStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, clearStateQuery, s.key); err != nil {
		return fmt.Errorf("failed to delete run state: %w", err)
	}
	return nil
}

// Acquire upserts the lease row unless a different owner holds an unexpired lease
func (s *DBStore) Acquire(ctx context.Context, owner string, ttl time.Duration) (Lease, error) {
	now := s.now().UTC()
	tag, err := s.db.Exec(ctx, acquireLeaseQuery, s.key, owner, now.Add(ttl), now)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrLeaseHeld
	}
	return &dbLease{store: s, owner: owner}, nil
}

type dbLease struct {
	store *DBStore
	owner string
}

func (l *dbLease) Release(ctx context.Context) error {
	tag, err := l.store.db.Exec(ctx, releaseLeaseQuery, l.store.key, l.owner)
	if err != nil {
		return fmt.Errorf("failed to release run lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		slog.Warn("Lease was taken over before release", "key", l.store.key, "owner", l.owner)
	}
	return nil
}
