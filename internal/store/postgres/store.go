package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bridgeRelay/internal/store"
)

const uniqueViolation = "23505"

// Store provides Postgres persistence for the processed-event ledger.
// Every mark and cursor advance is its own durable statement.
type Store struct {
	pool *pgxpool.Pool
	name string
}

// NewStore connects to Postgres. name distinguishes multiple relays sharing
// one database; each owns its own cursor row.
func NewStore(ctx context.Context, dsn, name string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		return nil, fmt.Errorf("relay name is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, name: name}, nil
}

// Load creates the schema if missing and verifies the connection.
func (s *Store) Load(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_events (
			relay_name TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (relay_name, tx_hash)
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create processed_events: %v", store.ErrCorrupt, err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS relay_state (
			relay_name TEXT PRIMARY KEY,
			last_scanned_block BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create relay_state: %v", store.ErrCorrupt, err)
	}
	return nil
}

func (s *Store) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_events WHERE relay_name=$1 AND tx_hash=$2
		)
	`, s.name, txHash)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) MarkProcessed(ctx context.Context, txHash string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_events (relay_name, tx_hash, processed_at)
		VALUES ($1, $2, $3)
	`, s.name, txHash, at.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", store.ErrDuplicateRecord, txHash)
		}
		return err
	}
	return nil
}

func (s *Store) Cursor(ctx context.Context) (uint64, bool, error) {
	var block int64
	row := s.pool.QueryRow(ctx, `
		SELECT last_scanned_block FROM relay_state WHERE relay_name=$1
	`, s.name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

func (s *Store) AdvanceCursor(ctx context.Context, block uint64) error {
	current, set, err := s.Cursor(ctx)
	if err != nil {
		return err
	}
	if set && block < current {
		return fmt.Errorf("%w: %d < %d", store.ErrCursorRegression, block, current)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO relay_state (relay_name, last_scanned_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (relay_name) DO UPDATE
		SET last_scanned_block = EXCLUDED.last_scanned_block, updated_at = now()
	`, s.name, int64(block))
	return err
}

func (s *Store) Persist(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
