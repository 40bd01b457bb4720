package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCorrupt means persisted state is unreadable. There is no safe
	// default to fall back to, so callers must treat this as fatal.
	ErrCorrupt = errors.New("store: persisted state is corrupt")

	// ErrDuplicateRecord means MarkProcessed was called for a transaction
	// that is already recorded. The caller is required to check IsProcessed
	// first, so this signals a bookkeeping bug, not a runtime condition.
	ErrDuplicateRecord = errors.New("store: transaction already recorded")

	// ErrCursorRegression means AdvanceCursor was asked to move the scan
	// cursor backwards, violating its monotonicity invariant.
	ErrCursorRegression = errors.New("store: cursor would move backwards")
)

// Store is the durable ledger of processed lock events plus the scan cursor.
// It is owned by a single relay process; no concurrent writers are assumed.
type Store interface {
	// Load restores the cursor and the processed set. A missing backing
	// file/table yields an empty set and an unset cursor; unreadable state
	// yields an error wrapping ErrCorrupt.
	Load(ctx context.Context) error

	// IsProcessed reports whether txHash has already triggered an action.
	IsProcessed(ctx context.Context, txHash string) (bool, error)

	// MarkProcessed records txHash. Fails with ErrDuplicateRecord if the
	// hash is already present.
	MarkProcessed(ctx context.Context, txHash string, at time.Time) error

	// Cursor returns the last scanned block and whether it has been set.
	Cursor(ctx context.Context) (uint64, bool, error)

	// AdvanceCursor sets the last scanned block. Fails with
	// ErrCursorRegression if block is below the current cursor.
	AdvanceCursor(ctx context.Context, block uint64) error

	// Persist durably writes pending state. The relay calls it once per
	// fully-processed block range; backends with per-record durability may
	// treat it as a no-op.
	Persist(ctx context.Context) error

	Close() error
}
