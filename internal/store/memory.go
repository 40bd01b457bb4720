package store

import (
	"context"
	"fmt"
	"time"
)

// MemoryStore is a non-durable Store for tests.
type MemoryStore struct {
	processed map[string]string
	cursor    uint64
	cursorSet bool

	// Persists counts Persist calls so tests can assert commit points.
	Persists int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{processed: make(map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	_, ok := s.processed[txHash]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, txHash string, at time.Time) error {
	if _, ok := s.processed[txHash]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, txHash)
	}
	s.processed[txHash] = at.UTC().Format(time.RFC3339Nano)
	return nil
}

func (s *MemoryStore) Cursor(ctx context.Context) (uint64, bool, error) {
	return s.cursor, s.cursorSet, nil
}

func (s *MemoryStore) AdvanceCursor(ctx context.Context, block uint64) error {
	if s.cursorSet && block < s.cursor {
		return fmt.Errorf("%w: %d < %d", ErrCursorRegression, block, s.cursor)
	}
	s.cursor = block
	s.cursorSet = true
	return nil
}

func (s *MemoryStore) Persist(ctx context.Context) error {
	s.Persists++
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Count returns the number of processed records.
func (s *MemoryStore) Count() int {
	return len(s.processed)
}
