package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps the processed set and scan cursor in a single JSON file.
// Marks accumulate in memory; Persist writes the whole document via a tmp
// file + rename so a crash mid-write never leaves a half-updated file.
type FileStore struct {
	path string

	processed map[string]string
	cursor    uint64
	cursorSet bool
}

type fileState struct {
	LastScannedBlock *uint64           `json:"last_scanned_block,omitempty"`
	ProcessedTxs     map[string]string `json:"processed_txs"`
	UpdatedAt        string            `json:"updated_at"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:      path,
		processed: make(map[string]string),
	}
}

func (s *FileStore) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrCorrupt, s.path, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrCorrupt, s.path, err)
	}

	if state.ProcessedTxs != nil {
		s.processed = state.ProcessedTxs
	}
	if state.LastScannedBlock != nil {
		s.cursor = *state.LastScannedBlock
		s.cursorSet = true
	}
	return nil
}

func (s *FileStore) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	_, ok := s.processed[txHash]
	return ok, nil
}

func (s *FileStore) MarkProcessed(ctx context.Context, txHash string, at time.Time) error {
	if _, ok := s.processed[txHash]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, txHash)
	}
	s.processed[txHash] = at.UTC().Format(time.RFC3339Nano)
	return nil
}

func (s *FileStore) Cursor(ctx context.Context) (uint64, bool, error) {
	return s.cursor, s.cursorSet, nil
}

func (s *FileStore) AdvanceCursor(ctx context.Context, block uint64) error {
	if s.cursorSet && block < s.cursor {
		return fmt.Errorf("%w: %d < %d", ErrCursorRegression, block, s.cursor)
	}
	s.cursor = block
	s.cursorSet = true
	return nil
}

func (s *FileStore) Persist(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	state := fileState{
		ProcessedTxs: s.processed,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s.cursorSet {
		cursor := s.cursor
		state.LastScannedBlock = &cursor
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write store tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename store file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
