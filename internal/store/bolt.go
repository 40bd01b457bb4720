package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	processedBucket = []byte("processed_txs")
	stateBucket     = []byte("relay_state")
	cursorKey       = []byte("last_scanned_block")
)

const boltOpenTimeout = 1 * time.Second

// BoltStore keeps relay state in an embedded bbolt database. Every mark and
// cursor advance commits its own transaction, so Persist is a no-op.
type BoltStore struct {
	path string
	db   *bolt.DB
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

func (s *BoltStore) Load(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorrupt, s.path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(processedBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: init buckets: %v", ErrCorrupt, err)
	}

	s.db = db
	return nil
}

func (s *BoltStore) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(processedBucket).Get([]byte(txHash)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) MarkProcessed(ctx context.Context, txHash string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(processedBucket)
		if bucket.Get([]byte(txHash)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, txHash)
		}
		return bucket.Put([]byte(txHash), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *BoltStore) Cursor(ctx context.Context) (uint64, bool, error) {
	var cursor uint64
	var set bool
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(stateBucket).Get(cursorKey)
		if len(value) == 8 {
			cursor = binary.BigEndian.Uint64(value)
			set = true
		}
		return nil
	})
	return cursor, set, err
}

func (s *BoltStore) AdvanceCursor(ctx context.Context, block uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		value := bucket.Get(cursorKey)
		if len(value) == 8 {
			current := binary.BigEndian.Uint64(value)
			if block < current {
				return fmt.Errorf("%w: %d < %d", ErrCursorRegression, block, current)
			}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, block)
		return bucket.Put(cursorKey, buf)
	})
}

func (s *BoltStore) Persist(ctx context.Context) error {
	return nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
