package dispatch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bridgeRelay/internal/model"
)

// DeadLetterSink appends abandoned events to a JSONL file.
type DeadLetterSink struct {
	path string
	mu   sync.Mutex
}

func NewDeadLetterSink(path string) *DeadLetterSink {
	return &DeadLetterSink{path: path}
}

// Write appends one dead-letter record as a JSON line.
func (s *DeadLetterSink) Write(record model.DeadLetter) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dead-letter dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dead-letter file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush dead letter: %w", err)
	}
	return nil
}
