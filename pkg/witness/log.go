package witness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Log is an append-only witness sink. Records are never updated or
// deleted; a run's audit trail is the sequence in append order.
type Log interface {
	Append(ctx context.Context, w *Witness) error
	List(ctx context.Context) ([]*Witness, error)
}

// MemoryLog is the transient implementation for tests.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []*Witness
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(ctx context.Context, w *Witness) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, w)
	return nil
}

func (l *MemoryLog) List(ctx context.Context) ([]*Witness, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Witness, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

// FileLog persists witnesses as append-only JSON lines. This is the
// format the CLI writes after a top-level run.
type FileLog struct {
	mu   sync.Mutex
	path string
}

func NewFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("witness log: %w", err)
	}
	_ = f.Close()
	return &FileLog{path: path}, nil
}

func (l *FileLog) Append(ctx context.Context, w *Witness) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("witness log: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("witness log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("witness log: %w", err)
	}
	return nil
}

func (l *FileLog) List(ctx context.Context) ([]*Witness, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("witness log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []*Witness
	dec := json.NewDecoder(f)
	for dec.More() {
		var w Witness
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("witness log: corrupt record %d: %w", len(entries), err)
		}
		entries = append(entries, &w)
	}
	return entries, nil
}
