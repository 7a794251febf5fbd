package vfs

import (
	"context"
	"sync"

	"github.com/opic-systems/opic/core/pkg/certificate"
)

// MemFS is the in-memory backend. A single RWMutex serializes access;
// reads return copies so callers can never alias the stored bytes.
type MemFS struct {
	gate
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemFS(authority *certificate.Authority) *MemFS {
	return &MemFS{
		gate:  gate{authority: authority},
		files: make(map[string][]byte),
	}
}

func (m *MemFS) Read(ctx context.Context, path string, cert *certificate.Certificate) ([]byte, error) {
	if err := m.allow(cert, path, certificate.ActionRead); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemFS) Write(ctx context.Context, path string, data []byte, cert *certificate.Certificate) error {
	if err := m.allow(cert, path, certificate.ActionWrite); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.mu.Lock()
	m.files[path] = stored
	m.mu.Unlock()
	return nil
}

// Seed stores a file without a permission check. Test and bootstrap
// helper only; runtime code always goes through Write.
func (m *MemFS) Seed(path string, data []byte) {
	m.mu.Lock()
	m.files[path] = append([]byte(nil), data...)
	m.mu.Unlock()
}
