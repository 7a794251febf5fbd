package vfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opic-systems/opic/core/pkg/certificate"
)

// DirFS is a backend rooted at a real directory. Paths are cleaned and
// confined to the root; permission checks run against the logical
// (slash-separated, root-relative) path, never the OS path.
type DirFS struct {
	gate
	mu   sync.RWMutex
	root string
}

func NewDirFS(root string, authority *certificate.Authority) (*DirFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vfs root: %w", err)
	}
	return &DirFS{gate: gate{authority: authority}, root: abs}, nil
}

func (d *DirFS) Read(ctx context.Context, path string, cert *certificate.Certificate) ([]byte, error) {
	if err := d.allow(cert, path, certificate.ActionRead); err != nil {
		return nil, err
	}
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("vfs read %s: %w", path, err)
	}
	return data, nil
}

func (d *DirFS) Write(ctx context.Context, path string, data []byte, cert *certificate.Certificate) error {
	if err := d.allow(cert, path, certificate.ActionWrite); err != nil {
		return err
	}
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return fmt.Errorf("vfs write %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("vfs write %s: %w", path, err)
	}
	return nil
}

// resolve maps a logical path under the root and rejects escapes.
func (d *DirFS) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if strings.Contains(clean, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(d.root, clean), nil
}
