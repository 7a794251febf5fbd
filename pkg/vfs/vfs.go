// Package vfs is the certificate-gated storage abstraction. Every read
// and write passes a permission check before the backing store is
// touched; no other component bypasses this interface.
package vfs

import (
	"context"
	"errors"

	"github.com/opic-systems/opic/core/pkg/certificate"
)

var (
	ErrPermissionDenied = errors.New("vfs: permission denied")
	ErrNotFound         = errors.New("vfs: not found")
	ErrTimeout          = errors.New("vfs: backend timeout")
)

// FS is the gated interface. Implementations must serialize concurrent
// access per path so a concurrent write can never be observed mid-parse.
type FS interface {
	Read(ctx context.Context, path string, cert *certificate.Certificate) ([]byte, error)
	Write(ctx context.Context, path string, data []byte, cert *certificate.Certificate) error
}

// gate performs the fail-closed permission check shared by all backends.
type gate struct {
	authority *certificate.Authority
}

func (g gate) allow(cert *certificate.Certificate, path, action string) error {
	if g.authority == nil || !g.authority.CheckPermission(cert, path, action) {
		return ErrPermissionDenied
	}
	return nil
}
