package vfs

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/opic-systems/opic/core/pkg/certificate"
)

// Bounded wraps a backend with a per-call deadline and a rate limiter.
// A slow or remote store surfaces ErrTimeout as its own variant; it never
// retries silently.
type Bounded struct {
	inner   FS
	timeout time.Duration
	limiter *rate.Limiter
}

// NewBounded wraps fs. timeout <= 0 means no deadline; limiter may be nil.
func NewBounded(fs FS, timeout time.Duration, limiter *rate.Limiter) *Bounded {
	return &Bounded{inner: fs, timeout: timeout, limiter: limiter}
}

func (b *Bounded) Read(ctx context.Context, path string, cert *certificate.Certificate) ([]byte, error) {
	ctx, cancel, err := b.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	data, err := b.inner.Read(ctx, path, cert)
	return data, b.mapErr(ctx, err)
}

func (b *Bounded) Write(ctx context.Context, path string, data []byte, cert *certificate.Certificate) error {
	ctx, cancel, err := b.enter(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return b.mapErr(ctx, b.inner.Write(ctx, path, data, cert))
}

func (b *Bounded) enter(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, nil, ErrTimeout
		}
	}
	if b.timeout <= 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return ctx, cancel, nil
}

func (b *Bounded) mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
