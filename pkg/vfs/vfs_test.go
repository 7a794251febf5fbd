package vfs

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/opic-systems/opic/core/pkg/certificate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixture issues a certificate with the given grants against a freshly
// trusted CA.
func fixture(t *testing.T, perms []certificate.Permission) (*certificate.Authority, *certificate.Certificate) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	authority, err := certificate.NewAuthority()
	require.NoError(t, err)
	authority.TrustCA("ca-1", hex.EncodeToString(pub))

	cert, err := certificate.Issue("authority", "alice", perms, "realm-1", "ca-1", priv)
	require.NoError(t, err)
	return authority, cert
}

func TestMemFSGate(t *testing.T) {
	ctx := context.Background()
	authority, cert := fixture(t, []certificate.Permission{
		{Resource: "systems/foo.ops", Action: certificate.ActionRead},
	})

	fs := NewMemFS(authority)
	fs.Seed("systems/foo.ops", []byte("voice main / \"ok\""))
	fs.Seed("systems/bar.ops", []byte("voice main / \"no\""))

	data, err := fs.Read(ctx, "systems/foo.ops", cert)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ok")

	_, err = fs.Read(ctx, "systems/bar.ops", cert)
	require.ErrorIs(t, err, ErrPermissionDenied,
		"an ungranted path is denied even though it exists")

	err = fs.Write(ctx, "systems/foo.ops", []byte("x"), cert)
	require.ErrorIs(t, err, ErrPermissionDenied,
		"a read grant does not imply write")

	_, err = fs.Read(ctx, "systems/foo.ops", nil)
	require.ErrorIs(t, err, ErrPermissionDenied, "nil certificate is denied")
}

func TestMemFSNilAuthorityDeniesEverything(t *testing.T) {
	_, cert := fixture(t, []certificate.Permission{{Resource: "*", Action: certificate.ActionRead}})

	fs := NewMemFS(nil)
	fs.Seed("systems/foo.ops", []byte("data"))
	_, err := fs.Read(context.Background(), "systems/foo.ops", cert)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestMemFSNotFound(t *testing.T) {
	authority, cert := fixture(t, []certificate.Permission{{Resource: "*", Action: certificate.ActionRead}})
	fs := NewMemFS(authority)
	_, err := fs.Read(context.Background(), "systems/missing.ops", cert)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemFSReadReturnsCopy(t *testing.T) {
	authority, cert := fixture(t, []certificate.Permission{{Resource: "*", Action: certificate.ActionRead}})
	fs := NewMemFS(authority)
	fs.Seed("f", []byte("abc"))

	data, err := fs.Read(context.Background(), "f", cert)
	require.NoError(t, err)
	data[0] = 'z'

	again, err := fs.Read(context.Background(), "f", cert)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemFSConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	authority, cert := fixture(t, []certificate.Permission{
		{Resource: "*", Action: certificate.ActionRead},
		{Resource: "*", Action: certificate.ActionWrite},
	})
	fs := NewMemFS(authority)
	require.NoError(t, fs.Write(ctx, "shared", []byte("v0"), cert))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = fs.Write(ctx, "shared", []byte(fmt.Sprintf("v%d", i)), cert)
		}(i)
		go func() {
			defer wg.Done()
			data, err := fs.Read(ctx, "shared", cert)
			if assert.NoError(t, err) {
				assert.Regexp(t, `^v\d+$`, string(data),
					"reads must never observe a torn write")
			}
		}()
	}
	wg.Wait()
}

func TestDirFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	authority, cert := fixture(t, []certificate.Permission{
		{Resource: "*", Action: certificate.ActionRead},
		{Resource: "*", Action: certificate.ActionWrite},
	})

	fs, err := NewDirFS(t.TempDir(), authority)
	require.NoError(t, err)

	require.NoError(t, fs.Write(ctx, "systems/foo.ops", []byte("voice main / \"ok\""), cert))
	data, err := fs.Read(ctx, "systems/foo.ops", cert)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ok")

	_, err = fs.Read(ctx, "systems/missing.ops", cert)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirFSConfinedToRoot(t *testing.T) {
	ctx := context.Background()
	authority, cert := fixture(t, []certificate.Permission{{Resource: "*", Action: certificate.ActionRead}})

	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	require.NoError(t, os.MkdirAll(root, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.ops"), []byte("secret"), 0o600))

	fs, err := NewDirFS(root, authority)
	require.NoError(t, err)

	_, err = fs.Read(ctx, "../outside.ops", cert)
	require.ErrorIs(t, err, ErrNotFound, "traversal must not escape the root")
	_, err = fs.Read(ctx, "a/../../outside.ops", cert)
	require.ErrorIs(t, err, ErrNotFound)
}

// slowFS blocks until the caller's context expires.
type slowFS struct{}

func (slowFS) Read(ctx context.Context, path string, cert *certificate.Certificate) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowFS) Write(ctx context.Context, path string, data []byte, cert *certificate.Certificate) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestBoundedTimeout(t *testing.T) {
	fs := NewBounded(slowFS{}, 10*time.Millisecond, nil)

	_, err := fs.Read(context.Background(), "systems/slow.ops", nil)
	require.ErrorIs(t, err, ErrTimeout)

	err = fs.Write(context.Background(), "systems/slow.ops", []byte("x"), nil)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestBoundedRateLimit(t *testing.T) {
	ctx := context.Background()
	authority, cert := fixture(t, []certificate.Permission{{Resource: "*", Action: certificate.ActionRead}})
	inner := NewMemFS(authority)
	inner.Seed("f", []byte("data"))

	fs := NewBounded(inner, 0, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := fs.Read(ctx, "f", cert)
	require.NoError(t, err, "the burst token admits the first call")

	limited, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = fs.Read(limited, "f", cert)
	require.ErrorIs(t, err, ErrTimeout, "a drained limiter surfaces as timeout")
}

func TestBoundedPassesErrorsThrough(t *testing.T) {
	authority, cert := fixture(t, []certificate.Permission{{Resource: "granted", Action: certificate.ActionRead}})
	inner := NewMemFS(authority)
	fs := NewBounded(inner, time.Second, nil)

	_, err := fs.Read(context.Background(), "denied", cert)
	require.ErrorIs(t, err, ErrPermissionDenied)
	_, err = fs.Read(context.Background(), "granted", cert)
	require.ErrorIs(t, err, ErrNotFound)
}
