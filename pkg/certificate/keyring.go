package certificate

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opic-systems/opic/core/pkg/crypto"
)

// Keyring manages CA signing keys. Keys are held in memory and can be
// persisted as hex-encoded seeds under a directory, one file per CA.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]ed25519.PrivateKey)}
}

// Generate creates a fresh Ed25519 key for caID, replacing any prior key.
func (k *Keyring) Generate(caID string) (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	k.mu.Lock()
	k.keys[caID] = priv
	k.mu.Unlock()
	return priv, nil
}

// Key returns the private key for caID.
func (k *Keyring) Key(caID string) (ed25519.PrivateKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	priv, ok := k.keys[caID]
	return priv, ok
}

// PublicKeyHex returns the hex public key for caID.
func (k *Keyring) PublicKeyHex(caID string) (string, bool) {
	priv, ok := k.Key(caID)
	if !ok {
		return "", false
	}
	return hex.EncodeToString(priv.Public().(ed25519.PublicKey)), true
}

// DeriveRealmKey derives the per-realm subkey for caID via HKDF, so a
// realm-scoped signer never holds the CA master key.
func (k *Keyring) DeriveRealmKey(caID, realmID string) (ed25519.PrivateKey, error) {
	priv, ok := k.Key(caID)
	if !ok {
		return nil, fmt.Errorf("unknown ca %q", caID)
	}
	return crypto.DeriveRealmKey(priv.Seed(), realmID)
}

// Save writes every seed to dir as <ca>.key, mode 0600.
func (k *Keyring) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("keyring dir: %w", err)
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	for caID, priv := range k.keys {
		path := filepath.Join(dir, caID+".key")
		data := hex.EncodeToString(priv.Seed())
		if err := os.WriteFile(path, []byte(data+"\n"), 0o600); err != nil {
			return fmt.Errorf("write key %s: %w", caID, err)
		}
	}
	return nil
}

// Load reads every *.key seed file under dir into the ring.
func (k *Keyring) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("keyring dir: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".key") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read key %s: %w", name, err)
		}
		seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(seed) != ed25519.SeedSize {
			return fmt.Errorf("key %s: invalid seed", name)
		}
		k.keys[strings.TrimSuffix(name, ".key")] = ed25519.NewKeyFromSeed(seed)
	}
	return nil
}
