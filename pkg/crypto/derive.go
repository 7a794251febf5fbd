package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveRealmKey derives a deterministic Ed25519 private key for a realm
// from a CA master secret. Two realms under one CA never share key material,
// and the derivation is reproducible from the master alone.
func DeriveRealmKey(master []byte, realmID string) (ed25519.PrivateKey, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("empty master secret")
	}
	r := hkdf.New(sha256.New, master, []byte("opic:realm-key:v1"), []byte(realmID))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("hkdf expand failed: %w", err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
