package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher provides deterministic hashing for opic artifacts.
type Hasher interface {
	Hash(v interface{}) (string, error)
}

// CanonicalHasher hashes the JCS canonical form of a value with SHA-256.
type CanonicalHasher struct{}

func NewCanonicalHasher() *CanonicalHasher {
	return &CanonicalHasher{}
}

func (h *CanonicalHasher) Hash(v interface{}) (string, error) {
	bytes, err := CanonicalMarshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical serialization failed: %w", err)
	}
	return SumHex(bytes), nil
}

// SumHex returns the hex-encoded SHA-256 digest of data.
func SumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
