// Package certificate issues and verifies signed capability grants.
//
// The one guarantee every caller can rely on: access is never granted on
// an unverifiable certificate. CheckPermission is fail-closed end to end —
// a bad key, an unknown CA, a forged signature and a missing grant all
// collapse to a plain false. Structural corruption is the only condition
// reported as an error (ErrCertificateMalformed), because it signals
// tampering rather than legitimate denial.
package certificate

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opic-systems/opic/core/pkg/crypto"
)

var (
	// ErrSigning indicates the signing key was unusable.
	ErrSigning = errors.New("certificate signing failed")
	// ErrCertificateMalformed indicates structural corruption, distinct
	// from a verification mismatch (which is a plain false).
	ErrCertificateMalformed = errors.New("certificate malformed")
)

// Issue canonically serializes the grant tuple and signs it with the CA key.
func Issue(issuer, subject string, perms []Permission, realmID, caID string, signingKey ed25519.PrivateKey) (*Certificate, error) {
	if len(signingKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: invalid key size %d", ErrSigning, len(signingKey))
	}
	cert := &Certificate{
		ID:          uuid.New().String(),
		Issuer:      issuer,
		Subject:     subject,
		Permissions: perms,
		RealmID:     realmID,
		CAID:        caID,
		IssuedAt:    time.Now().UTC(),
	}
	payload, err := signingPayload(cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	signer, err := crypto.NewEd25519SignerFromKey(signingKey, caID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	cert.Signature = sig
	return cert, nil
}

// Verify recomputes the signature over the canonical serialization.
// A structurally invalid certificate yields ErrCertificateMalformed;
// a well-formed certificate that does not check out yields (false, nil).
func Verify(cert *Certificate, caPublicKeyHex string) (bool, error) {
	if err := checkShape(cert); err != nil {
		return false, err
	}
	payload, err := signingPayload(cert)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCertificateMalformed, err)
	}
	ok, err := crypto.Verify(caPublicKeyHex, cert.Signature, payload)
	if err != nil {
		// Bad key material on the verifier side is a mismatch, not
		// corruption of the certificate itself.
		return false, nil
	}
	return ok, nil
}

// CheckPermission verifies the certificate and scans its grants.
// Fail-closed: any verification failure returns false, never an error.
func CheckPermission(cert *Certificate, caPublicKeyHex, resource, action string) bool {
	ok, err := Verify(cert, caPublicKeyHex)
	if err != nil || !ok {
		return false
	}
	for _, p := range cert.Permissions {
		if p.Action == action && MatchPattern(p.Resource, resource) {
			return true
		}
	}
	return false
}

// MatchPattern matches a resource against a grant pattern: exact match,
// the universal "*", or a prefix glob ("systems/*", "systems/foo*").
func MatchPattern(pattern, resource string) bool {
	switch {
	case pattern == "*":
		return true
	case pattern == resource:
		return true
	case strings.HasSuffix(pattern, "/*"):
		return strings.HasPrefix(resource, pattern[:len(pattern)-1])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(resource, pattern[:len(pattern)-1])
	}
	return false
}

func checkShape(cert *Certificate) error {
	if cert == nil {
		return fmt.Errorf("%w: nil certificate", ErrCertificateMalformed)
	}
	if cert.Issuer == "" || cert.Subject == "" || cert.CAID == "" || cert.RealmID == "" {
		return fmt.Errorf("%w: missing identity fields", ErrCertificateMalformed)
	}
	if cert.Signature == "" {
		// Unsigned is well-formed but unverifiable: plain denial.
		return nil
	}
	if _, err := hex.DecodeString(cert.Signature); err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrCertificateMalformed)
	}
	return nil
}

// signingPayload is the canonical byte form the CA signs: the certificate
// with its signature field zeroed, in JCS canonical JSON.
func signingPayload(cert *Certificate) ([]byte, error) {
	unsigned := *cert
	unsigned.Signature = ""
	return crypto.CanonicalMarshal(&unsigned)
}
