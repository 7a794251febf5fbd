package certificate

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims wraps a certificate for out-of-band transport as a JWT.
type tokenClaims struct {
	Certificate *Certificate `json:"cert"`
	jwt.RegisteredClaims
}

// ExportToken wraps cert in an EdDSA-signed JWT so it can cross a process
// or machine boundary as a single opaque string. The embedded certificate
// keeps its own inner signature; the JWT signature only protects transport.
func ExportToken(cert *Certificate, signingKey ed25519.PrivateKey, ttl time.Duration) (string, error) {
	if err := checkShape(cert); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		Certificate: cert,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cert.CAID,
			Subject:   cert.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = cert.CAID
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// ImportToken parses and checks a token produced by ExportToken, then
// re-verifies the embedded certificate against the same CA public key.
// Both signatures must hold before a certificate comes out.
func ImportToken(tokenStr, caPublicKeyHex string, caPublicKey ed25519.PublicKey) (*Certificate, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return caPublicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", err)
	}
	cert := claims.Certificate
	ok, err := Verify(cert, caPublicKeyHex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("token rejected: embedded certificate does not verify")
	}
	return cert, nil
}
