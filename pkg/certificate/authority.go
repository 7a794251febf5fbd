package certificate

import (
	"sync"
)

// Authority is the verification side of the subsystem: it knows CA public
// keys and realm definitions and answers the one question the rest of the
// engine asks — may this certificate do this action on this resource?
//
// Unknown CA, unverifiable signature, missing grant, non-member subject
// and failing boundary rule all answer false. Nothing here ever grants
// by default.
type Authority struct {
	mu       sync.RWMutex
	caKeys   map[string]string // ca id -> hex public key
	realms   map[string]*Realm
	boundary *BoundaryEvaluator
}

func NewAuthority() (*Authority, error) {
	be, err := NewBoundaryEvaluator()
	if err != nil {
		return nil, err
	}
	return &Authority{
		caKeys:   make(map[string]string),
		realms:   make(map[string]*Realm),
		boundary: be,
	}, nil
}

// TrustCA registers a CA public key (hex).
func (a *Authority) TrustCA(caID, publicKeyHex string) {
	a.mu.Lock()
	a.caKeys[caID] = publicKeyHex
	a.mu.Unlock()
}

// AddRealm registers a realm definition.
func (a *Authority) AddRealm(r *Realm) {
	a.mu.Lock()
	a.realms[r.ID] = r
	a.mu.Unlock()
}

// CAKey returns the trusted public key for a CA.
func (a *Authority) CAKey(caID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	key, ok := a.caKeys[caID]
	return key, ok
}

// Verify checks the certificate against its CA's trusted key.
func (a *Authority) Verify(cert *Certificate) (bool, error) {
	if cert == nil {
		return false, ErrCertificateMalformed
	}
	key, ok := a.CAKey(cert.CAID)
	if !ok {
		return false, nil
	}
	return Verify(cert, key)
}

// CheckPermission is the engine-wide access gate. Fail-closed.
func (a *Authority) CheckPermission(cert *Certificate, resource, action string) bool {
	if cert == nil {
		return false
	}
	key, ok := a.CAKey(cert.CAID)
	if !ok {
		return false
	}
	if !CheckPermission(cert, key, resource, action) {
		return false
	}

	a.mu.RLock()
	realm := a.realms[cert.RealmID]
	a.mu.RUnlock()
	if realm == nil {
		// No registered realm means no boundary rules to consult.
		return true
	}
	if !realm.Member(cert.Subject) {
		return false
	}
	return a.boundary.Allow(realm, cert.Subject, resource, action)
}
