package certificate

import "time"

// Action names used in permission grants.
const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionExecute = "execute"
)

// Permission grants one action on resources matching a pattern.
// Patterns are exact paths, a bare "*", or a prefix glob such as "systems/*".
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Certificate is a signed capability grant from an issuer to a subject
// within a realm. It is immutable once issued; a reissue supersedes,
// never edits.
type Certificate struct {
	ID          string       `json:"id"`
	Issuer      string       `json:"issuer"`
	Subject     string       `json:"subject"`
	Permissions []Permission `json:"permissions"`
	RealmID     string       `json:"realm_id"`
	CAID        string       `json:"ca_id"`
	IssuedAt    time.Time    `json:"issued_at"`
	Signature   string       `json:"signature"`
}

// Realm is a named trust domain grouping agents under one certificate
// authority. BoundaryRules are CEL expressions over
// {subject, resource, action}; every rule must evaluate to true for an
// access inside the realm to stand.
type Realm struct {
	ID            string   `json:"id"`
	CAID          string   `json:"ca_id"`
	Agents        []string `json:"agents,omitempty"`
	BoundaryRules []string `json:"boundary_rules,omitempty"`
}

// Member reports whether agent belongs to the realm. An empty agent set
// means the realm is open to any subject of its CA.
func (r *Realm) Member(agent string) bool {
	if len(r.Agents) == 0 {
		return true
	}
	for _, a := range r.Agents {
		if a == agent {
			return true
		}
	}
	return false
}
