package loader

import (
	"github.com/opic-systems/opic/core/pkg/certificate"
	"github.com/opic-systems/opic/core/pkg/parser"
	"github.com/opic-systems/opic/core/pkg/witness"
)

// MergePolicy decides what happens when two files define the same name.
type MergePolicy int

const (
	// MergeStrict fails fast on any cross-file redefinition. Default.
	MergeStrict MergePolicy = iota
	// MergeOverride lets a later load replace an earlier definition.
	// Opt-in only; nothing selects it implicitly.
	MergeOverride
)

// Context is the execution context of one top-level run: the active
// certificate and realm, what has been loaded, the resolved name table
// and the accumulated witness chain. Contexts are exclusively owned —
// nothing here is shared across concurrent runs.
type Context struct {
	Cert      *certificate.Certificate
	Authority *certificate.Authority
	RealmID   string
	Policy    MergePolicy

	Loaded map[string]bool
	Types  map[string]*parser.TypeDef
	Voices map[string]*parser.VoiceDef

	Tail      *witness.Witness
	Witnesses []*witness.Witness
}

// NewContext builds a fresh context around a certificate.
func NewContext(cert *certificate.Certificate, authority *certificate.Authority, realmID string) *Context {
	return &Context{
		Cert:      cert,
		Authority: authority,
		RealmID:   realmID,
		Loaded:    make(map[string]bool),
		Types:     make(map[string]*parser.TypeDef),
		Voices:    make(map[string]*parser.VoiceDef),
		Tail:      witness.Genesis(),
	}
}

// AppendWitness appends w and advances the chain tail.
func (c *Context) AppendWitness(w *witness.Witness) {
	c.Witnesses = append(c.Witnesses, w)
	c.Tail = w
}

// Voice looks up a resolved voice definition.
func (c *Context) Voice(name string) (*parser.VoiceDef, bool) {
	v, ok := c.Voices[name]
	return v, ok
}
