package parser

// Program is the result of parsing one source file: definitions keyed by
// name, unique within the file. Programs are immutable after parsing.
type Program struct {
	Header *Header
	Types  map[string]*TypeDef
	Voices map[string]*VoiceDef
}

// Header is the optional signed block between two "---" lines.
type Header struct {
	Signature string
	CA        string
	Realm     string
	Format    string
}

// TypeDef is a structural record: a name and an ordered field list.
type TypeDef struct {
	Name   string
	Fields []string
}

// VoiceDef is a named transformation. Its body is either a literal value
// or a chain of steps.
type VoiceDef struct {
	Name    string
	Literal string
	IsLit   bool
	Chain   *Chain
}

// Chain is an ordered sequence of steps; each step's output feeds the
// next step's input.
type Chain struct {
	Steps []Step
}

// StepKind discriminates the three step forms.
type StepKind int

const (
	StepLiteral StepKind = iota
	StepRef
	StepChain
)

// Step is one element of a chain: a literal, a (possibly dotted) voice
// reference, or an inline nested chain.
type Step struct {
	Kind    StepKind
	Literal string
	Ref     string
	Nested  *Chain
}
