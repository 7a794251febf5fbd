package parser

import "fmt"

// Kind classifies a parse failure.
type Kind int

const (
	KindSyntax Kind = iota
	KindHeaderMalformed
	KindUnbalancedBraces
	KindDuplicateDefinition
)

func (k Kind) String() string {
	switch k {
	case KindHeaderMalformed:
		return "HeaderMalformed"
	case KindUnbalancedBraces:
		return "UnbalancedBraces"
	case KindDuplicateDefinition:
		return "DuplicateDefinition"
	default:
		return "Syntax"
	}
}

// ParseError is fatal to parsing one file; the caller decides whether to
// skip the file or abort.
type ParseError struct {
	Kind Kind
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s) at line %d: %s", e.Kind, e.Line, e.Msg)
}

func errAt(kind Kind, line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Line: line, Msg: fmt.Sprintf(format, args...)}
}
