package loader

import "fmt"

// Kind classifies a load failure.
type Kind int

const (
	KindForbidden Kind = iota
	KindNotFound
	KindCyclicInclude
	KindParse
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindCyclicInclude:
		return "CyclicInclude"
	case KindTimeout:
		return "Timeout"
	default:
		return "Parse"
	}
}

// LoadError is fatal to the whole load: a root Load either merges every
// transitively required file or changes nothing.
type LoadError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }
