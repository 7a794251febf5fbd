package engine

import "fmt"

// Kind classifies an execution failure.
type Kind int

const (
	KindPermissionDenied Kind = iota
	KindWitnessMismatch
	KindCancelled
	KindResolve
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindWitnessMismatch:
		return "WitnessMismatch"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Resolve"
	}
}

// ExecError is fatal to the current chain. PermissionDenied aborts
// immediately; an unresolved identifier is never an ExecError.
type ExecError struct {
	Kind  Kind
	Voice string
	Err   error
}

func (e *ExecError) Error() string {
	if e.Voice != "" {
		return fmt.Sprintf("exec: %s (voice %q): %v", e.Kind, e.Voice, e.Err)
	}
	return fmt.Sprintf("exec: %s: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
