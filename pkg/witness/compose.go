package witness

import "errors"

// ErrWitnessMismatch indicates two spans whose endpoints do not meet.
var ErrWitnessMismatch = errors.New("witness mismatch: output hash does not feed input hash")

// Span is anything composable: a single witness or an already composed run.
type Span interface {
	Input() string
	Output() string
	Steps() []string
}

func (w *Witness) Input() string  { return w.InputHash }
func (w *Witness) Output() string { return w.OutputHash }

func (w *Witness) Steps() []string {
	if w.IsGenesis() {
		return nil
	}
	return []string{w.StepID}
}

// Composite is the composition of adjacent spans. Composition is
// associative and the genesis witness is its identity, which makes
// (Span, Compose) a monoid.
type Composite struct {
	StepIDs    []string `json:"step_ids"`
	InputHash  string   `json:"input_hash"`
	OutputHash string   `json:"output_hash"`
}

func (c *Composite) Input() string   { return c.InputHash }
func (c *Composite) Output() string  { return c.OutputHash }
func (c *Composite) Steps() []string { return c.StepIDs }

// Compose joins two adjacent spans. Valid only when a's output hash equals
// b's input hash; otherwise ErrWitnessMismatch.
func Compose(a, b Span) (*Composite, error) {
	if isIdentity(a) {
		return asComposite(b), nil
	}
	if isIdentity(b) {
		return asComposite(a), nil
	}
	if a.Output() != b.Input() {
		return nil, ErrWitnessMismatch
	}
	steps := make([]string, 0, len(a.Steps())+len(b.Steps()))
	steps = append(steps, a.Steps()...)
	steps = append(steps, b.Steps()...)
	return &Composite{
		StepIDs:    steps,
		InputHash:  a.Input(),
		OutputHash: b.Output(),
	}, nil
}

// ComposeAll folds a whole chain left to right.
func ComposeAll(spans ...Span) (*Composite, error) {
	var acc Span = Genesis()
	for _, s := range spans {
		next, err := Compose(acc, s)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return asComposite(acc), nil
}

func isIdentity(s Span) bool {
	return s.Input() == GenesisSeed && s.Output() == GenesisSeed && len(s.Steps()) == 0
}

func asComposite(s Span) *Composite {
	if c, ok := s.(*Composite); ok {
		return c
	}
	return &Composite{
		StepIDs:    s.Steps(),
		InputHash:  s.Input(),
		OutputHash: s.Output(),
	}
}
