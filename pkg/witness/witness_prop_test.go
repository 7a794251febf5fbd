package witness

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genAdjacentChain generates a run of adjacent witnesses, each step's
// output feeding the next step's input.
func genAdjacentChain(n int) gopter.Gen {
	return gen.SliceOfN(n+1, gen.AnyString()).Map(func(values []string) []*Witness {
		chain := make([]*Witness, 0, n)
		pred := Genesis()
		for i := 0; i < n; i++ {
			w := New("step", []byte(values[i]), []byte(values[i+1]), "sig", pred)
			chain = append(chain, w)
			pred = w
		}
		return chain
	})
}

func sameSpan(a, b Span) bool {
	if a.Input() != b.Input() || a.Output() != b.Output() {
		return false
	}
	as, bs := a.Steps(), b.Steps()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func TestComposeAssociativity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("compose is associative over adjacent triples", prop.ForAll(
		func(chain []*Witness) bool {
			a, b, c := chain[0], chain[1], chain[2]
			ab, err := Compose(a, b)
			if err != nil {
				return false
			}
			left, err := Compose(ab, c)
			if err != nil {
				return false
			}
			bc, err := Compose(b, c)
			if err != nil {
				return false
			}
			right, err := Compose(a, bc)
			if err != nil {
				return false
			}
			return sameSpan(left, right)
		},
		genAdjacentChain(3),
	))

	properties.Property("genesis is a two-sided identity", prop.ForAll(
		func(chain []*Witness) bool {
			w := chain[0]
			left, err := Compose(Genesis(), w)
			if err != nil {
				return false
			}
			right, err := Compose(w, Genesis())
			if err != nil {
				return false
			}
			return sameSpan(left, w) && sameSpan(right, w)
		},
		genAdjacentChain(1),
	))

	properties.Property("chain hash is a pure function of its inputs", prop.ForAll(
		func(input, output, sig string) bool {
			w1 := New("s", []byte(input), []byte(output), sig, nil)
			w2 := New("s", []byte(input), []byte(output), sig, nil)
			return w1.ChainHash == w2.ChainHash && VerifyChain([]*Witness{w1}) == nil
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
