package witness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain executes a synthetic run: each step's output feeds the next
// step's input, witnessed in order.
func buildChain(n int) []*Witness {
	chain := make([]*Witness, 0, n)
	pred := Genesis()
	input := []byte("seed-input")
	for i := 0; i < n; i++ {
		output := []byte{byte(i), 'o', 'u', 't'}
		w := New("step-"+string(rune('a'+i)), input, output, "certsig", pred)
		chain = append(chain, w)
		pred = w
		input = output
	}
	return chain
}

func TestVerifyChain(t *testing.T) {
	chain := buildChain(5)
	require.NoError(t, VerifyChain(chain))
	require.NoError(t, VerifyChain(nil), "empty chain is trivially intact")
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	chain := buildChain(5)

	// Rewrite history at index 2.
	chain[2].OutputHash = "0000000000000000000000000000000000000000000000000000000000000000"

	err := VerifyChain(chain)
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Index, "failure must start at the altered record")

	// Everything before the alteration still verifies.
	require.NoError(t, VerifyChain(chain[:2]))
}

func TestVerifyChainDetectsRelink(t *testing.T) {
	chain := buildChain(3)
	chain[1].PredecessorHash = chain[2].ChainHash

	err := VerifyChain(chain)
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
}

func TestChainHashIgnoresTimestamp(t *testing.T) {
	w1 := New("s", []byte("in"), []byte("out"), "sig", nil)
	w2 := New("s", []byte("in"), []byte("out"), "sig", nil)
	assert.Equal(t, w1.ChainHash, w2.ChainHash,
		"replay must reproduce the chain-hash sequence")
}

func TestCompose(t *testing.T) {
	chain := buildChain(3)
	w1, w2, w3 := chain[0], chain[1], chain[2]

	c, err := Compose(w1, w2)
	require.NoError(t, err)
	assert.Equal(t, w1.InputHash, c.InputHash)
	assert.Equal(t, w2.OutputHash, c.OutputHash)
	assert.Equal(t, []string{w1.StepID, w2.StepID}, c.StepIDs)

	c2, err := Compose(c, w3)
	require.NoError(t, err)
	assert.Len(t, c2.StepIDs, 3)
}

func TestComposeMismatch(t *testing.T) {
	chain := buildChain(3)
	_, err := Compose(chain[0], chain[2])
	require.ErrorIs(t, err, ErrWitnessMismatch)
}

func TestComposeGenesisIdentity(t *testing.T) {
	w := buildChain(1)[0]

	left, err := Compose(Genesis(), w)
	require.NoError(t, err)
	right, err := Compose(w, Genesis())
	require.NoError(t, err)

	assert.Equal(t, w.InputHash, left.InputHash)
	assert.Equal(t, w.OutputHash, left.OutputHash)
	assert.Equal(t, left, right)
}

func TestComposeAll(t *testing.T) {
	chain := buildChain(4)
	spans := make([]Span, len(chain))
	for i, w := range chain {
		spans[i] = w
	}
	c, err := ComposeAll(spans...)
	require.NoError(t, err)
	assert.Equal(t, chain[0].InputHash, c.InputHash)
	assert.Equal(t, chain[3].OutputHash, c.OutputHash)
	assert.Len(t, c.StepIDs, 4)
}

func TestMemoryLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()
	chain := buildChain(3)
	for _, w := range chain {
		require.NoError(t, log.Append(ctx, w))
	}
	got, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NoError(t, VerifyChain(got))
}

func TestFileLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "witness.log")

	log, err := NewFileLog(path)
	require.NoError(t, err)

	chain := buildChain(3)
	for _, w := range chain {
		require.NoError(t, log.Append(ctx, w))
	}

	reopened, err := NewFileLog(path)
	require.NoError(t, err)
	got, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NoError(t, VerifyChain(got))
	assert.Equal(t, chain[2].ChainHash, got[2].ChainHash)
}
