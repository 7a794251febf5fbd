// Package witness hash-chains execution steps into a tamper-evident record.
//
// Every executed step yields exactly one Witness. Its chain hash binds the
// step id, input/output hashes and the certificate signature to the
// predecessor's chain hash, so altering any historical record invalidates
// every later link. The genesis witness is a well-known seed, not a secret.
package witness

import (
	"bytes"
	"fmt"
	"time"

	"github.com/opic-systems/opic/core/pkg/crypto"
)

const linkDomain = "opic:witness:link:v1"

// GenesisSeed is the chain hash every context starts from.
var GenesisSeed = crypto.SumHex([]byte("opic:witness:genesis:v1"))

// Witness attests that one step executed with specific input and output
// under a specific certificate. Append-only: never mutated or deleted.
type Witness struct {
	StepID          string    `json:"step_id"`
	InputHash       string    `json:"input_hash"`
	OutputHash      string    `json:"output_hash"`
	CertSig         string    `json:"certificate_signature"`
	Timestamp       time.Time `json:"timestamp"`
	PredecessorHash string    `json:"predecessor_hash"`
	ChainHash       string    `json:"chain_hash"`
	Unresolved      bool      `json:"unresolved,omitempty"`
}

// Genesis returns the identity witness. All of its hashes equal the seed.
func Genesis() *Witness {
	return &Witness{
		StepID:          "genesis",
		InputHash:       GenesisSeed,
		OutputHash:      GenesisSeed,
		PredecessorHash: GenesisSeed,
		ChainHash:       GenesisSeed,
	}
}

// IsGenesis reports whether w is the identity witness.
func (w *Witness) IsGenesis() bool {
	return w.ChainHash == GenesisSeed && w.InputHash == GenesisSeed &&
		w.OutputHash == GenesisSeed
}

// New creates the witness for one executed step. pred may be nil, which
// means the genesis witness. The timestamp is recorded for audit but is
// deliberately outside the chain hash, so replaying an execution
// reproduces the exact chain-hash sequence.
func New(stepID string, input, output []byte, certSig string, pred *Witness) *Witness {
	if pred == nil {
		pred = Genesis()
	}
	w := &Witness{
		StepID:          stepID,
		InputHash:       crypto.SumHex(input),
		OutputHash:      crypto.SumHex(output),
		CertSig:         certSig,
		Timestamp:       time.Now().UTC(),
		PredecessorHash: pred.ChainHash,
	}
	w.ChainHash = linkHash(pred.ChainHash, w.StepID, w.InputHash, w.OutputHash, w.CertSig)
	return w
}

// ChainError reports the first witness whose recorded hashes fail to
// recompute. Everything from Index onward is untrustworthy.
type ChainError struct {
	Index  int
	StepID string
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("witness chain broken at index %d (step %q): %s", e.Index, e.StepID, e.Reason)
}

// VerifyChain recomputes every chain hash in order starting from genesis.
func VerifyChain(chain []*Witness) error {
	pred := Genesis()
	for i, w := range chain {
		if w.PredecessorHash != pred.ChainHash {
			return &ChainError{Index: i, StepID: w.StepID, Reason: "predecessor hash mismatch"}
		}
		want := linkHash(pred.ChainHash, w.StepID, w.InputHash, w.OutputHash, w.CertSig)
		if w.ChainHash != want {
			return &ChainError{Index: i, StepID: w.StepID, Reason: "chain hash mismatch"}
		}
		pred = w
	}
	return nil
}

func linkHash(pred, stepID, inputHash, outputHash, certSig string) string {
	var buf bytes.Buffer
	buf.WriteString(linkDomain)
	for _, part := range []string{pred, stepID, inputHash, outputHash, certSig} {
		buf.WriteByte(0)
		buf.WriteString(part)
	}
	return crypto.SumHex(buf.Bytes())
}
