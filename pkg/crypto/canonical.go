package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalMarshal marshals v into RFC 8785 (JCS) canonical JSON:
// keys sorted, no HTML escaping, compact, no trailing newline.
// Signatures and content hashes are always computed over these bytes,
// never over whatever encoding/json happens to emit.
func CanonicalMarshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs transform failed: %w", err)
	}
	return canonical, nil
}
