package resolver

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// DefaultPattern derives "systems/<prefix>.ops" for any prefix without an
// explicit entry.
const DefaultPattern = "systems/%s.ops"

// Table is the bounded convention mapping from namespace prefix to
// canonical path. Explicit entries win over the pattern; an empty pattern
// disables derivation entirely.
type Table struct {
	entries map[string]string
	pattern string
}

// NewTable builds a table from explicit entries and a derivation pattern
// (which may be empty).
func NewTable(entries map[string]string, pattern string) *Table {
	t := &Table{entries: make(map[string]string, len(entries)), pattern: pattern}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Default returns the conventional table used when nothing is configured.
func Default() *Table {
	return NewTable(nil, DefaultPattern)
}

// Lookup maps a namespace prefix to a path, if any convention covers it.
func (t *Table) Lookup(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	if path, ok := t.entries[prefix]; ok {
		return path, true
	}
	if t.pattern == "" {
		return "", false
	}
	if !strings.Contains(t.pattern, "%s") {
		return "", false
	}
	return fmt.Sprintf(t.pattern, prefix), true
}

// tableSchema validates convention files before they are trusted.
const tableSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"conventions": {
			"type": "object",
			"additionalProperties": {"type": "string", "minLength": 1}
		},
		"pattern": {"type": "string"}
	},
	"additionalProperties": false
}`

var compiledTableSchema = jsonschema.MustCompileString("conventions.schema.json", tableSchema)

type tableConfig struct {
	Conventions map[string]string `yaml:"conventions"`
	Pattern     *string           `yaml:"pattern"`
}

// ParseTable parses a YAML convention table, validating its shape against
// the embedded schema first. A missing pattern key means DefaultPattern;
// an explicit empty pattern disables derivation.
func ParseTable(data []byte) (*Table, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("convention table: %w", err)
	}
	if generic == nil {
		return Default(), nil
	}
	if err := compiledTableSchema.Validate(toJSONShape(generic)); err != nil {
		return nil, fmt.Errorf("convention table rejected: %w", err)
	}

	var cfg tableConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("convention table: %w", err)
	}
	pattern := DefaultPattern
	if cfg.Pattern != nil {
		pattern = *cfg.Pattern
	}
	return NewTable(cfg.Conventions, pattern), nil
}

// toJSONShape converts yaml.v3's map[string]interface{} tree into the
// shape jsonschema expects. yaml.v3 already decodes mappings with string
// keys, so only nested conversions are needed.
func toJSONShape(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = toJSONShape(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = toJSONShape(item)
		}
		return out
	default:
		return val
	}
}
