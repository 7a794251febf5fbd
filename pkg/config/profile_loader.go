package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is a named engine profile loaded from YAML. Profiles carry the
// knobs that do not belong in environment variables: merge policy,
// backend timeout, convention table location.
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	MergePolicy string `yaml:"merge_policy" json:"merge_policy"` // "strict" | "override"
	TimeoutMS   int    `yaml:"timeout_ms" json:"timeout_ms"`
	Conventions string `yaml:"conventions" json:"conventions"`
}

// LoadProfile loads profile_<name>.yaml from dir.
func LoadProfile(dir, name string) (*Profile, error) {
	path := filepath.Join(dir, fmt.Sprintf("profile_%s.yaml", name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	switch p.MergePolicy {
	case "", "strict", "override":
	default:
		return nil, fmt.Errorf("profile %s: unknown merge_policy %q", name, p.MergePolicy)
	}
	return &p, nil
}
