package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/opic-systems/opic/core/pkg/config"
)

// runDoctorCmd checks the .opicup checkpoint left by the last successful
// bootstrap: present, parseable, and written by a compatible engine.
func runDoctorCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	path := filepath.Join(cfg.Root, upFile)

	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "DOWN: no checkpoint at %s (run 'opic execute' first)\n", path)
		return 1
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		_, _ = fmt.Fprintf(stderr, "DOWN: checkpoint unreadable: %v\n", err)
		return 1
	}

	recorded, err := semver.NewVersion(cp.EngineVersion)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "DOWN: checkpoint version %q: %v\n", cp.EngineVersion, err)
		return 1
	}
	constraint, err := semver.NewConstraint("^" + recorded.String())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "DOWN: %v\n", err)
		return 1
	}
	current := semver.MustParse(Version)
	if !constraint.Check(current) {
		_, _ = fmt.Fprintf(stderr, "DOWN: checkpoint written by %s, current engine %s is incompatible\n",
			cp.EngineVersion, Version)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "UP: realm=%s chain=%s engine=%s\n", cp.RealmID, cp.ChainHash, cp.EngineVersion)
	return 0
}
