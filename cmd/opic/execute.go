package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/opic-systems/opic/core/pkg/audit"
	"github.com/opic-systems/opic/core/pkg/certificate"
	"github.com/opic-systems/opic/core/pkg/config"
	"github.com/opic-systems/opic/core/pkg/engine"
	"github.com/opic-systems/opic/core/pkg/loader"
	"github.com/opic-systems/opic/core/pkg/observability"
	"github.com/opic-systems/opic/core/pkg/resolver"
	"github.com/opic-systems/opic/core/pkg/vfs"
	"github.com/opic-systems/opic/core/pkg/witness"
)

// upFile is the caller-side "system is up" checkpoint written after a
// successful bootstrap load+execute. The engine itself holds no such
// state.
const upFile = ".opicup"

type checkpoint struct {
	EngineVersion string    `json:"engine_version"`
	RealmID       string    `json:"realm_id"`
	ChainHash     string    `json:"chain_hash"`
	Timestamp     time.Time `json:"timestamp"`
}

func runExecuteCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	voiceName := fs.String("voice", "main", "voice to execute")
	input := fs.String("input", "", "initial chain input")
	profileName := fs.String("profile", "", "engine profile (profile_<name>.yaml under the root)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: opic execute [-voice name] [-input value] [-profile name] <path>")
		return 2
	}
	path := fs.Arg(0)

	cfg := config.Load()
	policy := loader.MergeStrict
	if *profileName == "" {
		*profileName = cfg.Profile
	}
	if *profileName != "" {
		profile, err := config.LoadProfile(cfg.Root, *profileName)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if profile.MergePolicy == "override" {
			policy = loader.MergeOverride
		}
		if profile.TimeoutMS > 0 {
			cfg.TimeoutMS = profile.TimeoutMS
		}
		if profile.Conventions != "" {
			cfg.Conventions = filepath.Join(cfg.Root, profile.Conventions)
		}
	}
	tracer, shutdown := observability.Init("opic", Version)
	defer func() { _ = shutdown(context.Background()) }()

	var auditLog audit.Logger = audit.Nop{}
	if cfg.LogLevel == "DEBUG" {
		auditLog = audit.NewLoggerWithWriter(stderr)
	}

	ring := certificate.NewKeyring()
	if err := ring.Load(cfg.KeyDir); err != nil || !hasKey(ring, cfg.CAID) {
		if _, err := ring.Generate(cfg.CAID); err != nil {
			_, _ = fmt.Fprintf(stderr, "error: keygen: %v\n", err)
			return 1
		}
		if err := ring.Save(cfg.KeyDir); err != nil {
			_, _ = fmt.Fprintf(stderr, "error: keyring: %v\n", err)
			return 1
		}
	}
	caKey, _ := ring.Key(cfg.CAID)
	caPub, _ := ring.PublicKeyHex(cfg.CAID)

	authority, err := certificate.NewAuthority()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	authority.TrustCA(cfg.CAID, caPub)

	cert, err := certificate.Issue("opic-cli", "operator", []certificate.Permission{
		{Resource: "*", Action: certificate.ActionRead},
		{Resource: engine.VoiceResource + "*", Action: certificate.ActionExecute},
	}, cfg.RealmID, cfg.CAID, caKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	store, err := vfs.NewDirFS(cfg.Root, authority)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	var backing vfs.FS = store
	if cfg.TimeoutMS > 0 {
		backing = vfs.NewBounded(store, time.Duration(cfg.TimeoutMS)*time.Millisecond, nil)
	}

	table := resolver.Default()
	if cfg.Conventions != "" {
		raw, err := os.ReadFile(cfg.Conventions)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: conventions: %v\n", err)
			return 1
		}
		table, err = resolver.ParseTable(raw)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	ld := loader.New(backing, table.Lookup, auditLog)
	res := resolver.New(table, ld)
	eng := engine.New(res, tracer, auditLog)
	ectx := loader.NewContext(cert, authority, cfg.RealmID)
	ectx.Policy = policy

	ctx := context.Background()
	if err := ld.Load(ctx, path, ectx); err != nil {
		return reportError(stderr, err, ectx)
	}

	out, reports, err := eng.ExecuteVoice(ctx, *voiceName, *input, ectx)
	if err != nil {
		return reportError(stderr, err, ectx)
	}

	if cfg.WitnessLog != "" {
		if err := persistWitnesses(ctx, cfg.WitnessLog, ectx.Witnesses); err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	if err := writeCheckpoint(cfg, ectx); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: checkpoint: %v\n", err)
		return 1
	}

	for _, r := range reports {
		if r.Unresolved {
			_, _ = fmt.Fprintf(stderr, "warning: step %s unresolved: %s\n", r.StepID, r.Token)
		}
	}
	_, _ = fmt.Fprintln(stdout, out)
	return 0
}

func hasKey(ring *certificate.Keyring, caID string) bool {
	_, ok := ring.Key(caID)
	return ok
}

func persistWitnesses(ctx context.Context, path string, entries []*witness.Witness) error {
	log, err := witness.NewFileLog(path)
	if err != nil {
		return err
	}
	for _, w := range entries {
		if err := log.Append(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func writeCheckpoint(cfg *config.Config, ectx *loader.Context) error {
	cp := checkpoint{
		EngineVersion: Version,
		RealmID:       cfg.RealmID,
		ChainHash:     ectx.Tail.ChainHash,
		Timestamp:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.Root, upFile), append(data, '\n'), 0o600)
}

// reportError prints the error kind, the offending path or voice, and the
// last successfully recorded witness so failures are resumable.
func reportError(stderr io.Writer, err error, ectx *loader.Context) int {
	var le *loader.LoadError
	var ee *engine.ExecError
	switch {
	case errors.As(err, &le):
		_, _ = fmt.Fprintf(stderr, "error: LoadError(%s): %s\n", le.Kind, le.Path)
		if le.Err != nil {
			_, _ = fmt.Fprintf(stderr, "  cause: %v\n", le.Err)
		}
	case errors.As(err, &ee):
		_, _ = fmt.Fprintf(stderr, "error: ExecError(%s)", ee.Kind)
		if ee.Voice != "" {
			_, _ = fmt.Fprintf(stderr, ": voice %s", ee.Voice)
		}
		_, _ = fmt.Fprintln(stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}
	if len(ectx.Witnesses) > 0 {
		last := ectx.Witnesses[len(ectx.Witnesses)-1]
		_, _ = fmt.Fprintf(stderr, "last witness: step=%s chain=%s\n", last.StepID, last.ChainHash)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return 3
	}
	var ee *engine.ExecError
	if errors.As(err, &ee) {
		return 4
	}
	return 1
}
