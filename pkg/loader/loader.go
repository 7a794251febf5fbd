// Package loader recursively loads and merges .ops source files into an
// execution context. Loads are idempotent, cycle-safe and all-or-nothing:
// a nested failure leaves the context's resolved table untouched.
package loader

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/opic-systems/opic/core/pkg/audit"
	"github.com/opic-systems/opic/core/pkg/parser"
	"github.com/opic-systems/opic/core/pkg/vfs"
)

// PathHint maps a namespace prefix (the text before the first '.') to a
// loadable path. The resolver package supplies the convention table; the
// loader only needs the function.
type PathHint func(prefix string) (string, bool)

// Loader reads through the gated VFS and merges parsed programs.
type Loader struct {
	fs    vfs.FS
	hint  PathHint
	audit audit.Logger
}

func New(fs vfs.FS, hint PathHint, auditLog audit.Logger) *Loader {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Loader{fs: fs, hint: hint, audit: auditLog}
}

// staging accumulates one root load so it can commit atomically.
type staging struct {
	loaded     map[string]bool
	inProgress map[string]bool
	types      map[string]*parser.TypeDef
	voices     map[string]*parser.VoiceDef
}

// Load loads path and everything it transitively references into ectx.
// Already-loaded paths return immediately. The returned error is always
// a *LoadError.
func (l *Loader) Load(ctx context.Context, path string, ectx *Context) error {
	if ectx.Loaded[path] {
		return nil
	}

	st := &staging{
		loaded:     make(map[string]bool, len(ectx.Loaded)),
		inProgress: make(map[string]bool),
		types:      make(map[string]*parser.TypeDef, len(ectx.Types)),
		voices:     make(map[string]*parser.VoiceDef, len(ectx.Voices)),
	}
	for k, v := range ectx.Loaded {
		st.loaded[k] = v
	}
	for k, v := range ectx.Types {
		st.types[k] = v
	}
	for k, v := range ectx.Voices {
		st.voices[k] = v
	}

	if err := l.load(ctx, path, ectx, st); err != nil {
		return err
	}

	// Commit. Nothing before this line is observable on ectx.
	ectx.Loaded = st.loaded
	ectx.Types = st.types
	ectx.Voices = st.voices
	return nil
}

func (l *Loader) load(ctx context.Context, path string, ectx *Context, st *staging) error {
	if st.loaded[path] {
		return nil
	}
	if st.inProgress[path] {
		return &LoadError{Kind: KindCyclicInclude, Path: path}
	}
	st.inProgress[path] = true
	defer delete(st.inProgress, path)

	data, err := l.fs.Read(ctx, path, ectx.Cert)
	if err != nil {
		_ = l.audit.Record(ctx, ectx.RealmID, subjectOf(ectx), audit.EventDeny, "load", path,
			map[string]interface{}{"error": err.Error()})
		return mapReadError(path, err)
	}

	prog, err := parser.Parse(data)
	if err != nil {
		return &LoadError{Kind: KindParse, Path: path, Err: err}
	}

	// Recurse into derivable namespaces before merging, so a nested
	// failure aborts without this file's definitions ever landing.
	for _, prefix := range referencedPrefixes(prog, st) {
		hinted, ok := l.hintPath(prefix)
		if !ok {
			continue
		}
		if hinted == path {
			continue
		}
		if err := l.load(ctx, hinted, ectx, st); err != nil {
			var le *LoadError
			if errors.As(err, &le) && le.Kind == KindNotFound {
				// Derivable but absent: the executor's soft
				// fallback owns this case.
				continue
			}
			return err
		}
	}

	if err := merge(prog, path, st, ectx.Policy); err != nil {
		return err
	}

	st.loaded[path] = true
	_ = l.audit.Record(ctx, ectx.RealmID, subjectOf(ectx), audit.EventLoad, "load", path,
		map[string]interface{}{"voices": len(prog.Voices), "types": len(prog.Types)})
	return nil
}

func (l *Loader) hintPath(prefix string) (string, bool) {
	if l.hint == nil {
		return "", false
	}
	return l.hint(prefix)
}

func merge(prog *parser.Program, path string, st *staging, policy MergePolicy) error {
	for name, def := range prog.Types {
		if policy == MergeStrict {
			if _, ok := st.types[name]; ok {
				return duplicate(path, name)
			}
			if _, ok := st.voices[name]; ok {
				return duplicate(path, name)
			}
		}
		st.types[name] = def
	}
	for name, def := range prog.Voices {
		if policy == MergeStrict {
			if _, ok := st.voices[name]; ok {
				return duplicate(path, name)
			}
			if _, ok := st.types[name]; ok {
				return duplicate(path, name)
			}
		}
		st.voices[name] = def
	}
	return nil
}

func duplicate(path, name string) error {
	return &LoadError{
		Kind: KindParse,
		Path: path,
		Err:  &parser.ParseError{Kind: parser.KindDuplicateDefinition, Msg: "name " + name + " already defined in this context"},
	}
}

// referencedPrefixes collects namespace prefixes of dotted refs that are
// not yet resolvable in the staging table.
func referencedPrefixes(prog *parser.Program, st *staging) []string {
	seen := make(map[string]bool)
	var prefixes []string
	var walk func(c *parser.Chain)
	walk = func(c *parser.Chain) {
		if c == nil {
			return
		}
		for _, s := range c.Steps {
			switch s.Kind {
			case parser.StepChain:
				walk(s.Nested)
			case parser.StepRef:
				prefix, _, ok := strings.Cut(s.Ref, ".")
				if !ok {
					continue
				}
				if _, resolved := st.voices[s.Ref]; resolved {
					continue
				}
				if _, local := prog.Voices[s.Ref]; local {
					continue
				}
				if !seen[prefix] {
					seen[prefix] = true
					prefixes = append(prefixes, prefix)
				}
			}
		}
	}
	for _, v := range prog.Voices {
		walk(v.Chain)
	}
	sort.Strings(prefixes)
	return prefixes
}

func mapReadError(path string, err error) error {
	switch {
	case errors.Is(err, vfs.ErrPermissionDenied):
		return &LoadError{Kind: KindForbidden, Path: path, Err: err}
	case errors.Is(err, vfs.ErrNotFound):
		return &LoadError{Kind: KindNotFound, Path: path, Err: err}
	case errors.Is(err, vfs.ErrTimeout):
		return &LoadError{Kind: KindTimeout, Path: path, Err: err}
	default:
		return &LoadError{Kind: KindNotFound, Path: path, Err: err}
	}
}

func subjectOf(ectx *Context) string {
	if ectx.Cert != nil {
		return ectx.Cert.Subject
	}
	return "anonymous"
}
