// Package resolver maps unresolved identifiers to loadable files.
//
// Discovery is best-effort by contract: when no convention matches, or
// the conventional file simply does not exist, Resolve answers false
// without raising, and the executor falls back to treating the
// identifier as an opaque literal. Permission denials and cycles are
// real errors and do propagate.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/opic-systems/opic/core/pkg/loader"
)

// Resolver wires a convention table to a loader.
type Resolver struct {
	table  *Table
	loader *loader.Loader
}

func New(table *Table, l *loader.Loader) *Resolver {
	return &Resolver{table: table, loader: l}
}

// Resolve tries to make ident resolvable by loading its conventional
// file. Returns (true, nil) only when ident is present in the context's
// resolved table afterwards.
func (r *Resolver) Resolve(ctx context.Context, ident string, ectx *loader.Context) (bool, error) {
	prefix, _, ok := strings.Cut(ident, ".")
	if !ok {
		prefix = ident
	}
	path, ok := r.table.Lookup(prefix)
	if !ok {
		return false, nil
	}
	if err := r.loader.Load(ctx, path, ectx); err != nil {
		var le *loader.LoadError
		if errors.As(err, &le) && le.Kind == loader.KindNotFound {
			return false, nil
		}
		return false, err
	}
	_, found := ectx.Voice(ident)
	return found, nil
}

// Hint adapts the table for the loader's eager pass.
func (r *Resolver) Hint() loader.PathHint {
	return r.table.Lookup
}
