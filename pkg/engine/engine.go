// Package engine walks chains depth-first, gating every resolved voice
// behind the certificate subsystem and emitting exactly one witness per
// executed step. Execution is a pure function of (chain, input, resolved
// table, certificate): replaying a run reproduces the same output and the
// same chain-hash sequence.
package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opic-systems/opic/core/pkg/audit"
	"github.com/opic-systems/opic/core/pkg/loader"
	"github.com/opic-systems/opic/core/pkg/parser"
	"github.com/opic-systems/opic/core/pkg/witness"
)

// Value is a chain value. Literals and opaque fallbacks are both strings.
type Value = string

// VoiceResource is the resource prefix permission grants use for voices.
const VoiceResource = "voices/"

// Resolver is the best-effort discovery hook consulted for identifiers
// missing from the resolved table.
type Resolver interface {
	Resolve(ctx context.Context, ident string, ectx *loader.Context) (bool, error)
}

// StepReport describes one executed step for callers and the CLI.
type StepReport struct {
	StepID     string `json:"step_id"`
	Token      string `json:"token"`
	Output     Value  `json:"output"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

// Engine orchestrates chain evaluation. It holds no per-run state; all
// mutation lands on the Context passed to Execute.
type Engine struct {
	resolver Resolver
	tracer   trace.Tracer
	audit    audit.Logger
}

// New creates an engine. resolver and tracer may be nil; a nil resolver
// turns every table miss into the soft literal fallback.
func New(resolver Resolver, tracer trace.Tracer, auditLog audit.Logger) *Engine {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Engine{resolver: resolver, tracer: tracer, audit: auditLog}
}

// run carries the per-execution witness staging. Witnesses commit to the
// context only when the whole Execute succeeds, so a failed run leaves no
// observable state beyond namespaces already loaded.
type run struct {
	ectx    *loader.Context
	tail    *witness.Witness
	emitted []*witness.Witness
	reports []*StepReport
}

func (r *run) emit(stepID string, input, output Value, unresolved bool) {
	certSig := ""
	if r.ectx.Cert != nil {
		certSig = r.ectx.Cert.Signature
	}
	w := witness.New(stepID, []byte(input), []byte(output), certSig, r.tail)
	w.Unresolved = unresolved
	r.emitted = append(r.emitted, w)
	r.tail = w
}

// Execute evaluates a chain against input within ectx. It returns the
// final value and one report per executed step, in execution order.
func (e *Engine) Execute(ctx context.Context, chain *parser.Chain, input Value, ectx *loader.Context) (Value, []*StepReport, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "opic.execute")
		defer span.End()
		defer func() {
			span.SetAttributes(attribute.String("opic.realm", ectx.RealmID))
		}()
	}

	r := &run{ectx: ectx, tail: ectx.Tail}
	out, err := e.execChain(ctx, chain, input, "", r)
	if err != nil {
		return "", nil, err
	}

	for _, w := range r.emitted {
		ectx.AppendWitness(w)
	}
	return out, r.reports, nil
}

// ExecuteVoice evaluates a named voice from the resolved table as a
// single-step chain, so the usual permission gate and witness emission
// apply. This is the CLI's entrypoint for the designated main voice.
func (e *Engine) ExecuteVoice(ctx context.Context, name string, input Value, ectx *loader.Context) (Value, []*StepReport, error) {
	if _, ok := ectx.Voice(name); !ok {
		return "", nil, &ExecError{Kind: KindResolve, Voice: name, Err: fmt.Errorf("voice %q not in resolved table", name)}
	}
	root := &parser.Chain{Steps: []parser.Step{{Kind: parser.StepRef, Ref: name}}}
	return e.Execute(ctx, root, input, ectx)
}

func (e *Engine) execChain(ctx context.Context, chain *parser.Chain, input Value, prefix string, r *run) (Value, error) {
	v := input
	var prev *witness.Witness
	for i, step := range chain.Steps {
		if err := ctx.Err(); err != nil {
			return "", &ExecError{Kind: KindCancelled, Err: err}
		}

		stepID := prefix + strconv.Itoa(i)
		out, token, unresolved, err := e.execStep(ctx, step, v, stepID, r)
		if err != nil {
			return "", err
		}

		r.emit(stepID, v, out, unresolved)
		w := r.tail
		if prev != nil && prev.OutputHash != w.InputHash {
			// An accepted witness no longer feeds its successor:
			// genuine invariant violation, not a user error.
			return "", &ExecError{Kind: KindWitnessMismatch, Err: witness.ErrWitnessMismatch}
		}
		prev = w
		r.reports = append(r.reports, &StepReport{
			StepID:     stepID,
			Token:      token,
			Output:     out,
			Unresolved: unresolved,
		})
		v = out
	}
	return v, nil
}

// execStep evaluates one step against the current value. unresolved marks
// the soft literal fallback; it is observable, never an error.
func (e *Engine) execStep(ctx context.Context, step parser.Step, v Value, stepID string, r *run) (out Value, token string, unresolved bool, err error) {
	switch step.Kind {
	case parser.StepLiteral:
		return step.Literal, step.Literal, false, nil

	case parser.StepChain:
		out, err := e.execChain(ctx, step.Nested, v, stepID+"/", r)
		return out, "{…}", false, err

	case parser.StepRef:
		def, ok := r.ectx.Voice(step.Ref)
		if !ok {
			ok, err = e.resolve(ctx, step.Ref, r.ectx)
			if err != nil {
				return "", step.Ref, false, err
			}
			if ok {
				def, ok = r.ectx.Voice(step.Ref)
			}
			if !ok {
				// Graceful degradation: the identifier itself
				// becomes the value, flagged unresolved.
				return step.Ref, step.Ref, true, nil
			}
		}
		out, err := e.execVoice(ctx, def, v, stepID, r)
		return out, step.Ref, false, err
	}
	return "", "", false, &ExecError{Kind: KindResolve, Err: fmt.Errorf("unknown step kind %d", step.Kind)}
}

func (e *Engine) execVoice(ctx context.Context, def *parser.VoiceDef, v Value, stepID string, r *run) (Value, error) {
	resource := VoiceResource + def.Name
	subject := "anonymous"
	if r.ectx.Cert != nil {
		subject = r.ectx.Cert.Subject
	}
	if r.ectx.Authority == nil || !r.ectx.Authority.CheckPermission(r.ectx.Cert, resource, "execute") {
		_ = e.audit.Record(ctx, r.ectx.RealmID, subject, audit.EventDeny, "execute", resource, nil)
		return "", &ExecError{Kind: KindPermissionDenied, Voice: def.Name,
			Err: fmt.Errorf("certificate does not permit execute on %s", resource)}
	}

	if def.IsLit {
		return def.Literal, nil
	}
	return e.execChain(ctx, def.Chain, v, stepID+"/", r)
}

func (e *Engine) resolve(ctx context.Context, ident string, ectx *loader.Context) (bool, error) {
	if e.resolver == nil {
		return false, nil
	}
	found, err := e.resolver.Resolve(ctx, ident, ectx)
	if err != nil {
		return false, err
	}
	return found, nil
}
