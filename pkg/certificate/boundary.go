package certificate

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// BoundaryEvaluator evaluates realm boundary rules written in CEL over
// {subject, resource, action}. Compiled programs are cached per rule.
// Evaluation is fail-closed: a rule that does not compile, errors at
// runtime, or yields a non-boolean denies the access.
type BoundaryEvaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func NewBoundaryEvaluator() (*BoundaryEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.StringType),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &BoundaryEvaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Allow reports whether every boundary rule of the realm admits the access.
// A realm without rules admits everything its certificates already allow.
func (b *BoundaryEvaluator) Allow(realm *Realm, subject, resource, action string) bool {
	if realm == nil || len(realm.BoundaryRules) == 0 {
		return true
	}
	input := map[string]any{
		"subject":  subject,
		"resource": resource,
		"action":   action,
	}
	for _, rule := range realm.BoundaryRules {
		ok, err := b.evaluate(rule, input)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func (b *BoundaryEvaluator) evaluate(rule string, input map[string]any) (bool, error) {
	prg, err := b.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("boundary rule eval: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("boundary rule yielded %T, want bool", out.Value())
	}
	return result, nil
}

func (b *BoundaryEvaluator) program(rule string) (cel.Program, error) {
	b.mu.RLock()
	prg, ok := b.cache[rule]
	b.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := b.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("boundary rule compile: %w", issues.Err())
	}
	prg, err := b.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("boundary rule program: %w", err)
	}

	b.mu.Lock()
	b.cache[rule] = prg
	b.mu.Unlock()
	return prg, nil
}
