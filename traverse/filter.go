package traverse

import (
	"context"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/storage"
)

// Filter narrows the incoming links considered by GetLinks, GetNeighbors
// and FollowLink. Filters combine with AND.
type Filter func(*filters) error

type filters struct {
	linkType   string
	position   int
	targetType string
	preds      []func(*atom.Atom) bool
	programs   []cel.Program
}

// LinkType keeps links of type t. "*" keeps every type.
func LinkType(t string) Filter {
	return func(f *filters) error {
		f.linkType = t
		return nil
	}
}

// CursorPosition keeps links that hold the cursor at target index i.
func CursorPosition(i int) Filter {
	return func(f *filters) error {
		if i < 0 {
			return errors.NewInvalidRequestError("cursor position %d is negative", i)
		}
		f.position = i
		return nil
	}
}

// TargetType keeps links with at least one other target of type t.
func TargetType(t string) Filter {
	return func(f *filters) error {
		f.targetType = t
		return nil
	}
}

// Predicate keeps links for which fn returns true.
func Predicate(fn func(*atom.Atom) bool) Filter {
	return func(f *filters) error {
		f.preds = append(f.preds, fn)
		return nil
	}
}

// Where keeps links for which the CEL expression evaluates to true. The
// expression sees one variable, link, with the keys handle, type,
// targets, arity, toplevel and attributes:
//
//	link.type == "Similarity" && link.attributes.weight > 0.5
func Where(expr string) Filter {
	return func(f *filters) error {
		prg, err := compile(expr)
		if err != nil {
			return err
		}
		f.programs = append(f.programs, prg)
		return nil
	}
}

var (
	celEnv   = sync.OnceValues(func() (*cel.Env, error) { return cel.NewEnv(cel.Variable("link", cel.MapType(cel.StringType, cel.DynType))) })
	prgCache sync.Map // expr -> cel.Program
)

func compile(expr string) (cel.Program, error) {
	if v, ok := prgCache.Load(expr); ok {
		return v.(cel.Program), nil
	}
	env, err := celEnv()
	if err != nil {
		return nil, errors.Wrap(err, "cel environment")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("compile %q: %v", expr, issues.Err()),
			"expressions see link.type, link.targets, link.arity, link.toplevel and link.attributes")
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, errors.NewInvalidRequestError("expression %q yields %s, not bool", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "program %q", expr)
	}
	prgCache.Store(expr, prg)
	return prg, nil
}

func buildFilters(fs []Filter) (*filters, error) {
	f := &filters{position: -1}
	for _, fn := range fs {
		if err := fn(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func activation(l *atom.Atom) map[string]any {
	targets := make([]string, len(l.Targets))
	for i, t := range l.Targets {
		targets[i] = string(t)
	}
	attrs := l.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{"link": map[string]any{
		"handle":     string(l.Handle),
		"type":       l.Type,
		"targets":    targets,
		"arity":      len(l.Targets),
		"toplevel":   l.Toplevel,
		"attributes": attrs,
	}}
}

// keep reports whether link l, which has cursor among its targets, passes
// every filter. Cheap checks run before those that read the backend.
func (f *filters) keep(ctx context.Context, b storage.Backend, cursor hasher.Handle, l *atom.Atom) (bool, error) {
	if f.linkType != "" && f.linkType != string(hasher.Wildcard) && l.Type != f.linkType {
		return false, nil
	}
	if f.position >= 0 && (f.position >= len(l.Targets) || l.Targets[f.position] != cursor) {
		return false, nil
	}
	for _, p := range f.preds {
		if !p(l) {
			return false, nil
		}
	}
	if len(f.programs) > 0 {
		act := activation(l)
		for _, prg := range f.programs {
			out, _, err := prg.ContextEval(ctx, act)
			if err != nil {
				return false, errors.Wrapf(err, "evaluate filter on %s", l.Handle)
			}
			ok, isBool := out.Value().(bool)
			if !isBool {
				return false, errors.NewInvalidRequestError("filter on %s returned %T, not bool", l.Handle, out.Value())
			}
			if !ok {
				return false, nil
			}
		}
	}
	if f.targetType != "" {
		return hasCoTarget(ctx, b, cursor, l, f.targetType)
	}
	return true, nil
}

func hasCoTarget(ctx context.Context, b storage.Backend, cursor hasher.Handle, l *atom.Atom, t string) (bool, error) {
	for _, h := range l.Targets {
		if h == cursor {
			continue
		}
		a, err := b.GetAtom(ctx, h)
		if errors.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		if a.Type == t {
			return true, nil
		}
	}
	return false, nil
}
