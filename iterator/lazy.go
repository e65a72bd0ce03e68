package iterator

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/atomdb/assign"
	"github.com/teranos/atomdb/cursor"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// Position is one target of a link pattern: a free variable, or a
// sub-query whose answers supply concrete atoms.
type Position struct {
	Variable string
	Source   Iterator[Answer]
}

// Var is a variable position.
func Var(name string) Position { return Position{Variable: name} }

// Sub is a sub-query position.
func Sub(src Iterator[Answer]) Position { return Position{Source: src} }

// LazyOptions tunes a LazyQuery.
type LazyOptions struct {
	Match     storage.MatchOptions
	ChunkSize int
	Logger    *zap.SugaredLogger
}

// LazyQuery resolves one link pattern against a backend. It walks the
// product of the candidates for each position and, for one combination at
// a time, streams the matching links and binds the variables.
type LazyQuery struct {
	ctx       context.Context
	backend   storage.Backend
	linkType  string
	positions []Position
	opts      LazyOptions
	logger    *zap.SugaredLogger

	product *Product[Answer]
	targets []hasher.Handle
	carried *assign.Assignment
	matches *cursor.Iterator[storage.Match]
	pending []Answer

	cur     Answer
	ok      bool
	started bool
	err     error
}

// NewLazyQuery builds the evaluator for linkType(positions...). linkType
// may be hasher.Wildcard.
func NewLazyQuery(ctx context.Context, b storage.Backend, linkType string, positions []Position, opts LazyOptions) (*LazyQuery, error) {
	if linkType == "" {
		return nil, errors.NewMalformedPatternError("link pattern without a type")
	}
	if len(positions) == 0 {
		return nil, errors.NewMalformedPatternError("link pattern %s has no targets", linkType)
	}
	sources := make([]Iterator[Answer], len(positions))
	for i, p := range positions {
		switch {
		case p.Variable != "" && p.Source != nil:
			return nil, errors.NewMalformedPatternError("position %d of %s is both a variable and a sub-query", i, linkType)
		case p.Variable != "":
			sources[i] = FromSlice([]Answer{{}})
		case p.Source != nil:
			sources[i] = p.Source
		default:
			return nil, errors.NewMalformedPatternError("position %d of %s is empty", i, linkType)
		}
	}
	l := &LazyQuery{
		ctx:       ctx,
		backend:   b,
		linkType:  linkType,
		positions: positions,
		opts:      opts,
		logger:    opts.Logger,
		product:   NewProduct(sources...),
	}
	if l.logger == nil {
		l.logger = zap.NewNop().Sugar()
	}
	return l, nil
}

func (l *LazyQuery) Next() bool {
	l.started = true
	l.ok = false
	for l.err == nil {
		if len(l.pending) > 0 {
			l.cur, l.pending = l.pending[0], l.pending[1:]
			l.ok = true
			return true
		}
		if l.matches != nil {
			if l.matches.Next() {
				m, _ := l.matches.Get()
				l.pending = l.resolve(m)
				continue
			}
			err := l.matches.Err()
			l.matches.Close()
			l.matches = nil
			if err != nil && !errors.IsNotFoundError(err) {
				l.err = err
			}
			continue
		}
		if !l.product.Next() {
			l.err = l.product.Err()
			return false
		}
		combo, err := l.product.Get()
		if err != nil {
			l.err = err
			return false
		}
		l.lookup(combo)
	}
	return false
}

// lookup starts streaming the links matching one combination.
func (l *LazyQuery) lookup(combo []Answer) {
	targets := make([]hasher.Handle, len(combo))
	carried := make([]*assign.Assignment, 0, len(combo))
	for i, ans := range combo {
		if l.positions[i].Variable != "" {
			targets[i] = hasher.Wildcard
			continue
		}
		if ans.Subgraph.Atom == nil {
			return
		}
		targets[i] = ans.Subgraph.Atom.Handle
		carried = append(carried, ans.Assignment)
	}
	composed, ok := assign.Compose(carried...)
	if !ok {
		return
	}

	logger.FromContext(l.ctx, l.logger).Debugw("Link pattern lookup",
		logger.FieldType, l.linkType,
		logger.FieldTargets, targets,
	)
	it, err := cursor.LinkQuery(l.ctx, l.backend, l.linkType, targets, l.opts.Match, cursor.Options{ChunkSize: l.opts.ChunkSize})
	if err != nil {
		if !errors.IsNotFoundError(err) {
			l.err = err
		}
		return
	}
	l.targets = targets
	l.carried = composed
	l.matches = it
}

// resolve turns one matching link into answers, one per distinct
// variable binding.
func (l *LazyQuery) resolve(m storage.Match) []Answer {
	if len(m.Targets) != len(l.positions) {
		return nil
	}
	var bindings [][]hasher.Handle
	if l.backend.Schema().IsUnordered(m.Type) {
		bindings = l.unorderedBindings(m)
	} else {
		vals := make([]hasher.Handle, 0, len(l.positions))
		for i, p := range l.positions {
			if p.Variable != "" {
				vals = append(vals, m.Targets[i])
			}
		}
		bindings = [][]hasher.Handle{vals}
	}
	if len(bindings) == 0 {
		return nil
	}

	deep, err := l.backend.GetAtomDeep(l.ctx, m.Handle)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			l.err = err
		}
		return nil
	}

	var out []Answer
	seen := make(map[string]struct{}, len(bindings))
	for _, vals := range bindings {
		a, ok := l.bind(vals)
		if !ok {
			continue
		}
		if _, dup := seen[a.Key()]; dup {
			continue
		}
		seen[a.Key()] = struct{}{}
		out = append(out, Answer{Subgraph: Subgraph{Atom: deep}, Assignment: a})
	}
	return out
}

// bind assigns vals to the variable positions in order, on top of the
// assignment carried by the concrete positions.
func (l *LazyQuery) bind(vals []hasher.Handle) (*assign.Assignment, bool) {
	b := assign.NewBuilder()
	if ok, err := b.Merge(l.carried); err != nil || !ok {
		return nil, false
	}
	j := 0
	for _, p := range l.positions {
		if p.Variable == "" {
			continue
		}
		ok, err := b.Assign(p.Variable, vals[j])
		if err != nil {
			l.err = err
			return nil, false
		}
		if !ok {
			return nil, false
		}
		j++
	}
	return b.Freeze(), true
}

// unorderedBindings removes the concrete targets from the link's target
// multiset and returns every distinct ordering of what is left for the
// variable positions.
func (l *LazyQuery) unorderedBindings(m storage.Match) [][]hasher.Handle {
	remaining := make([]hasher.Handle, len(m.Targets))
	copy(remaining, m.Targets)
	vars := 0
	for _, p := range l.positions {
		if p.Variable != "" {
			vars++
		}
	}
	for i, p := range l.positions {
		if p.Variable != "" {
			continue
		}
		k := indexOf(remaining, l.targets[i])
		if k < 0 {
			return nil
		}
		remaining = append(remaining[:k], remaining[k+1:]...)
	}
	if len(remaining) != vars {
		return nil
	}
	return permutations(remaining)
}

func indexOf(hs []hasher.Handle, h hasher.Handle) int {
	for i, x := range hs {
		if x == h {
			return i
		}
	}
	return -1
}

// permutations returns the distinct orderings of hs.
func permutations(hs []hasher.Handle) [][]hasher.Handle {
	if len(hs) == 0 {
		return [][]hasher.Handle{{}}
	}
	var out [][]hasher.Handle
	used := make(map[hasher.Handle]bool, len(hs))
	for i, h := range hs {
		if used[h] {
			continue
		}
		used[h] = true
		rest := make([]hasher.Handle, 0, len(hs)-1)
		rest = append(rest, hs[:i]...)
		rest = append(rest, hs[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]hasher.Handle{h}, tail...))
		}
	}
	return out
}

func (l *LazyQuery) Get() (Answer, error) {
	switch {
	case !l.started:
		return Answer{}, errors.ErrNotStarted
	case !l.ok:
		return Answer{}, errors.ErrExhausted
	}
	return l.cur, nil
}

func (l *LazyQuery) IsEmpty() bool {
	if l.err != nil {
		return true
	}
	if len(l.pending) > 0 {
		return false
	}
	if l.matches != nil && !l.matches.IsEmpty() {
		return false
	}
	return l.product.IsEmpty()
}

func (l *LazyQuery) Err() error { return l.err }

func (l *LazyQuery) Close() error {
	var err error
	if l.matches != nil {
		err = l.matches.Close()
		l.matches = nil
	}
	return errors.Join(err, l.product.Close())
}
