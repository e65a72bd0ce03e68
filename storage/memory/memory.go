// Package memory implements storage.Backend with in-process maps.
package memory

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/index"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// Backend keeps atoms and every derived index in maps guarded by one
// RWMutex. Index buckets are append-only between ClearDatabase calls.
type Backend struct {
	mu     sync.RWMutex
	schema atom.Schema
	logger *zap.SugaredLogger

	atoms     map[hasher.Handle]*atom.Atom
	patterns  map[hasher.Handle][]storage.Match
	templates map[hasher.Handle][]storage.Match
	incoming  map[hasher.Handle][]hasher.Handle
	indexes   map[hasher.Handle]storage.FieldIndex
	nodes     int
	links     int
	closed    bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithSchema sets the unordered link type set.
func WithSchema(s atom.Schema) Option {
	return func(b *Backend) { b.schema = s }
}

// WithLogger sets the logger. A nil logger keeps the backend silent.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Backend) { b.logger = l }
}

// New returns an empty in-memory backend using atom.DefaultSchema.
func New(opts ...Option) *Backend {
	b := &Backend{schema: atom.DefaultSchema()}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop().Sugar()
	}
	b.reset()
	return b
}

var _ storage.Backend = (*Backend)(nil)

func (b *Backend) reset() {
	b.atoms = make(map[hasher.Handle]*atom.Atom)
	b.patterns = make(map[hasher.Handle][]storage.Match)
	b.templates = make(map[hasher.Handle][]storage.Match)
	b.incoming = make(map[hasher.Handle][]hasher.Handle)
	b.indexes = make(map[hasher.Handle]storage.FieldIndex)
	b.nodes, b.links = 0, 0
}

// Schema implements storage.Backend.
func (b *Backend) Schema() atom.Schema { return b.schema }

func (b *Backend) GetNodeHandle(_ context.Context, nodeType, name string) (hasher.Handle, error) {
	h := hasher.TerminalHash(nodeType, name)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.atoms[h]; !ok {
		return "", errors.NewNotFoundError("node %s:%s", nodeType, name)
	}
	return h, nil
}

func (b *Backend) GetLinkHandle(_ context.Context, linkType string, targets []hasher.Handle) (hasher.Handle, error) {
	h := b.schema.LinkHandle(linkType, targets)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.atoms[h]; !ok {
		return "", errors.NewNotFoundError("link %s%v", linkType, targets)
	}
	return h, nil
}

func (b *Backend) GetMatchedLinks(ctx context.Context, linkType string, targets []hasher.Handle, opts storage.MatchOptions) ([]storage.Match, error) {
	if err := storage.CheckPattern(linkType, targets); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if index.IsFullySpecified(linkType, targets) {
		a, ok := b.atoms[b.schema.LinkHandle(linkType, targets)]
		if !ok || (opts.ToplevelOnly && !a.Toplevel) {
			return nil, nil
		}
		return []storage.Match{storage.MatchOf(a)}, nil
	}

	var out []storage.Match
	seen := make(map[hasher.Handle]struct{})
	for _, l := range index.QueryLookups(b.schema, linkType, targets) {
		for _, m := range b.patterns[l.Key] {
			if l.UnorderedOnly && !b.schema.IsUnordered(m.Type) {
				continue
			}
			if _, dup := seen[m.Handle]; dup {
				continue
			}
			if opts.ToplevelOnly && !b.atoms[m.Handle].Toplevel {
				continue
			}
			seen[m.Handle] = struct{}{}
			out = append(out, m.Clone())
		}
	}
	b.logger.Debugw("matched links",
		logger.FieldType, linkType,
		logger.FieldTargets, targets,
		logger.FieldCount, len(out),
	)
	return out, nil
}

func (b *Backend) GetMatchedTypeTemplate(_ context.Context, tmpl *atom.TypeTemplate, opts storage.MatchOptions) ([]storage.Match, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !tmpl.HasWildcard() {
		key, _ := b.schema.TemplateHash(tmpl)
		return b.filterTop(b.templates[key], opts), nil
	}
	if tmpl.Type == atom.AnyType {
		return nil, errors.NewMalformedPatternError("template %s needs a concrete top-level type", tmpl)
	}

	var out []storage.Match
	for _, m := range b.templates[hasher.NamedTypeHash(tmpl.Type)] {
		a := b.atoms[m.Handle]
		if opts.ToplevelOnly && !a.Toplevel {
			continue
		}
		if b.schema.MatchTemplate(tmpl, a.CompositeType) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (b *Backend) GetMatchedType(_ context.Context, linkType string, opts storage.MatchOptions) ([]storage.Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filterTop(b.templates[hasher.NamedTypeHash(linkType)], opts), nil
}

// filterTop copies matches out of an index bucket, dropping nested-only
// links when opts asks for it.
func (b *Backend) filterTop(matches []storage.Match, opts storage.MatchOptions) []storage.Match {
	var out []storage.Match
	for _, m := range matches {
		if opts.ToplevelOnly && !b.atoms[m.Handle].Toplevel {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

func (b *Backend) GetAtom(_ context.Context, h hasher.Handle) (*atom.Atom, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.atoms[h]
	if !ok {
		return nil, errors.NewNotFoundError("atom %s", h)
	}
	return a.Clone(), nil
}

func (b *Backend) GetAtomDeep(ctx context.Context, h hasher.Handle) (*atom.Deep, error) {
	return storage.ExpandDeep(ctx, h, b.GetAtom)
}

func (b *Backend) GetIncomingLinks(_ context.Context, h hasher.Handle, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return storage.PageOf(slices.Clone(b.incoming[h]), req)
}

func (b *Backend) AddNode(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	if err := storage.CheckNodeParams(p); err != nil {
		return nil, err
	}
	return b.add(ctx, p)
}

func (b *Backend) AddLink(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	if err := storage.CheckLinkParams(p); err != nil {
		return nil, err
	}
	return b.add(ctx, p)
}

func (b *Backend) add(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.ErrClosed
	}
	a, err := storage.Decompose(ctx, b.schema, writer{b}, p, true)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (b *Backend) CountAtoms(_ context.Context) (storage.Counts, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return storage.Counts{Nodes: b.nodes, Links: b.links}, nil
}

func (b *Backend) ClearDatabase(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	b.logger.Infow("cleared database")
	return nil
}

func (b *Backend) CreateFieldIndex(_ context.Context, atomType, field string) (hasher.Handle, error) {
	if atomType == "" {
		return "", errors.NewInvalidRequestError("field index needs an atom type")
	}
	if err := storage.CheckFieldName(field); err != nil {
		return "", err
	}
	id := storage.FieldIndexID(atomType, field)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexes[id] = storage.FieldIndex{ID: id, AtomType: atomType, Field: field}
	b.logger.Infow("created field index",
		logger.FieldIndexID, id,
		logger.FieldType, atomType,
		"field", field,
	)
	return id, nil
}

// GetAtomsByIndex scans the index's atom type. Results are sorted by
// handle so paging over them is stable.
func (b *Backend) GetAtomsByIndex(_ context.Context, indexID hasher.Handle, conds []storage.Condition) ([]hasher.Handle, error) {
	if err := storage.CheckConditions(conds); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	idx, ok := b.indexes[indexID]
	if !ok {
		return nil, errors.NewNotFoundError("field index %s", indexID)
	}
	var out []hasher.Handle
	for h, a := range b.atoms {
		if a.Type == idx.AtomType && storage.MatchesConditions(a, conds) {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// writer adapts Backend to storage.AtomWriter. Callers hold b.mu.
type writer struct{ b *Backend }

func (w writer) Lookup(_ context.Context, h hasher.Handle) (*atom.Atom, error) {
	return w.b.atoms[h], nil
}

func (w writer) Insert(_ context.Context, a *atom.Atom) error {
	b := w.b
	b.atoms[a.Handle] = a
	if a.IsNode() {
		b.nodes++
		return nil
	}
	b.links++

	m := storage.MatchOf(a)
	for _, key := range index.PatternKeys(b.schema, a) {
		b.patterns[key] = append(b.patterns[key], m)
	}
	for _, key := range index.TemplateKeys(a) {
		b.templates[key] = append(b.templates[key], m)
	}
	seen := make(map[hasher.Handle]struct{}, len(a.Targets))
	for _, t := range a.Targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		b.incoming[t] = append(b.incoming[t], a.Handle)
	}
	return nil
}

func (w writer) Promote(_ context.Context, h hasher.Handle) error {
	w.b.atoms[h].Toplevel = true
	return nil
}

func (b *Backend) String() string { return "memory" }
