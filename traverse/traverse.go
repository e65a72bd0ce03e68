// Package traverse walks the hypergraph from a movable cursor.
package traverse

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/cursor"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/iterator"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// Engine holds a cursor at one atom. It is not safe for concurrent use.
type Engine struct {
	backend   storage.Backend
	cursor    hasher.Handle
	chunkSize int
	rand      *rand.Rand
	logger    *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize pages incoming link lookups. 0 fetches them in one page.
func WithChunkSize(n int) Option {
	return func(e *Engine) { e.chunkSize = n }
}

// WithRand sets the source FollowLink draws from.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// New places a cursor at start, which must exist.
func New(ctx context.Context, b storage.Backend, start hasher.Handle, opts ...Option) (*Engine, error) {
	e := &Engine{backend: b}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.logger == nil {
		e.logger = zap.NewNop().Sugar()
	}
	if _, err := e.Goto(ctx, start); err != nil {
		return nil, err
	}
	return e, nil
}

// Cursor returns the handle the engine is at.
func (e *Engine) Cursor() hasher.Handle { return e.cursor }

// Get returns the atom under the cursor.
func (e *Engine) Get(ctx context.Context) (*atom.Atom, error) {
	return e.backend.GetAtom(ctx, e.cursor)
}

// Goto moves the cursor to h. The cursor stays put if h does not exist.
func (e *Engine) Goto(ctx context.Context, h hasher.Handle) (*atom.Atom, error) {
	a, err := e.backend.GetAtom(ctx, h)
	if err != nil {
		return nil, errors.Wrapf(err, "goto %s", h)
	}
	logger.FromContext(ctx, e.logger).Debugw("Cursor moved", logger.FieldHandle, string(h), logger.FieldType, a.Type)
	e.cursor = h
	return a, nil
}

// GetLinks streams the links that have the cursor as a target and pass
// every filter.
func (e *Engine) GetLinks(ctx context.Context, fs ...Filter) (iterator.Iterator[*atom.Atom], error) {
	f, err := buildFilters(fs)
	if err != nil {
		return nil, err
	}
	handles, err := cursor.IncomingLinks(ctx, e.backend, e.cursor, cursor.Options{ChunkSize: e.chunkSize})
	if err != nil {
		return nil, err
	}
	return &links{ctx: ctx, backend: e.backend, at: e.cursor, filters: f, handles: handles}, nil
}

// GetNeighbors streams the distinct atoms that share a filtered link with
// the cursor. The cursor itself is never a neighbor.
func (e *Engine) GetNeighbors(ctx context.Context, fs ...Filter) (iterator.Iterator[*atom.Atom], error) {
	ls, err := e.GetLinks(ctx, fs...)
	if err != nil {
		return nil, err
	}
	return &neighbors{
		ctx:     ctx,
		backend: e.backend,
		links:   ls,
		seen:    map[hasher.Handle]bool{e.cursor: true},
	}, nil
}

// FollowLink moves the cursor to a neighbor picked uniformly at random and
// returns it. It fails with ErrNotFound when no neighbor passes the filters.
func (e *Engine) FollowLink(ctx context.Context, fs ...Filter) (*atom.Atom, error) {
	ns, err := e.GetNeighbors(ctx, fs...)
	if err != nil {
		return nil, err
	}
	var (
		picked *atom.Atom
		seen   int
	)
	for ns.Next() {
		n, err := ns.Get()
		if err != nil {
			ns.Close()
			return nil, err
		}
		seen++
		if e.rand.IntN(seen) == 0 {
			picked = n
		}
	}
	if err := errors.Join(ns.Err(), ns.Close()); err != nil {
		return nil, err
	}
	if picked == nil {
		return nil, errors.NewNotFoundError("no neighbor of %s to follow", e.cursor)
	}
	logger.FromContext(ctx, e.logger).Debugw("Link followed",
		logger.FieldCount, seen,
		logger.FieldHandle, string(picked.Handle),
	)
	e.cursor = picked.Handle
	return picked, nil
}

// links resolves and filters incoming link handles one at a time.
type links struct {
	ctx     context.Context
	backend storage.Backend
	at      hasher.Handle
	filters *filters
	handles *cursor.Iterator[hasher.Handle]

	cur     *atom.Atom
	started bool
	err     error
}

func (l *links) Next() bool {
	l.started = true
	l.cur = nil
	if l.err != nil {
		return false
	}
	for l.handles.Next() {
		h, err := l.handles.Get()
		if err != nil {
			l.err = err
			return false
		}
		link, err := l.backend.GetAtom(l.ctx, h)
		if errors.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			l.err = err
			return false
		}
		ok, err := l.filters.keep(l.ctx, l.backend, l.at, link)
		if err != nil {
			l.err = err
			return false
		}
		if ok {
			l.cur = link
			return true
		}
	}
	l.err = l.handles.Err()
	return false
}

func (l *links) Get() (*atom.Atom, error) {
	switch {
	case !l.started:
		return nil, errors.ErrNotStarted
	case l.cur == nil:
		return nil, errors.ErrExhausted
	}
	return l.cur, nil
}

func (l *links) IsEmpty() bool { return l.err != nil || l.handles.IsEmpty() }

func (l *links) Err() error { return l.err }

func (l *links) Close() error { return l.handles.Close() }

// neighbors expands filtered links into their other targets.
type neighbors struct {
	ctx     context.Context
	backend storage.Backend
	links   iterator.Iterator[*atom.Atom]
	seen    map[hasher.Handle]bool
	queue   []hasher.Handle

	cur     *atom.Atom
	started bool
	err     error
}

func (n *neighbors) Next() bool {
	n.started = true
	n.cur = nil
	for n.err == nil {
		for len(n.queue) > 0 {
			h := n.queue[0]
			n.queue = n.queue[1:]
			a, err := n.backend.GetAtom(n.ctx, h)
			if errors.IsNotFoundError(err) {
				continue
			}
			if err != nil {
				n.err = err
				return false
			}
			n.cur = a
			return true
		}
		if !n.links.Next() {
			n.err = n.links.Err()
			return false
		}
		l, err := n.links.Get()
		if err != nil {
			n.err = err
			return false
		}
		for _, h := range l.Targets {
			if !n.seen[h] {
				n.seen[h] = true
				n.queue = append(n.queue, h)
			}
		}
	}
	return false
}

func (n *neighbors) Get() (*atom.Atom, error) {
	switch {
	case !n.started:
		return nil, errors.ErrNotStarted
	case n.cur == nil:
		return nil, errors.ErrExhausted
	}
	return n.cur, nil
}

func (n *neighbors) IsEmpty() bool {
	return n.err != nil || (len(n.queue) == 0 && n.links.IsEmpty())
}

func (n *neighbors) Err() error { return n.err }

func (n *neighbors) Close() error { return n.links.Close() }
