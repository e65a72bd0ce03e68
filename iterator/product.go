package iterator

import "github.com/teranos/atomdb/errors"

// Product enumerates the cartesian product of its sources, the last
// source varying fastest. Each source is pulled once; elements are kept
// in a per-source buffer and replayed for later combinations.
type Product[T any] struct {
	sources []Iterator[T]
	bufs    [][]T
	idx     []int
	drained []bool

	empty   bool
	started bool
	done    bool
	err     error
}

// NewProduct builds the product of sources. It is empty if there are no
// sources or any source is empty.
func NewProduct[T any](sources ...Iterator[T]) *Product[T] {
	p := &Product[T]{
		sources: sources,
		bufs:    make([][]T, len(sources)),
		idx:     make([]int, len(sources)),
		drained: make([]bool, len(sources)),
		empty:   len(sources) == 0,
	}
	for _, s := range sources {
		if s.IsEmpty() {
			p.empty = true
		}
	}
	return p
}

// pull reads one more element of source i into its buffer.
func (p *Product[T]) pull(i int) bool {
	if p.drained[i] {
		return false
	}
	s := p.sources[i]
	if !s.Next() {
		p.drained[i] = true
		if err := s.Err(); err != nil {
			p.err = err
		}
		return false
	}
	v, err := s.Get()
	if err != nil {
		p.err = err
		return false
	}
	p.bufs[i] = append(p.bufs[i], v)
	return true
}

func (p *Product[T]) Next() bool {
	if p.empty || p.done || p.err != nil {
		return false
	}
	if !p.started {
		p.started = true
		for i := range p.sources {
			if !p.pull(i) {
				p.done = true
				return false
			}
		}
		return true
	}
	for i := len(p.sources) - 1; i >= 0; i-- {
		if p.idx[i]+1 < len(p.bufs[i]) || p.pull(i) {
			p.idx[i]++
			return true
		}
		if p.err != nil {
			return false
		}
		p.idx[i] = 0
	}
	p.done = true
	return false
}

// Get returns the current combination as a fresh slice.
func (p *Product[T]) Get() ([]T, error) {
	switch {
	case !p.started && !p.empty:
		return nil, errors.ErrNotStarted
	case p.empty || p.done || p.err != nil:
		return nil, errors.ErrExhausted
	}
	out := make([]T, len(p.sources))
	for i, buf := range p.bufs {
		out[i] = buf[p.idx[i]]
	}
	return out, nil
}

func (p *Product[T]) IsEmpty() bool {
	if p.empty || p.done || p.err != nil {
		return true
	}
	if !p.started {
		return false
	}
	for i, s := range p.sources {
		if p.idx[i]+1 < len(p.bufs[i]) || !(p.drained[i] || s.IsEmpty()) {
			return false
		}
	}
	return true
}

func (p *Product[T]) Err() error { return p.err }

func (p *Product[T]) Close() error { return closeAll(p.sources) }
