package iterator

import (
	"github.com/teranos/atomdb/assign"
	"github.com/teranos/atomdb/errors"
)

// And joins clause answers: every combination of one answer per clause
// whose assignments compose becomes one answer. Incompatible combinations
// are skipped.
type And struct {
	product *Product[Answer]
	cur     Answer
	ok      bool
	started bool
}

// NewAnd joins clauses.
func NewAnd(clauses ...Iterator[Answer]) *And {
	return &And{product: NewProduct(clauses...)}
}

func (a *And) Next() bool {
	a.started = true
	a.ok = false
	for a.product.Next() {
		combo, err := a.product.Get()
		if err != nil {
			return false
		}
		assignments := make([]*assign.Assignment, len(combo))
		parts := make([]Subgraph, len(combo))
		for i, ans := range combo {
			assignments[i] = ans.Assignment
			parts[i] = ans.Subgraph
		}
		composed, ok := assign.Compose(assignments...)
		if !ok {
			continue
		}
		a.cur = Answer{Subgraph: Subgraph{Parts: parts}, Assignment: composed}
		a.ok = true
		return true
	}
	return false
}

func (a *And) Get() (Answer, error) {
	switch {
	case !a.started:
		return Answer{}, errors.ErrNotStarted
	case !a.ok:
		return Answer{}, errors.ErrExhausted
	}
	return a.cur, nil
}

func (a *And) IsEmpty() bool { return a.product.IsEmpty() }

func (a *And) Err() error { return a.product.Err() }

func (a *And) Close() error { return a.product.Close() }

// Or concatenates clause answers in clause order.
type Or struct {
	clauses []Iterator[Answer]
	i       int
	started bool
	ok      bool
	err     error
}

// NewOr unions clauses.
func NewOr(clauses ...Iterator[Answer]) *Or {
	return &Or{clauses: clauses}
}

func (o *Or) Next() bool {
	o.started = true
	o.ok = false
	for o.i < len(o.clauses) && o.err == nil {
		c := o.clauses[o.i]
		if c.Next() {
			o.ok = true
			return true
		}
		o.err = c.Err()
		o.i++
	}
	return false
}

func (o *Or) Get() (Answer, error) {
	switch {
	case !o.started:
		return Answer{}, errors.ErrNotStarted
	case !o.ok:
		return Answer{}, errors.ErrExhausted
	}
	return o.clauses[o.i].Get()
}

func (o *Or) IsEmpty() bool {
	if o.err != nil {
		return true
	}
	for _, c := range o.clauses[min(o.i, len(o.clauses)):] {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

func (o *Or) Err() error { return o.err }

func (o *Or) Close() error { return closeAll(o.clauses) }
