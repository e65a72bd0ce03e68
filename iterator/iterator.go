// Package iterator implements the lazy pull sequences the query engine is
// built from.
//
// Every iterator starts before its first element: call Next, then Get.
// IsEmpty is answered from what the iterator already knows (its
// construction state and whether its sources are used up); it never pulls
// ahead to find out.
package iterator

import (
	"github.com/teranos/atomdb/assign"
	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
)

// Iterator is a lazy sequence.
type Iterator[T any] interface {
	// Next advances and reports whether an element is available.
	Next() bool
	// Get returns the current element. It fails with errors.ErrNotStarted
	// before the first Next and errors.ErrExhausted after the last.
	Get() (T, error)
	// IsEmpty reports whether no element remains after the current one.
	IsEmpty() bool
	// Err returns the error that ended iteration early, if any.
	Err() error
	Close() error
}

// Subgraph is the matched part of the graph. Single patterns set Atom;
// conjunctions set Parts, one per clause.
type Subgraph struct {
	Atom  *atom.Deep `json:"atom,omitempty"`
	Parts []Subgraph `json:"parts,omitempty"`
}

// Answer is one query result.
type Answer struct {
	Subgraph   Subgraph           `json:"subgraph"`
	Assignment *assign.Assignment `json:"-"`
}

// Bindings returns the answer's variable bindings as a map.
func (a Answer) Bindings() map[string]string {
	out := make(map[string]string, a.Assignment.Len())
	for _, kv := range a.Assignment.Bindings() {
		out[kv.Label] = string(kv.Value)
	}
	return out
}

// Collect drains it into a slice and closes it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		v, err := it.Get()
		if err != nil {
			it.Close()
			return nil, err
		}
		out = append(out, v)
	}
	return out, errors.Join(it.Err(), it.Close())
}

func closeAll[T any](its []Iterator[T]) error {
	var errs []error
	for _, it := range its {
		errs = append(errs, it.Close())
	}
	return errors.Join(errs...)
}
