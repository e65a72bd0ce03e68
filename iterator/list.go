package iterator

import "github.com/teranos/atomdb/errors"

// List iterates a materialized slice.
type List[T any] struct {
	items []T
	pos   int
}

// FromSlice wraps items. The slice is not copied.
func FromSlice[T any](items []T) *List[T] {
	return &List[T]{items: items, pos: -1}
}

// Empty returns an iterator with no elements.
func Empty[T any]() *List[T] { return FromSlice[T](nil) }

func (l *List[T]) Next() bool {
	if l.pos < len(l.items) {
		l.pos++
	}
	return l.pos < len(l.items)
}

func (l *List[T]) Get() (T, error) {
	var zero T
	switch {
	case l.pos < 0:
		return zero, errors.ErrNotStarted
	case l.pos >= len(l.items):
		return zero, errors.ErrExhausted
	}
	return l.items[l.pos], nil
}

func (l *List[T]) IsEmpty() bool { return l.pos+1 >= len(l.items) }

func (l *List[T]) Err() error { return nil }

func (l *List[T]) Close() error { return nil }

// Len returns the number of elements.
func (l *List[T]) Len() int { return len(l.items) }
