// Package cursor streams paginated backend results one element at a time.
//
// An Iterator starts from a page the caller already fetched. While the
// consumer works through the current page, at most one background fetch
// reads the next one into a single-slot channel; the consumer only blocks
// when it catches up with that fetch.
package cursor

import (
	"context"
	"sync"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/storage"
)

// FetchFunc returns the page that starts at cursor.
type FetchFunc[T any] func(ctx context.Context, cursor uint64) (storage.Page[T], error)

type fetchResult[T any] struct {
	page storage.Page[T]
	err  error
}

// Iterator pulls elements across pages.
type Iterator[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	fetch  FetchFunc[T]

	items  []T
	pos    int
	cursor uint64

	// slot holds the result of the single outstanding fetch.
	slot     chan fetchResult[T]
	inflight bool
	wg       sync.WaitGroup

	key  func(T) string
	seen map[string]struct{}

	started bool
	err     error
	closed  bool
}

// Option configures an Iterator.
type Option[T any] func(*Iterator[T])

// Dedupe drops elements whose key already surfaced on an earlier page.
func Dedupe[T any](key func(T) string) Option[T] {
	return func(it *Iterator[T]) {
		it.key = key
		it.seen = make(map[string]struct{})
	}
}

// New wraps an already fetched first page. When first.Cursor is non-zero
// the fetch for the next page starts immediately.
func New[T any](ctx context.Context, first storage.Page[T], fetch FetchFunc[T], opts ...Option[T]) *Iterator[T] {
	ctx, cancel := context.WithCancel(ctx)
	it := &Iterator[T]{
		ctx:    ctx,
		cancel: cancel,
		fetch:  fetch,
		pos:    -1,
		slot:   make(chan fetchResult[T], 1),
	}
	for _, opt := range opts {
		opt(it)
	}
	it.install(first)
	return it
}

// install makes page current and starts fetching its successor.
func (it *Iterator[T]) install(page storage.Page[T]) {
	it.items = it.filter(page.Items)
	it.pos = -1
	it.cursor = page.Cursor
	if it.cursor != 0 && it.fetch != nil {
		it.startFetch()
	}
}

func (it *Iterator[T]) filter(items []T) []T {
	if it.key == nil {
		return items
	}
	out := items[:0:0]
	for _, item := range items {
		k := it.key(item)
		if _, dup := it.seen[k]; dup {
			continue
		}
		it.seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (it *Iterator[T]) startFetch() {
	it.inflight = true
	it.wg.Add(1)
	cursor := it.cursor
	go func() {
		defer it.wg.Done()
		page, err := it.fetch(it.ctx, cursor)
		it.slot <- fetchResult[T]{page: page, err: err}
	}()
}

// Next advances to the next element, waiting for the background fetch
// when the current page is used up.
func (it *Iterator[T]) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	it.started = true
	for {
		if it.pos+1 < len(it.items) {
			it.pos++
			return true
		}
		if !it.inflight {
			it.items, it.pos = nil, -1
			return false
		}
		res := <-it.slot
		it.inflight = false
		if res.err != nil {
			it.err = errors.Wrap(res.err, "fetch next page")
			it.items, it.pos = nil, -1
			return false
		}
		it.install(res.page)
	}
}

// Get returns the current element.
func (it *Iterator[T]) Get() (T, error) {
	var zero T
	switch {
	case !it.started:
		return zero, errors.ErrNotStarted
	case it.pos < 0 || it.pos >= len(it.items):
		return zero, errors.ErrExhausted
	}
	return it.items[it.pos], nil
}

// IsEmpty reports whether no element remains after the current one.
func (it *Iterator[T]) IsEmpty() bool {
	return it.closed || it.err != nil || (it.pos+1 >= len(it.items) && !it.inflight)
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator[T]) Err() error { return it.err }

// Close cancels and joins the background fetch.
func (it *Iterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.cancel()
	if it.inflight {
		<-it.slot
		it.inflight = false
	}
	it.wg.Wait()
	return nil
}

// Collect drains it and closes it.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for it.Next() {
		v, _ := it.Get()
		out = append(out, v)
	}
	return out, it.Err()
}
