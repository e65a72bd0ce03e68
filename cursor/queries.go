package cursor

import (
	"context"

	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/storage"
)

// Options sizes the pages requested from a backend. ChunkSize 0 fetches
// everything as one page.
type Options struct {
	ChunkSize int
}

func (o Options) request(cursor uint64) storage.PageRequest {
	return storage.PageRequest{Cursor: cursor, ChunkSize: o.ChunkSize}
}

func handleKey(h hasher.Handle) string { return string(h) }

// IncomingLinks iterates the links that have h as a target. Paged backends
// may repeat a handle across pages; repeats are dropped.
func IncomingLinks(ctx context.Context, b storage.Backend, h hasher.Handle, o Options) (*Iterator[hasher.Handle], error) {
	fetch := func(ctx context.Context, cursor uint64) (storage.Page[hasher.Handle], error) {
		return b.GetIncomingLinks(ctx, h, o.request(cursor))
	}
	first, err := fetch(ctx, 0)
	if err != nil {
		return nil, err
	}
	return New(ctx, first, fetch, Dedupe(handleKey)), nil
}

// LinkQuery iterates the links matching a pattern. A backend implementing
// storage.Paginated is paged server side; any other backend is queried
// once and paged locally.
func LinkQuery(ctx context.Context, b storage.Backend, linkType string, targets []hasher.Handle, opts storage.MatchOptions, o Options) (*Iterator[storage.Match], error) {
	var fetch FetchFunc[storage.Match]
	if p, ok := b.(storage.Paginated); ok && o.ChunkSize > 0 {
		fetch = func(ctx context.Context, cursor uint64) (storage.Page[storage.Match], error) {
			return p.MatchedLinksPage(ctx, linkType, targets, opts, o.request(cursor))
		}
	} else {
		matches, err := b.GetMatchedLinks(ctx, linkType, targets, opts)
		if err != nil {
			return nil, err
		}
		fetch = local(matches, o)
	}
	first, err := fetch(ctx, 0)
	if err != nil {
		return nil, err
	}
	return New(ctx, first, fetch), nil
}

// IndexQuery iterates the atoms selected by a field index.
func IndexQuery(ctx context.Context, b storage.Backend, indexID hasher.Handle, conds []storage.Condition, o Options) (*Iterator[hasher.Handle], error) {
	var fetch FetchFunc[hasher.Handle]
	if p, ok := b.(storage.Paginated); ok && o.ChunkSize > 0 {
		fetch = func(ctx context.Context, cursor uint64) (storage.Page[hasher.Handle], error) {
			return p.AtomsByIndexPage(ctx, indexID, conds, o.request(cursor))
		}
	} else {
		got, err := b.GetAtomsByIndex(ctx, indexID, conds)
		if err != nil {
			return nil, err
		}
		fetch = local(got, o)
	}
	first, err := fetch(ctx, 0)
	if err != nil {
		return nil, err
	}
	return New(ctx, first, fetch), nil
}

// local pages a materialized result by offset.
func local[T any](items []T, o Options) FetchFunc[T] {
	return func(_ context.Context, cursor uint64) (storage.Page[T], error) {
		return storage.PageOf(items, o.request(cursor))
	}
}
