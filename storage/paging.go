package storage

import (
	"github.com/teranos/atomdb/errors"
)

// PageOf slices items by offset. The request cursor is the offset to
// start at; the returned cursor is the next offset, or 0 once the end is
// reached. items must be in a deterministic order across calls.
func PageOf[T any](items []T, req PageRequest) (Page[T], error) {
	if req.ChunkSize < 0 {
		return Page[T]{}, errors.NewInvalidRequestError("negative chunk size %d", req.ChunkSize)
	}
	start := req.Cursor
	if start > uint64(len(items)) {
		return Page[T]{}, errors.NewInvalidRequestError("cursor %d past end of %d results", start, len(items))
	}
	if req.ChunkSize == 0 {
		return Page[T]{Items: items[start:]}, nil
	}
	end := start + uint64(req.ChunkSize)
	if end >= uint64(len(items)) {
		return Page[T]{Items: items[start:]}, nil
	}
	return Page[T]{Cursor: end, Items: items[start:end]}, nil
}

// FilterToplevel keeps matches whose atom is toplevel according to isTop.
func FilterToplevel(matches []Match, isTop func(Match) (bool, error)) ([]Match, error) {
	out := matches[:0:0]
	for _, m := range matches {
		ok, err := isTop(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}
