package docstore

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/index"
	"github.com/teranos/atomdb/storage"
)

// Redis key kinds
const (
	keyPattern  = "pattern"
	keyTemplate = "template"
	keyIncoming = "incoming"
)

// encodeMatch renders an index entry as a set member. Members are
// deterministic for a given link, so re-filing is a no-op.
func encodeMatch(m storage.Match) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal index entry")
	}
	return string(data), nil
}

func decodeMatches(members []string) ([]storage.Match, error) {
	out := make([]storage.Match, 0, len(members))
	for _, member := range members {
		var m storage.Match
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			return nil, errors.Wrapf(err, "corrupt index entry %q", member)
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b storage.Match) int {
		switch {
		case a.Handle < b.Handle:
			return -1
		case a.Handle > b.Handle:
			return 1
		}
		return 0
	})
	return out, nil
}

// fileIndices adds a link to every pattern, template and incoming set in
// a single MULTI block.
func (s *Store) fileIndices(ctx context.Context, link *atom.Atom) error {
	member, err := encodeMatch(storage.MatchOf(link))
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range index.PatternKeys(s.schema, link) {
			pipe.SAdd(ctx, s.key(keyPattern, string(key)), member)
		}
		for _, key := range index.TemplateKeys(link) {
			pipe.SAdd(ctx, s.key(keyTemplate, string(key)), member)
		}
		for _, t := range link.Targets {
			pipe.SAdd(ctx, s.key(keyIncoming, string(t)), string(link.Handle))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
	}
	return nil
}

func (s *Store) bucket(ctx context.Context, kind string, key hasher.Handle) ([]storage.Match, error) {
	members, err := s.rdb.SMembers(ctx, s.key(kind, string(key))).Result()
	if err != nil {
		return nil, errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
	}
	return decodeMatches(members)
}

// incomingPage pages the incoming set with SSCAN. The Redis cursor is
// passed through unchanged, so 0 starts a scan and 0 ends it. SSCAN may
// repeat members across pages.
func (s *Store) incomingPage(ctx context.Context, h hasher.Handle, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
	key := s.key(keyIncoming, string(h))
	if req.ChunkSize == 0 {
		members, err := s.rdb.SMembers(ctx, key).Result()
		if err != nil {
			return storage.Page[hasher.Handle]{}, errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
		}
		slices.Sort(members)
		return storage.Page[hasher.Handle]{Items: toHandles(members)}, nil
	}

	members, next, err := s.rdb.SScan(ctx, key, req.Cursor, "", int64(req.ChunkSize)).Result()
	if err != nil {
		return storage.Page[hasher.Handle]{}, errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
	}
	return storage.Page[hasher.Handle]{Cursor: next, Items: toHandles(members)}, nil
}

// clearIndices deletes every key under the store's prefix.
func (s *Store) clearIndices(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.ErrConnection, "redis: "+err.Error())
	}
	return flush()
}

func toHandles(members []string) []hasher.Handle {
	out := make([]hasher.Handle, len(members))
	for i, m := range members {
		out[i] = hasher.Handle(m)
	}
	return out
}
