package docstore

import (
	"context"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/db"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/index"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

func (s *Store) GetNodeHandle(ctx context.Context, nodeType, name string) (hasher.Handle, error) {
	h := hasher.TerminalHash(nodeType, name)
	ok, err := s.exists(ctx, h)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.NewNotFoundError("node %s:%s", nodeType, name)
	}
	return h, nil
}

func (s *Store) GetLinkHandle(ctx context.Context, linkType string, targets []hasher.Handle) (hasher.Handle, error) {
	h := s.schema.LinkHandle(linkType, targets)
	ok, err := s.exists(ctx, h)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.NewNotFoundError("link %s%v", linkType, targets)
	}
	return h, nil
}

func (s *Store) GetMatchedLinks(ctx context.Context, linkType string, targets []hasher.Handle, opts storage.MatchOptions) ([]storage.Match, error) {
	if err := storage.CheckPattern(linkType, targets); err != nil {
		return nil, err
	}

	var out []storage.Match
	if index.IsFullySpecified(linkType, targets) {
		a, err := s.loadAtom(ctx, s.schema.LinkHandle(linkType, targets))
		if err != nil || a == nil {
			return nil, err
		}
		out = []storage.Match{storage.MatchOf(a)}
	} else {
		seen := make(map[hasher.Handle]struct{})
		for _, l := range index.QueryLookups(s.schema, linkType, targets) {
			bucket, err := s.bucket(ctx, keyPattern, l.Key)
			if err != nil {
				return nil, err
			}
			for _, m := range bucket {
				if l.UnorderedOnly && !s.schema.IsUnordered(m.Type) {
					continue
				}
				if _, dup := seen[m.Handle]; dup {
					continue
				}
				seen[m.Handle] = struct{}{}
				out = append(out, m)
			}
		}
	}

	out, err := s.filterTop(ctx, out, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("matched links",
		logger.FieldType, linkType,
		logger.FieldTargets, targets,
		logger.FieldCount, len(out),
	)
	return out, nil
}

func (s *Store) GetMatchedTypeTemplate(ctx context.Context, tmpl *atom.TypeTemplate, opts storage.MatchOptions) ([]storage.Match, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if !tmpl.HasWildcard() {
		key, _ := s.schema.TemplateHash(tmpl)
		matches, err := s.bucket(ctx, keyTemplate, key)
		if err != nil {
			return nil, err
		}
		return s.filterTop(ctx, matches, opts)
	}
	if tmpl.Type == atom.AnyType {
		return nil, errors.NewMalformedPatternError("template %s needs a concrete top-level type", tmpl)
	}

	candidates, err := s.bucket(ctx, keyTemplate, hasher.NamedTypeHash(tmpl.Type))
	if err != nil {
		return nil, err
	}
	var out []storage.Match
	for _, m := range candidates {
		a, err := s.loadAtom(ctx, m.Handle)
		if err != nil {
			return nil, err
		}
		if a == nil || (opts.ToplevelOnly && !a.Toplevel) {
			continue
		}
		if s.schema.MatchTemplate(tmpl, a.CompositeType) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) GetMatchedType(ctx context.Context, linkType string, opts storage.MatchOptions) ([]storage.Match, error) {
	matches, err := s.bucket(ctx, keyTemplate, hasher.NamedTypeHash(linkType))
	if err != nil {
		return nil, err
	}
	return s.filterTop(ctx, matches, opts)
}

func (s *Store) filterTop(ctx context.Context, matches []storage.Match, opts storage.MatchOptions) ([]storage.Match, error) {
	if !opts.ToplevelOnly || len(matches) == 0 {
		return matches, nil
	}
	handles := make([]hasher.Handle, len(matches))
	for i, m := range matches {
		handles[i] = m.Handle
	}
	top, err := s.toplevelSet(ctx, handles)
	if err != nil {
		return nil, err
	}
	return storage.FilterToplevel(matches, func(m storage.Match) (bool, error) {
		return top[m.Handle], nil
	})
}

func (s *Store) GetAtom(ctx context.Context, h hasher.Handle) (*atom.Atom, error) {
	a, err := s.loadAtom(ctx, h)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.NewNotFoundError("atom %s", h)
	}
	return a, nil
}

func (s *Store) GetAtomDeep(ctx context.Context, h hasher.Handle) (*atom.Deep, error) {
	return storage.ExpandDeep(ctx, h, s.GetAtom)
}

func (s *Store) GetIncomingLinks(ctx context.Context, h hasher.Handle, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
	if req.ChunkSize < 0 {
		return storage.Page[hasher.Handle]{}, errors.NewInvalidRequestError("negative chunk size %d", req.ChunkSize)
	}
	return s.incomingPage(ctx, h, req)
}

func (s *Store) AddNode(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	if err := storage.CheckNodeParams(p); err != nil {
		return nil, err
	}
	return s.add(ctx, p)
}

func (s *Store) AddLink(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	if err := storage.CheckLinkParams(p); err != nil {
		return nil, err
	}
	return s.add(ctx, p)
}

func (s *Store) add(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return storage.Decompose(ctx, s.schema, writer{s}, p, true)
}

func (s *Store) CountAtoms(ctx context.Context) (storage.Counts, error) {
	rows, err := s.db.QueryContext(ctx, atomCountQuery)
	if err != nil {
		return storage.Counts{}, db.Wrap(err, "failed to count atoms")
	}
	defer rows.Close()

	var counts storage.Counts
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return storage.Counts{}, db.Wrap(err, "failed to scan count")
		}
		switch atom.Kind(kind) {
		case atom.KindNode:
			counts.Nodes = n
		case atom.KindLink:
			counts.Links = n
		}
	}
	return counts, db.Wrap(rows.Err(), "failed to count atoms")
}

func (s *Store) ClearDatabase(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.dropFieldIndexes(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM atoms`); err != nil {
		return db.Wrap(err, "failed to clear atoms")
	}
	if err := s.clearIndices(ctx); err != nil {
		return err
	}
	s.logger.Infow("cleared database", "prefix", s.prefix)
	return nil
}

// writer adapts Store to storage.AtomWriter. Callers hold writeMu.
type writer struct{ s *Store }

func (w writer) Lookup(ctx context.Context, h hasher.Handle) (*atom.Atom, error) {
	return w.s.loadAtom(ctx, h)
}

func (w writer) Insert(ctx context.Context, a *atom.Atom) error {
	if err := w.s.insertDocument(ctx, a); err != nil {
		return err
	}
	if a.IsNode() {
		return nil
	}
	return w.s.fileIndices(ctx, a)
}

func (w writer) Promote(ctx context.Context, h hasher.Handle) error {
	if _, err := w.s.db.ExecContext(ctx, atomPromoteQuery, h); err != nil {
		return db.Wrapf(err, "failed to promote %s", h)
	}
	return nil
}
