package storage

import (
	"context"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/index"
)

// AtomWriter is the persistence hook Decompose writes through. Backends
// that keep their own indices implement it over their tables.
type AtomWriter interface {
	// Lookup returns the stored atom or (nil, nil) when absent.
	Lookup(ctx context.Context, h hasher.Handle) (*atom.Atom, error)
	// Insert stores a new atom and files it in every index.
	Insert(ctx context.Context, a *atom.Atom) error
	// Promote marks an existing link as toplevel.
	Promote(ctx context.Context, h hasher.Handle) error
}

// Decompose adds p and, recursively, every nested target. Targets are
// created with toplevel=false. Re-adding an existing atom returns the
// stored record; a link first seen as a nested target is promoted when
// later added directly.
func Decompose(ctx context.Context, schema atom.Schema, w AtomWriter, p Params, toplevel bool) (*atom.Atom, error) {
	if p.Handle != "" {
		existing, err := w.Lookup(ctx, p.Handle)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.NewNotFoundError("atom %s", p.Handle)
		}
		return existing, nil
	}
	if p.Type == "" {
		return nil, errors.NewMalformedPatternError("atom without type")
	}
	if p.Type == string(hasher.Wildcard) {
		return nil, errors.NewMalformedPatternError("wildcard is not a valid atom type")
	}

	var candidate *atom.Atom
	if len(p.Targets) == 0 {
		candidate = atom.NewNode(p.Type, p.Name, p.Attributes)
	} else {
		if p.Name != "" {
			return nil, errors.NewMalformedPatternError("link %s cannot have a name", p.Type)
		}
		if err := checkArity(p.Type, len(p.Targets)); err != nil {
			return nil, err
		}
		targets := make([]*atom.Atom, len(p.Targets))
		for i, tp := range p.Targets {
			t, err := Decompose(ctx, schema, w, tp, false)
			if err != nil {
				return nil, errors.Wrapf(err, "%s target %d", p.Type, i)
			}
			targets[i] = t
		}
		candidate = atom.NewLink(schema, p.Type, targets, toplevel, p.Attributes)
	}

	existing, err := w.Lookup(ctx, candidate.Handle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if toplevel && existing.IsLink() && !existing.Toplevel {
			if err := w.Promote(ctx, existing.Handle); err != nil {
				return nil, errors.Wrapf(err, "promote %s", existing.Handle)
			}
			existing = existing.Clone()
			existing.Toplevel = true
		}
		return existing, nil
	}

	if err := w.Insert(ctx, candidate); err != nil {
		return nil, errors.Wrapf(err, "insert %s", candidate.Handle)
	}
	return candidate, nil
}

// CheckNodeParams rejects a node Params that carries targets.
func CheckNodeParams(p Params) error {
	if p.Handle == "" && len(p.Targets) > 0 {
		return errors.NewMalformedPatternError("node %s cannot have targets", p.Type)
	}
	return nil
}

// CheckLinkParams rejects a link Params without targets or with more
// than index.MaxArity of them.
func CheckLinkParams(p Params) error {
	if p.Handle != "" {
		return nil
	}
	if len(p.Targets) == 0 {
		return errors.NewMalformedPatternError("link %s has no targets", p.Type)
	}
	return checkArity(p.Type, len(p.Targets))
}

func checkArity(linkType string, n int) error {
	if n > index.MaxArity {
		return errors.NewMalformedPatternError("link %s has %d targets, more than the %d allowed", linkType, n, index.MaxArity)
	}
	return nil
}

// ExpandDeep resolves h and every nested target through get.
func ExpandDeep(ctx context.Context, h hasher.Handle, get func(context.Context, hasher.Handle) (*atom.Atom, error)) (*atom.Deep, error) {
	a, err := get(ctx, h)
	if err != nil {
		return nil, err
	}
	d := &atom.Deep{
		Handle:     a.Handle,
		Type:       a.Type,
		Name:       a.Name,
		Toplevel:   a.Toplevel,
		Attributes: a.Attributes,
	}
	if a.IsLink() {
		d.Targets = make([]*atom.Deep, len(a.Targets))
		for i, t := range a.Targets {
			if d.Targets[i], err = ExpandDeep(ctx, t, get); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// CheckPattern validates a link pattern before an index lookup.
func CheckPattern(linkType string, targets []hasher.Handle) error {
	if linkType == "" {
		return errors.NewMalformedPatternError("link pattern without type")
	}
	if len(targets) == 0 {
		return errors.NewMalformedPatternError("link pattern %s has no targets", linkType)
	}
	return checkArity(linkType, len(targets))
}
