// Package index computes the keys of the wildcard pattern index and the
// type template index.
//
// A link of arity n is filed under one pattern key per selector vector
// over {type, target_1..target_n} in which at least one position is the
// wildcard, 2^(n+1)-1 keys in total. The fully specified vector is left
// out since it is the link's own handle. Unordered links sort their
// target selectors before hashing, so a lookup only has to sort its own
// selectors the same way.
package index

import (
	"slices"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/hasher"
)

// MaxArity is the largest link arity the pattern index files. A link of
// arity MaxArity already needs 2^(MaxArity+1)-1 keys.
const MaxArity = 12

// PatternKey hashes a selector vector: type selector first, then target
// selectors in the given order.
func PatternKey(typeSel hasher.Handle, targetSel []hasher.Handle) hasher.Handle {
	seq := make([]hasher.Handle, 0, len(targetSel)+1)
	seq = append(seq, typeSel)
	seq = append(seq, targetSel...)
	return hasher.CompositeHash(seq)
}

// PatternKeys returns the distinct pattern keys a link is filed under.
// Duplicates arise for unordered links whose targets repeat. Callers
// reject links above MaxArity before filing them.
func PatternKeys(schema atom.Schema, link *atom.Atom) []hasher.Handle {
	n := len(link.Targets)
	unordered := schema.IsUnordered(link.Type)
	full := uint64(1)<<(n+1) - 1

	seen := make(map[hasher.Handle]struct{}, full)
	keys := make([]hasher.Handle, 0, full)
	sel := make([]hasher.Handle, n)

	// bit 0 selects the type, bit i+1 selects target i
	for mask := uint64(0); mask < full; mask++ {
		typeSel := hasher.Wildcard
		if mask&1 != 0 {
			typeSel = link.TypeHash
		}
		for i, t := range link.Targets {
			if mask&(1<<(i+1)) != 0 {
				sel[i] = t
			} else {
				sel[i] = hasher.Wildcard
			}
		}
		targetSel := sel
		if unordered {
			targetSel = sortedSelectors(sel)
		}
		key := PatternKey(typeSel, targetSel)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Lookup is one bucket to read when answering a pattern query.
type Lookup struct {
	Key hasher.Handle
	// UnorderedOnly means entries of ordered link types found under Key
	// must be discarded: the key was built from sorted selectors.
	UnorderedOnly bool
}

// QueryLookups returns the buckets to read for a link pattern whose type
// and targets may be wildcards. A concrete type needs one bucket. A
// wildcard type reads the positional bucket and, if sorting changes the
// selectors, the sorted bucket restricted to unordered types.
func QueryLookups(schema atom.Schema, linkType string, targets []hasher.Handle) []Lookup {
	if linkType != string(hasher.Wildcard) {
		typeSel := hasher.NamedTypeHash(linkType)
		targetSel := targets
		if schema.IsUnordered(linkType) {
			targetSel = sortedSelectors(targets)
		}
		return []Lookup{{Key: PatternKey(typeSel, targetSel)}}
	}

	positional := PatternKey(hasher.Wildcard, targets)
	lookups := []Lookup{{Key: positional}}
	sorted := sortedSelectors(targets)
	if !slices.Equal(sorted, targets) {
		lookups = append(lookups, Lookup{Key: PatternKey(hasher.Wildcard, sorted), UnorderedOnly: true})
	}
	return lookups
}

// IsFullySpecified reports whether no position of the pattern is a wildcard.
func IsFullySpecified(linkType string, targets []hasher.Handle) bool {
	if linkType == string(hasher.Wildcard) {
		return false
	}
	return !slices.Contains(targets, hasher.Wildcard)
}

// TemplateKeys returns the template buckets a link is filed under: its
// top-level type and its full composite type.
func TemplateKeys(link *atom.Atom) []hasher.Handle {
	return []hasher.Handle{link.TypeHash, link.CompositeTypeHash}
}

// sortedSelectors sorts a copy of sel. The wildcard "*" sorts before
// every hex handle.
func sortedSelectors(sel []hasher.Handle) []hasher.Handle {
	out := slices.Clone(sel)
	slices.Sort(out)
	return out
}
