// Package storage defines the backend contract consumed by the query and
// iterator layers, plus the pieces every backend shares: parameter
// decomposition, deep expansion, paging and field-index conditions.
//
// Backends are selected at construction; nothing above this package
// branches on which one it was given.
package storage

import (
	"context"
	"slices"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/hasher"
)

// Match is one pattern or template index entry.
type Match struct {
	Handle  hasher.Handle   `json:"handle"`
	Type    string          `json:"type"`
	Targets []hasher.Handle `json:"targets"`
}

// MatchOf builds the index entry for a link. The entry owns its targets.
func MatchOf(link *atom.Atom) Match {
	return Match{Handle: link.Handle, Type: link.Type, Targets: slices.Clone(link.Targets)}
}

// Clone returns a copy of m that shares no memory with it.
func (m Match) Clone() Match {
	m.Targets = slices.Clone(m.Targets)
	return m
}

// MatchOptions restricts index lookups.
type MatchOptions struct {
	// ToplevelOnly drops links that were only ever created as nested targets.
	ToplevelOnly bool `json:"toplevel_only,omitempty"`
}

// PageRequest asks for one page. Cursor 0 starts from the beginning;
// ChunkSize 0 asks for everything in a single page.
type PageRequest struct {
	Cursor    uint64 `json:"cursor"`
	ChunkSize int    `json:"chunk_size"`
}

// Page is one page of results. A Cursor of 0 means there are no more pages.
type Page[T any] struct {
	Cursor uint64 `json:"cursor"`
	Items  []T    `json:"items"`
}

// Done reports whether p is the last page.
func (p Page[T]) Done() bool { return p.Cursor == 0 }

// Counts is the result of CountAtoms.
type Counts struct {
	Nodes int `json:"node_count"`
	Links int `json:"link_count"`
}

// Total returns nodes plus links.
func (c Counts) Total() int { return c.Nodes + c.Links }

// Params describes an atom to add. A node has Type and Name; a link has
// Type and Targets, which may themselves be nodes or links and are added
// implicitly. A Params with only Handle set refers to an existing atom.
type Params struct {
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Targets    []Params       `json:"targets,omitempty" yaml:"targets,omitempty"`
	Handle     hasher.Handle  `json:"handle,omitempty" yaml:"handle,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Node is shorthand for a node Params.
func Node(nodeType, name string) Params {
	return Params{Type: nodeType, Name: name}
}

// Link is shorthand for a link Params.
func Link(linkType string, targets ...Params) Params {
	return Params{Type: linkType, Targets: targets}
}

// Ref refers to an existing atom by handle.
func Ref(h hasher.Handle) Params {
	return Params{Handle: h}
}

// Condition is one equality constraint for GetAtomsByIndex.
type Condition struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// FieldIndex describes a registered custom index.
type FieldIndex struct {
	ID       hasher.Handle `json:"id"`
	AtomType string        `json:"atom_type"`
	Field    string        `json:"field"`
}

// Backend is the storage contract. Lookups of absent atoms return an
// error wrapping errors.ErrNotFound; empty match results are not errors.
type Backend interface {
	// Schema returns the unordered link type set the backend hashes with.
	Schema() atom.Schema

	GetNodeHandle(ctx context.Context, nodeType, name string) (hasher.Handle, error)
	GetLinkHandle(ctx context.Context, linkType string, targets []hasher.Handle) (hasher.Handle, error)

	// GetMatchedLinks resolves a link pattern whose type and targets may be
	// hasher.Wildcard through the pattern index.
	GetMatchedLinks(ctx context.Context, linkType string, targets []hasher.Handle, opts MatchOptions) ([]Match, error)
	// GetMatchedTypeTemplate resolves links by type shape.
	GetMatchedTypeTemplate(ctx context.Context, tmpl *atom.TypeTemplate, opts MatchOptions) ([]Match, error)
	// GetMatchedType returns every link of the given top-level type.
	GetMatchedType(ctx context.Context, linkType string, opts MatchOptions) ([]Match, error)

	GetAtom(ctx context.Context, h hasher.Handle) (*atom.Atom, error)
	GetAtomDeep(ctx context.Context, h hasher.Handle) (*atom.Deep, error)

	// GetIncomingLinks pages through the links that have h as a target.
	GetIncomingLinks(ctx context.Context, h hasher.Handle, req PageRequest) (Page[hasher.Handle], error)

	// AddNode and AddLink are idempotent and return the stored atom.
	AddNode(ctx context.Context, p Params) (*atom.Atom, error)
	AddLink(ctx context.Context, p Params) (*atom.Atom, error)

	CountAtoms(ctx context.Context) (Counts, error)
	ClearDatabase(ctx context.Context) error

	// CreateFieldIndex registers an equality index over Attributes[field]
	// for atoms of atomType and returns its id.
	CreateFieldIndex(ctx context.Context, atomType, field string) (hasher.Handle, error)
	GetAtomsByIndex(ctx context.Context, indexID hasher.Handle, conds []Condition) ([]hasher.Handle, error)

	Close() error
}

// Paginated is implemented by backends that page match and index results
// server side. Cursor iterators prefer it when available.
type Paginated interface {
	MatchedLinksPage(ctx context.Context, linkType string, targets []hasher.Handle, opts MatchOptions, req PageRequest) (Page[Match], error)
	AtomsByIndexPage(ctx context.Context, indexID hasher.Handle, conds []Condition, req PageRequest) (Page[hasher.Handle], error)
}

// FieldIndexID derives the id of the index over field for atomType.
func FieldIndexID(atomType, field string) hasher.Handle {
	return hasher.CompositeHash([]hasher.Handle{"index", hasher.Handle(atomType), hasher.Handle(field)})
}
