// Package atom defines the hypergraph data model: nodes, links, their
// recursive composite types, and the deep representation of a link with
// its targets expanded.
package atom

import (
	"maps"
	"slices"

	"github.com/teranos/atomdb/hasher"
)

// Kind distinguishes nodes from links.
type Kind string

const (
	KindNode Kind = "node"
	KindLink Kind = "link"
)

// Atom is the unit of storage. Nodes carry a name; links carry an ordered
// list of target handles and the composite type tree of those targets.
type Atom struct {
	Handle            hasher.Handle   `json:"handle"`
	Kind              Kind            `json:"kind"`
	Type              string          `json:"type"`
	TypeHash          hasher.Handle   `json:"type_hash"`
	Name              string          `json:"name,omitempty"`
	Targets           []hasher.Handle `json:"targets,omitempty"`
	CompositeType     *CompositeType  `json:"composite_type,omitempty"`
	CompositeTypeHash hasher.Handle   `json:"composite_type_hash,omitempty"`
	Toplevel          bool            `json:"toplevel,omitempty"`
	Attributes        map[string]any  `json:"attributes,omitempty"`
}

// IsNode reports whether a is a node.
func (a *Atom) IsNode() bool { return a.Kind == KindNode }

// IsLink reports whether a is a link.
func (a *Atom) IsLink() bool { return a.Kind == KindLink }

// Arity is the number of targets (0 for nodes).
func (a *Atom) Arity() int { return len(a.Targets) }

// TypeTree returns the composite type of a, a leaf for nodes.
func (a *Atom) TypeTree() *CompositeType {
	if a.IsNode() || a.CompositeType == nil {
		return &CompositeType{Type: a.Type}
	}
	return a.CompositeType
}

// Clone returns a copy that shares no slices or maps with a.
func (a *Atom) Clone() *Atom {
	if a == nil {
		return nil
	}
	c := *a
	c.Targets = slices.Clone(a.Targets)
	c.Attributes = maps.Clone(a.Attributes)
	c.CompositeType = a.CompositeType.Clone()
	return &c
}

// NewNode builds a node atom. Attributes are copied.
func NewNode(nodeType, name string, attributes map[string]any) *Atom {
	return &Atom{
		Handle:     hasher.TerminalHash(nodeType, name),
		Kind:       KindNode,
		Type:       nodeType,
		TypeHash:   hasher.NamedTypeHash(nodeType),
		Name:       name,
		Toplevel:   true,
		Attributes: maps.Clone(attributes),
	}
}

// NewLink builds a link atom over already-resolved targets. For unordered
// link types the targets (and their composite types) are sorted by handle
// before hashing, so every permutation yields the same atom.
func NewLink(schema Schema, linkType string, targets []*Atom, toplevel bool, attributes map[string]any) *Atom {
	ordered := slices.Clone(targets)
	if schema.IsUnordered(linkType) {
		slices.SortFunc(ordered, func(x, y *Atom) int {
			return compareHandles(x.Handle, y.Handle)
		})
	}

	handles := make([]hasher.Handle, len(ordered))
	ct := &CompositeType{Type: linkType, Targets: make([]*CompositeType, len(ordered))}
	for i, t := range ordered {
		handles[i] = t.Handle
		ct.Targets[i] = t.TypeTree()
	}

	typeHash := hasher.NamedTypeHash(linkType)
	return &Atom{
		Handle:            hasher.ExpressionHash(typeHash, handles),
		Kind:              KindLink,
		Type:              linkType,
		TypeHash:          typeHash,
		Targets:           handles,
		CompositeType:     ct,
		CompositeTypeHash: schema.CompositeTypeHash(ct),
		Toplevel:          toplevel,
		Attributes:        maps.Clone(attributes),
	}
}

// Deep is an atom with link targets recursively expanded to full bodies.
type Deep struct {
	Handle     hasher.Handle  `json:"handle"`
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	Targets    []*Deep        `json:"targets,omitempty"`
	Toplevel   bool           `json:"toplevel,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// IsNode reports whether d represents a node.
func (d *Deep) IsNode() bool { return d.Targets == nil }

func compareHandles(a, b hasher.Handle) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
