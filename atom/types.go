package atom

import (
	"slices"
	"strings"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
)

// CompositeType is the recursive type tree of an atom. A node is a leaf
// holding only its type; a link holds its type and one child per target,
// positionally aligned with the link's targets.
type CompositeType struct {
	Type    string           `json:"type"`
	Targets []*CompositeType `json:"targets,omitempty"`
}

// IsLeaf reports whether c describes a node.
func (c *CompositeType) IsLeaf() bool { return len(c.Targets) == 0 }

// Clone deep-copies c.
func (c *CompositeType) Clone() *CompositeType {
	if c == nil {
		return nil
	}
	out := &CompositeType{Type: c.Type}
	if c.Targets != nil {
		out.Targets = make([]*CompositeType, len(c.Targets))
		for i, t := range c.Targets {
			out.Targets[i] = t.Clone()
		}
	}
	return out
}

func (c *CompositeType) String() string {
	if c.IsLeaf() {
		return c.Type
	}
	parts := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		parts[i] = t.String()
	}
	return c.Type + "(" + strings.Join(parts, ", ") + ")"
}

// TypeTemplate describes a link shape. A Type of "*" matches any type; a
// childless "*" matches any subtree, node or link.
type TypeTemplate struct {
	Type    string          `json:"type"`
	Targets []*TypeTemplate `json:"targets,omitempty"`
}

// AnyType is the template wildcard.
const AnyType = "*"

// Template builds a TypeTemplate; it reads naturally in tests and callers:
//
//	atom.Template("Inheritance", atom.Template("Concept"), atom.Template("*"))
func Template(t string, targets ...*TypeTemplate) *TypeTemplate {
	return &TypeTemplate{Type: t, Targets: targets}
}

// HasWildcard reports whether any position of the template is "*".
func (t *TypeTemplate) HasWildcard() bool {
	if t.Type == AnyType {
		return true
	}
	for _, c := range t.Targets {
		if c.HasWildcard() {
			return true
		}
	}
	return false
}

// Validate rejects templates that are not link shapes.
func (t *TypeTemplate) Validate() error {
	if t == nil {
		return errors.NewMalformedPatternError("nil type template")
	}
	if len(t.Targets) == 0 {
		return errors.NewMalformedPatternError("type template %q has no targets", t.Type)
	}
	var check func(*TypeTemplate) error
	check = func(n *TypeTemplate) error {
		if n == nil || n.Type == "" {
			return errors.NewMalformedPatternError("type template has an empty position")
		}
		for _, c := range n.Targets {
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(t)
}

func (t *TypeTemplate) String() string {
	if len(t.Targets) == 0 {
		return t.Type
	}
	parts := make([]string, len(t.Targets))
	for i, c := range t.Targets {
		parts[i] = c.String()
	}
	return t.Type + "(" + strings.Join(parts, ", ") + ")"
}

// Schema carries the closed set of unordered link types.
type Schema struct {
	unordered map[string]struct{}
}

// DefaultUnorderedTypes is the unordered set used by DefaultSchema.
var DefaultUnorderedTypes = []string{"Set"}

// NewSchema returns a schema treating the given link types as unordered.
func NewSchema(unordered ...string) Schema {
	s := Schema{unordered: make(map[string]struct{}, len(unordered))}
	for _, t := range unordered {
		s.unordered[t] = struct{}{}
	}
	return s
}

// DefaultSchema treats only "Set" as unordered.
func DefaultSchema() Schema {
	return NewSchema(DefaultUnorderedTypes...)
}

// IsUnordered reports whether links of linkType ignore target order.
func (s Schema) IsUnordered(linkType string) bool {
	_, ok := s.unordered[linkType]
	return ok
}

// UnorderedTypes returns the unordered set, sorted.
func (s Schema) UnorderedTypes() []string {
	out := make([]string, 0, len(s.unordered))
	for t := range s.unordered {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// LinkHandle computes the handle a link of linkType over targets would have.
func (s Schema) LinkHandle(linkType string, targets []hasher.Handle) hasher.Handle {
	return hasher.ExpressionHash(hasher.NamedTypeHash(linkType), s.Canonical(linkType, targets))
}

// Canonical returns targets in stored order: sorted for unordered types,
// unchanged otherwise. The input is never modified.
func (s Schema) Canonical(linkType string, targets []hasher.Handle) []hasher.Handle {
	if !s.IsUnordered(linkType) {
		return targets
	}
	sorted := slices.Clone(targets)
	slices.Sort(sorted)
	return sorted
}

// CompositeTypeHash hashes a composite type tree. Children of unordered
// link types contribute in sorted order so the hash is permutation-free.
func (s Schema) CompositeTypeHash(c *CompositeType) hasher.Handle {
	if c.IsLeaf() {
		return hasher.NamedTypeHash(c.Type)
	}
	children := make([]hasher.Handle, len(c.Targets))
	for i, t := range c.Targets {
		children[i] = s.CompositeTypeHash(t)
	}
	return s.typeSeqHash(c.Type, children)
}

// TemplateHash hashes a wildcard-free template the same way
// CompositeTypeHash hashes the matching composite type.
func (s Schema) TemplateHash(t *TypeTemplate) (hasher.Handle, error) {
	if t.HasWildcard() {
		return "", errors.NewMalformedPatternError("template %s contains wildcards", t)
	}
	return s.templateHash(t), nil
}

func (s Schema) templateHash(t *TypeTemplate) hasher.Handle {
	if len(t.Targets) == 0 {
		return hasher.NamedTypeHash(t.Type)
	}
	children := make([]hasher.Handle, len(t.Targets))
	for i, c := range t.Targets {
		children[i] = s.templateHash(c)
	}
	return s.typeSeqHash(t.Type, children)
}

func (s Schema) typeSeqHash(linkType string, children []hasher.Handle) hasher.Handle {
	if s.IsUnordered(linkType) {
		children = slices.Clone(children)
		slices.Sort(children)
	}
	return hasher.CompositeHash(append([]hasher.Handle{hasher.NamedTypeHash(linkType)}, children...))
}

// MatchTemplate reports whether c has the shape described by t. Targets
// of unordered link types may match in any order.
func (s Schema) MatchTemplate(t *TypeTemplate, c *CompositeType) bool {
	if t.Type == AnyType && len(t.Targets) == 0 {
		return true
	}
	if t.Type != AnyType && t.Type != c.Type {
		return false
	}
	if len(t.Targets) != len(c.Targets) {
		return false
	}
	if !s.IsUnordered(c.Type) {
		for i := range t.Targets {
			if !s.MatchTemplate(t.Targets[i], c.Targets[i]) {
				return false
			}
		}
		return true
	}
	used := make([]bool, len(c.Targets))
	return s.matchUnordered(t.Targets, c.Targets, used, 0)
}

func (s Schema) matchUnordered(tmpl []*TypeTemplate, children []*CompositeType, used []bool, i int) bool {
	if i == len(tmpl) {
		return true
	}
	for j, c := range children {
		if used[j] || !s.MatchTemplate(tmpl[i], c) {
			continue
		}
		used[j] = true
		if s.matchUnordered(tmpl, children, used, i+1) {
			return true
		}
		used[j] = false
	}
	return false
}
