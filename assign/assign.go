// Package assign holds variable bindings produced while matching a query.
//
// A Builder collects bindings and refuses to rebind a variable to a
// different handle. Freeze turns it into an immutable Assignment, which is
// the only form that can be compared or used as a map key.
package assign

import (
	"slices"
	"strings"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
)

// Binding is one variable bound to a handle.
type Binding struct {
	Label string        `json:"label"`
	Value hasher.Handle `json:"value"`
}

// Builder accumulates bindings until Freeze.
type Builder struct {
	bindings map[string]hasher.Handle
	frozen   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{bindings: make(map[string]hasher.Handle)}
}

// Assign binds label to value. It returns false without changing anything
// when label is already bound to a different value. Empty labels or
// values, and any call after Freeze, fail with ErrInvalidAssignment.
func (b *Builder) Assign(label string, value hasher.Handle) (bool, error) {
	if b.frozen {
		return false, errors.NewInvalidAssignmentError("assign %q on a frozen assignment", label)
	}
	if label == "" || value == "" {
		return false, errors.NewInvalidAssignmentError("empty label or value (%q=%q)", label, value)
	}
	if prev, ok := b.bindings[label]; ok {
		return prev == value, nil
	}
	b.bindings[label] = value
	return true, nil
}

// Merge folds every binding of a into b. On the first conflicting binding
// it returns false and leaves b exactly as it was.
func (b *Builder) Merge(a *Assignment) (bool, error) {
	if b.frozen {
		return false, errors.NewInvalidAssignmentError("merge into a frozen assignment")
	}
	if a == nil {
		return true, nil
	}
	for _, kv := range a.bindings {
		if prev, ok := b.bindings[kv.Label]; ok && prev != kv.Value {
			return false, nil
		}
	}
	for _, kv := range a.bindings {
		b.bindings[kv.Label] = kv.Value
	}
	return true, nil
}

// Len returns the number of bindings so far.
func (b *Builder) Len() int { return len(b.bindings) }

// Freeze returns the immutable assignment. The builder rejects further
// mutation.
func (b *Builder) Freeze() *Assignment {
	b.frozen = true
	out := make([]Binding, 0, len(b.bindings))
	for label, value := range b.bindings {
		out = append(out, Binding{Label: label, Value: value})
	}
	slices.SortFunc(out, func(x, y Binding) int { return strings.Compare(x.Label, y.Label) })

	var key strings.Builder
	for i, kv := range out {
		if i > 0 {
			key.WriteByte(',')
		}
		key.WriteString(kv.Label)
		key.WriteByte('=')
		key.WriteString(string(kv.Value))
	}
	return &Assignment{bindings: out, key: key.String()}
}

// Assignment is a frozen, sorted binding set.
type Assignment struct {
	bindings []Binding
	key      string
}

var empty = &Assignment{}

// Empty returns the assignment with no bindings.
func Empty() *Assignment { return empty }

// Of builds a frozen assignment from label/value pairs, for tests and
// callers that already know the bindings are consistent.
func Of(pairs map[string]hasher.Handle) (*Assignment, error) {
	b := NewBuilder()
	for label, value := range pairs {
		if _, err := b.Assign(label, value); err != nil {
			return nil, err
		}
	}
	return b.Freeze(), nil
}

// Get returns the handle bound to label.
func (a *Assignment) Get(label string) (hasher.Handle, bool) {
	if a == nil {
		return "", false
	}
	i, ok := slices.BinarySearchFunc(a.bindings, label, func(kv Binding, l string) int {
		return strings.Compare(kv.Label, l)
	})
	if !ok {
		return "", false
	}
	return a.bindings[i].Value, true
}

// Len returns the number of bindings.
func (a *Assignment) Len() int {
	if a == nil {
		return 0
	}
	return len(a.bindings)
}

// Bindings returns the bindings sorted by label.
func (a *Assignment) Bindings() []Binding {
	if a == nil {
		return nil
	}
	return slices.Clone(a.bindings)
}

// Map returns the bindings as a fresh map.
func (a *Assignment) Map() map[string]hasher.Handle {
	out := make(map[string]hasher.Handle, a.Len())
	for _, kv := range a.Bindings() {
		out[kv.Label] = kv.Value
	}
	return out
}

// Key is a canonical encoding of the binding set, usable as a map key.
func (a *Assignment) Key() string {
	if a == nil {
		return ""
	}
	return a.key
}

// Equal reports whether both assignments hold the same bindings.
func (a *Assignment) Equal(other *Assignment) bool {
	return a.Key() == other.Key()
}

func (a *Assignment) String() string {
	return "{" + a.Key() + "}"
}

// Compose merges every assignment into a fresh one. It returns false if
// any two disagree on a shared label.
func Compose(list ...*Assignment) (*Assignment, bool) {
	b := NewBuilder()
	for _, a := range list {
		ok, err := b.Merge(a)
		if err != nil || !ok {
			return nil, false
		}
	}
	return b.Freeze(), true
}
