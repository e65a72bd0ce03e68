package iterator

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/assign"
	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/memory"
)

// counting wraps a source and counts pulls.
type counting[T any] struct {
	Iterator[T]
	pulls int
}

func (c *counting[T]) Next() bool {
	c.pulls++
	return c.Iterator.Next()
}

func TestList(t *testing.T) {
	l := FromSlice([]int{1, 2})
	assert.False(t, l.IsEmpty())
	_, err := l.Get()
	assert.True(t, errors.Is(err, errors.ErrNotStarted))

	require.True(t, l.Next())
	assert.False(t, l.IsEmpty())
	require.True(t, l.Next())
	v, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, l.IsEmpty())

	assert.False(t, l.Next())
	assert.False(t, l.Next())
	_, err = l.Get()
	assert.True(t, errors.Is(err, errors.ErrExhausted))

	assert.True(t, Empty[int]().IsEmpty())
}

func TestProductOrder(t *testing.T) {
	p := NewProduct[int](FromSlice([]int{1, 2}), FromSlice([]int{10, 20, 30}))
	got, err := Collect[[]int](p)
	require.NoError(t, err)
	assert.Equal(t, [][]int{
		{1, 10}, {1, 20}, {1, 30},
		{2, 10}, {2, 20}, {2, 30},
	}, got)
}

func TestProductEmpty(t *testing.T) {
	p := NewProduct[int](FromSlice([]int{1, 2}), Empty[int]())
	assert.True(t, p.IsEmpty())
	assert.False(t, p.Next())

	assert.True(t, NewProduct[int]().IsEmpty())
}

func TestProductPullsEachSourceOnce(t *testing.T) {
	inner := &counting[int]{Iterator: FromSlice([]int{1, 2, 3})}
	p := NewProduct[int](FromSlice([]int{1, 2, 3, 4}), inner)

	got, err := Collect[[]int](p)
	require.NoError(t, err)
	assert.Len(t, got, 12)
	assert.Equal(t, 4, inner.pulls, "three elements plus the pull that found the end")
}

func TestProductIsEmptyOnLastCombination(t *testing.T) {
	p := NewProduct[int](FromSlice([]int{1}), FromSlice([]int{1, 2}))
	require.True(t, p.Next())
	assert.False(t, p.IsEmpty())
	require.True(t, p.Next())
	assert.True(t, p.IsEmpty())
	assert.False(t, p.Next())
}

func answer(t *testing.T, name string, pairs map[string]hasher.Handle) Answer {
	t.Helper()
	a, err := assign.Of(pairs)
	require.NoError(t, err)
	return Answer{Subgraph: Subgraph{Atom: &atom.Deep{Handle: hasher.Handle(name), Type: "Concept", Name: name}}, Assignment: a}
}

func TestAndJoinsCompatibleCombinations(t *testing.T) {
	left := FromSlice([]Answer{
		answer(t, "a", map[string]hasher.Handle{"V": "x"}),
		answer(t, "b", map[string]hasher.Handle{"V": "y"}),
	})
	right := FromSlice([]Answer{
		answer(t, "c", map[string]hasher.Handle{"V": "x", "W": "1"}),
		answer(t, "d", map[string]hasher.Handle{"V": "y", "W": "2"}),
		answer(t, "e", map[string]hasher.Handle{"V": "x", "W": "3"}),
	})

	got, err := Collect[Answer](NewAnd(left, right))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, ans := range got {
		require.Len(t, ans.Subgraph.Parts, 2)
		v, _ := ans.Assignment.Get("V")
		if v == "x" {
			assert.Equal(t, hasher.Handle("a"), ans.Subgraph.Parts[0].Atom.Handle)
		} else {
			assert.Equal(t, hasher.Handle("b"), ans.Subgraph.Parts[0].Atom.Handle)
		}
	}
}

func TestAndNoCompatibleCombination(t *testing.T) {
	a := NewAnd(
		FromSlice([]Answer{answer(t, "a", map[string]hasher.Handle{"V": "x"})}),
		FromSlice([]Answer{answer(t, "b", map[string]hasher.Handle{"V": "y"})}),
	)
	assert.False(t, a.Next())
	_, err := a.Get()
	assert.True(t, errors.Is(err, errors.ErrExhausted))
}

func TestOr(t *testing.T) {
	o := NewOr(
		FromSlice([]Answer{answer(t, "a", nil)}),
		Empty[Answer](),
		FromSlice([]Answer{answer(t, "b", nil), answer(t, "c", nil)}),
	)
	assert.False(t, o.IsEmpty())
	got, err := Collect[Answer](o)
	require.NoError(t, err)
	var names []string
	for _, a := range got {
		names = append(names, a.Subgraph.Atom.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func nodeSource(t *testing.T, b storage.Backend, name string) Iterator[Answer] {
	t.Helper()
	d, err := b.GetAtomDeep(context.Background(), testutil.Concept(name))
	require.NoError(t, err)
	return FromSlice([]Answer{{Subgraph: Subgraph{Atom: d}, Assignment: assign.Empty()}})
}

func bound(answers []Answer, label string) []hasher.Handle {
	var out []hasher.Handle
	for _, a := range answers {
		v, _ := a.Assignment.Get(label)
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func TestLazyQueryBindsVariables(t *testing.T) {
	b := memory.New()
	testutil.LoadAnimals(t, b)
	ctx := context.Background()

	for _, chunk := range []int{0, 1} {
		q, err := NewLazyQuery(ctx, b, "Inheritance", []Position{Var("V"), Sub(nodeSource(t, b, "mammal"))}, LazyOptions{ChunkSize: chunk})
		require.NoError(t, err)
		got, err := Collect[Answer](q)
		require.NoError(t, err)

		want := []hasher.Handle{
			testutil.Concept("human"), testutil.Concept("monkey"),
			testutil.Concept("chimp"), testutil.Concept("rhino"),
		}
		slices.Sort(want)
		assert.Equal(t, want, bound(got, "V"), "chunk %d", chunk)
		for _, a := range got {
			assert.Equal(t, "Inheritance", a.Subgraph.Atom.Type)
			require.Len(t, a.Subgraph.Atom.Targets, 2)
			assert.Equal(t, "mammal", a.Subgraph.Atom.Targets[1].Name)
		}
	}
}

func TestLazyQueryMissingLink(t *testing.T) {
	b := memory.New()
	testutil.LoadAnimals(t, b)

	q, err := NewLazyQuery(context.Background(), b, "Inheritance",
		[]Position{Sub(nodeSource(t, b, "mammal")), Sub(nodeSource(t, b, "human"))}, LazyOptions{})
	require.NoError(t, err)
	got, err := Collect[Answer](q)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLazyQueryUnorderedPermutations(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	set, err := b.AddLink(ctx, storage.Link("Set", storage.Node("Concept", "a"), storage.Node("Concept", "b"), storage.Node("Concept", "c")))
	require.NoError(t, err)

	q, err := NewLazyQuery(ctx, b, "Set", []Position{Var("X"), Sub(nodeSource(t, b, "b")), Var("Y")}, LazyOptions{})
	require.NoError(t, err)
	got, err := Collect[Answer](q)
	require.NoError(t, err)
	require.Len(t, got, 2, "X and Y take a and c in both orders")
	for _, a := range got {
		assert.Equal(t, set.Handle, a.Subgraph.Atom.Handle)
		x, _ := a.Assignment.Get("X")
		y, _ := a.Assignment.Get("Y")
		assert.ElementsMatch(t, []hasher.Handle{testutil.Concept("a"), testutil.Concept("c")}, []hasher.Handle{x, y})
	}

	q, err = NewLazyQuery(ctx, b, "Set", []Position{Var("X"), Var("X"), Var("Y")}, LazyOptions{})
	require.NoError(t, err)
	got, err = Collect[Answer](q)
	require.NoError(t, err)
	assert.Empty(t, got, "a repeated variable cannot bind two distinct targets")
}

func TestLazyQueryMalformed(t *testing.T) {
	b := memory.New()
	_, err := NewLazyQuery(context.Background(), b, "Inheritance", nil, LazyOptions{})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern))

	_, err = NewLazyQuery(context.Background(), b, "", []Position{Var("V")}, LazyOptions{})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern))

	_, err = NewLazyQuery(context.Background(), b, "Inheritance", []Position{{}}, LazyOptions{})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern))
}
