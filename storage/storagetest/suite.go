// Package storagetest runs the storage.Backend contract against any
// implementation. Each backend's tests call Run with a constructor that
// returns an empty backend.
package storagetest

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/storage"
)

// Factory returns a fresh, empty backend using atom.DefaultSchema.
type Factory func(t *testing.T) storage.Backend

// Run exercises the full backend contract.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, storage.Backend)
	}{
		{"AddNodeIdempotent", testAddNodeIdempotent},
		{"AddLinkIdempotent", testAddLinkIdempotent},
		{"HandleLookups", testHandleLookups},
		{"PatternCompleteness", testPatternCompleteness},
		{"UnorderedSymmetry", testUnorderedSymmetry},
		{"TypeWildcardMixedOrder", testTypeWildcardMixedOrder},
		{"ToplevelPromotion", testToplevelPromotion},
		{"TypeTemplates", testTypeTemplates},
		{"MatchedType", testMatchedType},
		{"AtomAndDeep", testAtomAndDeep},
		{"IncomingLinksPaging", testIncomingLinksPaging},
		{"FieldIndex", testFieldIndex},
		{"MalformedInput", testMalformedInput},
		{"AnimalBase", testAnimalBase},
		{"ClearDatabase", testClearDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func concept(name string) storage.Params { return storage.Node("Concept", name) }

func handles(ms []storage.Match) []hasher.Handle {
	out := make([]hasher.Handle, len(ms))
	for i, m := range ms {
		out[i] = m.Handle
	}
	slices.Sort(out)
	return out
}

func testAddNodeIdempotent(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	first, err := b.AddNode(ctx, concept("human"))
	require.NoError(t, err)
	second, err := b.AddNode(ctx, concept("human"))
	require.NoError(t, err)

	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, hasher.TerminalHash("Concept", "human"), first.Handle)

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: 1, Links: 0}, counts)
}

func testAddLinkIdempotent(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	p := storage.Link("Similarity", concept("human"), concept("monkey"))

	first, err := b.AddLink(ctx, p)
	require.NoError(t, err)
	second, err := b.AddLink(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, first.Handle, second.Handle)
	assert.True(t, first.Toplevel)

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: 2, Links: 1}, counts)
}

func testHandleLookups(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	link, err := b.AddLink(ctx, storage.Link("Inheritance", concept("human"), concept("mammal")))
	require.NoError(t, err)

	h, err := b.GetNodeHandle(ctx, "Concept", "human")
	require.NoError(t, err)
	assert.Equal(t, link.Targets[0], h)

	lh, err := b.GetLinkHandle(ctx, "Inheritance", link.Targets)
	require.NoError(t, err)
	assert.Equal(t, link.Handle, lh)

	_, err = b.GetNodeHandle(ctx, "Concept", "unicorn")
	assert.True(t, errors.IsNotFoundError(err), "got %v", err)

	_, err = b.GetLinkHandle(ctx, "Inheritance", []hasher.Handle{link.Targets[1], link.Targets[0]})
	assert.True(t, errors.IsNotFoundError(err), "got %v", err)

	_, err = b.GetAtom(ctx, hasher.TerminalHash("Concept", "unicorn"))
	assert.True(t, errors.IsNotFoundError(err), "got %v", err)
}

func testPatternCompleteness(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	link, err := b.AddLink(ctx, storage.Link("Evaluation", concept("a"), concept("b"), concept("c")))
	require.NoError(t, err)
	// a decoy sharing some targets
	_, err = b.AddLink(ctx, storage.Link("Evaluation", concept("a"), concept("x"), concept("c")))
	require.NoError(t, err)

	n := len(link.Targets)
	for mask := 0; mask < 1<<(n+1)-1; mask++ {
		linkType := string(hasher.Wildcard)
		if mask&1 != 0 {
			linkType = link.Type
		}
		sel := make([]hasher.Handle, n)
		for i := range sel {
			sel[i] = hasher.Wildcard
			if mask&(1<<(i+1)) != 0 {
				sel[i] = link.Targets[i]
			}
		}
		matches, err := b.GetMatchedLinks(ctx, linkType, sel, storage.MatchOptions{})
		require.NoError(t, err)
		assert.Contains(t, handles(matches), link.Handle, "mask %b", mask)
	}

	// fully specified resolves by handle
	matches, err := b.GetMatchedLinks(ctx, link.Type, link.Targets, storage.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, link.Handle, matches[0].Handle)
	assert.Equal(t, link.Targets, matches[0].Targets)

	// middle target pins it down
	matches, err = b.GetMatchedLinks(ctx, "*", []hasher.Handle{"*", link.Targets[1], "*"}, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{link.Handle}, handles(matches))

	// no match is empty, not an error
	matches, err = b.GetMatchedLinks(ctx, "Evaluation", []hasher.Handle{"*", "*"}, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func testUnorderedSymmetry(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	link, err := b.AddLink(ctx, storage.Link("Set", concept("a"), concept("b")))
	require.NoError(t, err)
	a, bb := hasher.TerminalHash("Concept", "a"), hasher.TerminalHash("Concept", "b")

	h, err := b.GetLinkHandle(ctx, "Set", []hasher.Handle{bb, a})
	require.NoError(t, err)
	assert.Equal(t, link.Handle, h)

	for _, sel := range [][]hasher.Handle{
		{bb, a}, {a, bb}, {a, "*"}, {"*", a}, {bb, "*"}, {"*", bb},
	} {
		for _, lt := range []string{"Set", "*"} {
			matches, err := b.GetMatchedLinks(ctx, lt, sel, storage.MatchOptions{})
			require.NoError(t, err)
			assert.Equal(t, []hasher.Handle{link.Handle}, handles(matches), "%s %v", lt, sel)
		}
	}
}

func testTypeWildcardMixedOrder(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	set, err := b.AddLink(ctx, storage.Link("Set", concept("a"), concept("b")))
	require.NoError(t, err)
	ordered, err := b.AddLink(ctx, storage.Link("Inheritance", concept("a"), concept("b")))
	require.NoError(t, err)
	reversed, err := b.AddLink(ctx, storage.Link("Inheritance", concept("b"), concept("a")))
	require.NoError(t, err)

	a := hasher.TerminalHash("Concept", "a")
	matches, err := b.GetMatchedLinks(ctx, "*", []hasher.Handle{a, "*"}, storage.MatchOptions{})
	require.NoError(t, err)

	want := []hasher.Handle{set.Handle, ordered.Handle}
	slices.Sort(want)
	assert.Equal(t, want, handles(matches))
	assert.NotContains(t, handles(matches), reversed.Handle)
}

func testToplevelPromotion(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	inner := storage.Link("Similarity", concept("human"), concept("monkey"))
	outer, err := b.AddLink(ctx, storage.Link("Evaluation", storage.Node("Predicate", "close"), inner))
	require.NoError(t, err)

	innerAtom, err := b.GetAtom(ctx, outer.Targets[1])
	require.NoError(t, err)
	assert.False(t, innerAtom.Toplevel)

	human := hasher.TerminalHash("Concept", "human")
	sel := []hasher.Handle{human, "*"}

	all, err := b.GetMatchedLinks(ctx, "Similarity", sel, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	top, err := b.GetMatchedLinks(ctx, "Similarity", sel, storage.MatchOptions{ToplevelOnly: true})
	require.NoError(t, err)
	assert.Empty(t, top)

	promoted, err := b.AddLink(ctx, inner)
	require.NoError(t, err)
	assert.Equal(t, innerAtom.Handle, promoted.Handle)
	assert.True(t, promoted.Toplevel)

	top, err = b.GetMatchedLinks(ctx, "Similarity", sel, storage.MatchOptions{ToplevelOnly: true})
	require.NoError(t, err)
	assert.Len(t, top, 1)

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: 3, Links: 2}, counts)
}

func testTypeTemplates(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	nested, err := b.AddLink(ctx, storage.Link("Evaluation",
		storage.Node("Predicate", "likes"),
		storage.Link("List", concept("human"), concept("monkey"))))
	require.NoError(t, err)
	flat, err := b.AddLink(ctx, storage.Link("Evaluation", storage.Node("Predicate", "likes"), concept("human")))
	require.NoError(t, err)

	exact := atom.Template("Evaluation", atom.Template("Predicate"),
		atom.Template("List", atom.Template("Concept"), atom.Template("Concept")))
	matches, err := b.GetMatchedTypeTemplate(ctx, exact, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{nested.Handle}, handles(matches))

	leaf := atom.Template("Evaluation", atom.Template("Predicate"), atom.Template("Concept"))
	matches, err = b.GetMatchedTypeTemplate(ctx, leaf, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{flat.Handle}, handles(matches))

	wild := atom.Template("Evaluation", atom.Template("Predicate"), atom.Template("*"))
	matches, err = b.GetMatchedTypeTemplate(ctx, wild, storage.MatchOptions{})
	require.NoError(t, err)
	want := []hasher.Handle{nested.Handle, flat.Handle}
	slices.Sort(want)
	assert.Equal(t, want, handles(matches))

	_, err = b.GetMatchedTypeTemplate(ctx, atom.Template("*", atom.Template("Predicate")), storage.MatchOptions{})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern), "got %v", err)
}

func testMatchedType(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	testutil.LoadAnimals(t, b)

	inh, err := b.GetMatchedType(ctx, "Inheritance", storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, inh, len(testutil.AnimalInheritance))

	none, err := b.GetMatchedType(ctx, "Member", storage.MatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testAtomAndDeep(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	attrs := map[string]any{"strength": 0.8}
	outer, err := b.AddLink(ctx, storage.Params{
		Type:       "Evaluation",
		Targets:    []storage.Params{storage.Node("Predicate", "likes"), storage.Link("List", concept("human"), concept("monkey"))},
		Attributes: attrs,
	})
	require.NoError(t, err)

	got, err := b.GetAtom(ctx, outer.Handle)
	require.NoError(t, err)
	assert.Equal(t, outer.Targets, got.Targets)
	assert.Equal(t, "Evaluation", got.Type)
	assert.Equal(t, outer.CompositeTypeHash, got.CompositeTypeHash)
	assert.Equal(t, "Evaluation(Predicate, List(Concept, Concept))", got.CompositeType.String())
	assert.InDelta(t, 0.8, got.Attributes["strength"], 1e-9)

	deep, err := b.GetAtomDeep(ctx, outer.Handle)
	require.NoError(t, err)
	require.Len(t, deep.Targets, 2)
	assert.Equal(t, "likes", deep.Targets[0].Name)
	require.Len(t, deep.Targets[1].Targets, 2)
	assert.Equal(t, "human", deep.Targets[1].Targets[0].Name)
	assert.Equal(t, "monkey", deep.Targets[1].Targets[1].Name)
}

func testIncomingLinksPaging(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	testutil.LoadAnimals(t, b)
	human := testutil.Concept("human")

	all, err := b.GetIncomingLinks(ctx, human, storage.PageRequest{})
	require.NoError(t, err)
	assert.True(t, all.Done())
	// 1 Inheritance + 6 Similarity (3 pairs, both directions)
	assert.Len(t, all.Items, 7)

	var paged []hasher.Handle
	req := storage.PageRequest{ChunkSize: 2}
	for i := 0; i < 100; i++ {
		page, err := b.GetIncomingLinks(ctx, human, req)
		require.NoError(t, err)
		paged = append(paged, page.Items...)
		if page.Done() {
			break
		}
		req.Cursor = page.Cursor
	}
	slices.Sort(paged)
	paged = slices.Compact(paged)
	want := slices.Clone(all.Items)
	slices.Sort(want)
	assert.Equal(t, want, paged)

	empty, err := b.GetIncomingLinks(ctx, testutil.Concept("unicorn"), storage.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.True(t, empty.Done())
}

func testFieldIndex(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	for _, p := range []storage.Params{
		{Type: "Concept", Name: "human", Attributes: map[string]any{"legs": 2, "habitat": "land"}},
		{Type: "Concept", Name: "snake", Attributes: map[string]any{"legs": 0, "habitat": "land"}},
		{Type: "Concept", Name: "whale", Attributes: map[string]any{"legs": 0, "habitat": "sea"}},
		{Type: "Species", Name: "bird", Attributes: map[string]any{"legs": 2}},
		{Type: "Concept", Name: "ghost", Attributes: map[string]any{"legs": nil}},
		{Type: "Concept", Name: "cloud"},
	} {
		_, err := b.AddNode(ctx, p)
		require.NoError(t, err)
	}

	id, err := b.CreateFieldIndex(ctx, "Concept", "legs")
	require.NoError(t, err)
	assert.Equal(t, storage.FieldIndexID("Concept", "legs"), id)

	again, err := b.CreateFieldIndex(ctx, "Concept", "legs")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := b.GetAtomsByIndex(ctx, id, []storage.Condition{{Field: "legs", Value: 0}})
	require.NoError(t, err)
	want := []hasher.Handle{testutil.Concept("snake"), testutil.Concept("whale")}
	slices.Sort(want)
	assert.Equal(t, want, got)

	got, err = b.GetAtomsByIndex(ctx, id, []storage.Condition{{Field: "legs", Value: 0}, {Field: "habitat", Value: "sea"}})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{testutil.Concept("whale")}, got)

	got, err = b.GetAtomsByIndex(ctx, id, []storage.Condition{{Field: "legs", Value: 2}})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{testutil.Concept("human")}, got, "other atom types are excluded")

	got, err = b.GetAtomsByIndex(ctx, id, []storage.Condition{{Field: "legs", Value: nil}})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{testutil.Concept("ghost")}, got, "only an explicit null matches nil, not a missing field")

	_, err = b.GetAtomsByIndex(ctx, storage.FieldIndexID("Concept", "wings"), []storage.Condition{{Field: "wings", Value: 2}})
	assert.True(t, errors.IsNotFoundError(err), "got %v", err)
}

func testMalformedInput(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	_, err := b.AddLink(ctx, storage.Params{Type: "Inheritance"})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern), "got %v", err)

	_, err = b.AddNode(ctx, storage.Link("Inheritance", concept("a")))
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern), "got %v", err)

	_, err = b.GetMatchedLinks(ctx, "Inheritance", nil, storage.MatchOptions{})
	assert.True(t, errors.Is(err, errors.ErrMalformedPattern), "got %v", err)

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total())
}

func testAnimalBase(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	testutil.LoadAnimals(t, b)
	testutil.LoadAnimals(t, b)

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: testutil.AnimalNodeCount, Links: testutil.AnimalLinkCount}, counts)

	matches, err := b.GetMatchedLinks(ctx, "Similarity", []hasher.Handle{testutil.Concept("human"), "*"}, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = b.GetMatchedLinks(ctx, "Inheritance", []hasher.Handle{"*", testutil.Concept("mammal")}, storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, matches, 4)
}

func testClearDatabase(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	testutil.LoadAnimals(t, b)
	_, err := b.CreateFieldIndex(ctx, "Concept", "legs")
	require.NoError(t, err)

	require.NoError(t, b.ClearDatabase(ctx))

	counts, err := b.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total())

	matches, err := b.GetMatchedType(ctx, "Inheritance", storage.MatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = b.GetNodeHandle(ctx, "Concept", "human")
	assert.True(t, errors.IsNotFoundError(err))
}
