package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/hasher"
)

func concepts(names ...string) []*atom.Atom {
	out := make([]*atom.Atom, len(names))
	for i, n := range names {
		out[i] = atom.NewNode("Concept", n, nil)
	}
	return out
}

func TestPatternKeys_Count(t *testing.T) {
	s := atom.DefaultSchema()
	for n := 1; n <= 5; n++ {
		names := []string{"a", "b", "c", "d", "e"}[:n]
		link := atom.NewLink(s, "List", concepts(names...), true, nil)

		keys := PatternKeys(s, link)
		assert.Len(t, keys, 1<<(n+1)-1, "arity %d", n)
	}
}

// Every non-trivial wildcard combination of a link retrieves it.
func TestPatternKeys_Completeness(t *testing.T) {
	s := atom.DefaultSchema()
	targets := concepts("human", "monkey", "chimp")
	link := atom.NewLink(s, "Evaluation", targets, true, nil)

	keys := map[hasher.Handle]bool{}
	for _, k := range PatternKeys(s, link) {
		keys[k] = true
	}

	n := len(link.Targets)
	for mask := 0; mask < 1<<(n+1)-1; mask++ {
		linkType := "*"
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
		lookups := QueryLookups(s, linkType, sel)
		require.NotEmpty(t, lookups)
		assert.True(t, keys[lookups[0].Key], "mask %b", mask)
	}
}

func TestPatternKeys_UnorderedDedup(t *testing.T) {
	s := atom.DefaultSchema()
	a := concepts("a")[0]
	link := atom.NewLink(s, "Set", []*atom.Atom{a, a}, true, nil)

	// {*,*}, {a,*} (twice collapses), {a,a} for both type selectors minus the full one
	keys := PatternKeys(s, link)
	assert.Len(t, keys, 5)
}

func TestQueryLookups_UnorderedSymmetry(t *testing.T) {
	s := atom.DefaultSchema()
	ab := concepts("a", "b")
	link := atom.NewLink(s, "Set", ab, true, nil)
	keys := map[hasher.Handle]bool{}
	for _, k := range PatternKeys(s, link) {
		keys[k] = true
	}

	for _, sel := range [][]hasher.Handle{
		{ab[1].Handle, hasher.Wildcard},
		{hasher.Wildcard, ab[1].Handle},
		{ab[0].Handle, hasher.Wildcard},
		{hasher.Wildcard, ab[0].Handle},
	} {
		lookups := QueryLookups(s, "Set", sel)
		require.Len(t, lookups, 1)
		assert.True(t, keys[lookups[0].Key])

		// type wildcard reaches it through one of its buckets
		found := false
		for _, l := range QueryLookups(s, "*", sel) {
			found = found || keys[l.Key]
		}
		assert.True(t, found)
	}
}

func TestQueryLookups_TypeWildcard(t *testing.T) {
	s := atom.DefaultSchema()
	h := concepts("h")[0].Handle

	sortedAlready := QueryLookups(s, "*", []hasher.Handle{hasher.Wildcard, h})
	assert.Len(t, sortedAlready, 1)

	needsSort := QueryLookups(s, "*", []hasher.Handle{h, hasher.Wildcard})
	require.Len(t, needsSort, 2)
	assert.False(t, needsSort[0].UnorderedOnly)
	assert.True(t, needsSort[1].UnorderedOnly)
}

func TestIsFullySpecified(t *testing.T) {
	h := concepts("h")[0].Handle
	assert.True(t, IsFullySpecified("Inheritance", []hasher.Handle{h, h}))
	assert.False(t, IsFullySpecified("*", []hasher.Handle{h, h}))
	assert.False(t, IsFullySpecified("Inheritance", []hasher.Handle{h, hasher.Wildcard}))
}

func TestTemplateKeys(t *testing.T) {
	s := atom.DefaultSchema()
	link := atom.NewLink(s, "Inheritance", concepts("human", "mammal"), true, nil)

	keys := TemplateKeys(link)
	assert.Equal(t, []hasher.Handle{hasher.NamedTypeHash("Inheritance"), link.CompositeTypeHash}, keys)
}
