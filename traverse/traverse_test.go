package traverse

import (
	"context"
	"math/rand/v2"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/iterator"
	"github.com/teranos/atomdb/server"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/memory"
	"github.com/teranos/atomdb/storage/remote"
)

func animals(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	testutil.LoadAnimals(t, b)
	return b
}

func names(t *testing.T, it iterator.Iterator[*atom.Atom]) []string {
	t.Helper()
	got, err := iterator.Collect(it)
	require.NoError(t, err)
	out := make([]string, 0, len(got))
	for _, a := range got {
		out = append(out, a.Name)
	}
	return out
}

func count(t *testing.T, it iterator.Iterator[*atom.Atom], err error) int {
	t.Helper()
	require.NoError(t, err)
	got, err := iterator.Collect(it)
	require.NoError(t, err)
	return len(got)
}

func TestGotoAndGet(t *testing.T) {
	b := animals(t)
	ctx := context.Background()

	_, err := New(ctx, b, testutil.Concept("unicorn"))
	assert.True(t, errors.IsNotFoundError(err))

	e, err := New(ctx, b, testutil.Concept("human"))
	require.NoError(t, err)
	a, err := e.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "human", a.Name)

	a, err = e.Goto(ctx, testutil.Concept("mammal"))
	require.NoError(t, err)
	assert.Equal(t, "mammal", a.Name)
	assert.Equal(t, testutil.Concept("mammal"), e.Cursor())

	_, err = e.Goto(ctx, hasher.Handle("0123456789abcdef0123456789abcdef"))
	assert.True(t, errors.IsNotFoundError(err))
	assert.Equal(t, testutil.Concept("mammal"), e.Cursor(), "a failed goto leaves the cursor")

	a, err = e.Goto(ctx, testutil.LinkHandle("Inheritance", "human", "mammal"))
	require.NoError(t, err)
	assert.True(t, a.IsLink())
}

func TestGetLinksFilters(t *testing.T) {
	b := animals(t)
	ctx := context.Background()

	for _, chunk := range []int{0, 1, 3} {
		e, err := New(ctx, b, testutil.Concept("human"), WithChunkSize(chunk))
		require.NoError(t, err)

		it, err := e.GetLinks(ctx)
		assert.Equal(t, 7, count(t, it, err), "chunk %d", chunk)

		it, err = e.GetLinks(ctx, LinkType("Similarity"))
		assert.Equal(t, 6, count(t, it, err))

		it, err = e.GetLinks(ctx, LinkType(string(hasher.Wildcard)))
		assert.Equal(t, 7, count(t, it, err))

		it, err = e.GetLinks(ctx, CursorPosition(0))
		assert.Equal(t, 4, count(t, it, err))

		it, err = e.GetLinks(ctx, CursorPosition(1), LinkType("Similarity"))
		assert.Equal(t, 3, count(t, it, err))

		it, err = e.GetLinks(ctx, CursorPosition(5))
		assert.Equal(t, 0, count(t, it, err))

		it, err = e.GetLinks(ctx, Predicate(func(l *atom.Atom) bool { return l.Type == "Inheritance" }))
		assert.Equal(t, 1, count(t, it, err))

		it, err = e.GetLinks(ctx, Where(`link.type == "Inheritance" && link.arity == 2`))
		assert.Equal(t, 1, count(t, it, err))
	}
}

func TestGetNeighbors(t *testing.T) {
	b := animals(t)
	ctx := context.Background()
	e, err := New(ctx, b, testutil.Concept("human"))
	require.NoError(t, err)

	it, err := e.GetNeighbors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mammal", "monkey", "chimp", "ent"}, names(t, it),
		"similarity is stored both ways but each neighbor appears once")

	it, err = e.GetNeighbors(ctx, LinkType("Inheritance"))
	require.NoError(t, err)
	assert.Equal(t, []string{"mammal"}, names(t, it))

	_, err = e.Goto(ctx, testutil.Concept("mammal"))
	require.NoError(t, err)
	it, err = e.GetNeighbors(ctx, CursorPosition(1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"human", "monkey", "chimp", "rhino"}, names(t, it))
}

func attributed(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	human := storage.Node("Concept", "human")
	for _, p := range []storage.Params{
		storage.Link("Evaluation", storage.Node("Predicate", "likes"), human),
		{Type: "Similarity", Targets: []storage.Params{human, storage.Node("Concept", "monkey")}, Attributes: map[string]any{"strength": 0.9}},
		{Type: "Similarity", Targets: []storage.Params{human, storage.Node("Concept", "chimp")}, Attributes: map[string]any{"strength": 0.2}},
	} {
		_, err := b.AddLink(ctx, p)
		require.NoError(t, err)
	}
	return b
}

func TestTargetTypeAndAttributes(t *testing.T) {
	b := attributed(t)
	ctx := context.Background()
	e, err := New(ctx, b, testutil.Concept("human"))
	require.NoError(t, err)

	it, err := e.GetLinks(ctx, TargetType("Predicate"))
	require.NoError(t, err)
	got, err := iterator.Collect(it)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Evaluation", got[0].Type)

	it, err = e.GetLinks(ctx, TargetType("Concept"))
	assert.Equal(t, 2, count(t, it, err))

	it, err = e.GetNeighbors(ctx, Where(`has(link.attributes.strength) && link.attributes.strength > 0.5`))
	require.NoError(t, err)
	assert.Equal(t, []string{"monkey"}, names(t, it))

	it, err = e.GetLinks(ctx, Where(`link.toplevel`), Where(`link.targets.exists(h, h == "`+string(testutil.Concept("chimp"))+`")`))
	assert.Equal(t, 1, count(t, it, err))
}

func TestWhereErrors(t *testing.T) {
	b := attributed(t)
	ctx := context.Background()
	e, err := New(ctx, b, testutil.Concept("human"))
	require.NoError(t, err)

	_, err = e.GetLinks(ctx, Where(`link.type ==`))
	assert.True(t, errors.IsInvalidRequestError(err), "syntax error: %v", err)

	_, err = e.GetLinks(ctx, Where(`"not a bool"`))
	assert.True(t, errors.IsInvalidRequestError(err), "non-bool result: %v", err)

	_, err = e.GetLinks(ctx, CursorPosition(-1))
	assert.True(t, errors.IsInvalidRequestError(err))

	it, err := e.GetLinks(ctx, Where(`link.arity`))
	require.NoError(t, err, "dyn results are only checked when evaluated")
	assert.False(t, it.Next())
	assert.True(t, errors.IsInvalidRequestError(it.Err()))
	require.NoError(t, it.Close())
}

func TestFollowLink(t *testing.T) {
	b := animals(t)
	ctx := context.Background()
	e, err := New(ctx, b, testutil.Concept("snake"), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	a, err := e.FollowLink(ctx, LinkType("Inheritance"), CursorPosition(0))
	require.NoError(t, err)
	assert.Equal(t, "reptile", a.Name)
	assert.Equal(t, a.Handle, e.Cursor())

	a, err = e.FollowLink(ctx, LinkType("Inheritance"), CursorPosition(0))
	require.NoError(t, err)
	assert.Equal(t, "animal", a.Name)

	_, err = e.FollowLink(ctx, LinkType("Inheritance"), CursorPosition(0))
	assert.True(t, errors.IsNotFoundError(err), "animal has no parent")
	assert.Equal(t, testutil.Concept("animal"), e.Cursor())
}

func TestFollowLinkIsUniform(t *testing.T) {
	b := animals(t)
	ctx := context.Background()
	e, err := New(ctx, b, testutil.Concept("human"), WithRand(rand.New(rand.NewPCG(7, 11))))
	require.NoError(t, err)

	hits := map[string]int{}
	for range 300 {
		_, err := e.Goto(ctx, testutil.Concept("human"))
		require.NoError(t, err)
		a, err := e.FollowLink(ctx, LinkType("Similarity"))
		require.NoError(t, err)
		hits[a.Name]++
	}
	require.Len(t, hits, 3)
	for name, n := range hits {
		assert.Greater(t, n, 60, "%s picked %d of 300 times", name, n)
	}
}

func TestRemoteTraverse(t *testing.T) {
	ts := httptest.NewServer(server.New(animals(t)).Handler())
	defer ts.Close()
	ctx := context.Background()
	rc, err := remote.Open(ctx, remote.Config{URL: ts.URL})
	require.NoError(t, err)
	defer rc.Close()

	e, err := New(ctx, rc, testutil.Concept("human"), WithChunkSize(2))
	require.NoError(t, err)
	it, err := e.GetNeighbors(ctx, LinkType("Similarity"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"monkey", "chimp", "ent"}, names(t, it))
}
