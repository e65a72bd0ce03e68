package query

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/iterator"
	"github.com/teranos/atomdb/server"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/memory"
	"github.com/teranos/atomdb/storage/remote"
)

func concept(name string) Node { return Node{Type: "Concept", Name: name} }

func v(name string) Variable { return Variable{Name: name} }

func animals(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	testutil.LoadAnimals(t, b)
	return b
}

func boundTo(t *testing.T, answers []iterator.Answer, label string) []hasher.Handle {
	t.Helper()
	var out []hasher.Handle
	for _, a := range answers {
		h, ok := a.Assignment.Get(label)
		require.True(t, ok, "answer without %s", label)
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func TestSimilarityEndToEnd(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	for _, p := range []storage.Params{
		storage.Node("Concept", "human"),
		storage.Node("Concept", "monkey"),
		storage.Node("Concept", "mammal"),
		storage.Link("Similarity", storage.Node("Concept", "human"), storage.Node("Concept", "monkey")),
		storage.Link("Inheritance", storage.Node("Concept", "human"), storage.Node("Concept", "mammal")),
	} {
		var err error
		if p.Targets == nil {
			_, err = b.AddNode(ctx, p)
		} else {
			_, err = b.AddLink(ctx, p)
		}
		require.NoError(t, err)
	}

	e := NewEngine(b, WithLogger(zaptest.NewLogger(t).Sugar()))
	answers, err := e.Collect(ctx, Link{Type: "Similarity", Targets: []Query{concept("human"), v("V")}})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, []hasher.Handle{testutil.Concept("monkey")}, boundTo(t, answers, "V"))
	assert.Equal(t, "Similarity", answers[0].Subgraph.Atom.Type)
	assert.Equal(t, "monkey", answers[0].Subgraph.Atom.Targets[1].Name)
}

func TestAnimalChainJoin(t *testing.T) {
	b := animals(t)
	q := And{Clauses: []Query{
		Link{Type: "Inheritance", Targets: []Query{v("V1"), v("V2")}},
		Link{Type: "Inheritance", Targets: []Query{v("V2"), v("V3")}},
	}}

	for _, chunk := range []int{0, 1, 5} {
		answers, err := NewEngine(b, WithChunkSize(chunk)).Collect(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, answers, 7, "chunk size %d", chunk)

		for _, a := range answers {
			require.Len(t, a.Subgraph.Parts, 2)
			first, second := a.Subgraph.Parts[0].Atom, a.Subgraph.Parts[1].Atom
			assert.Equal(t, first.Targets[1].Handle, second.Targets[0].Handle, "V2 joins both clauses")
			v2, _ := a.Assignment.Get("V2")
			assert.Equal(t, v2, first.Targets[1].Handle)
		}
	}
}

func TestSimilarityOverAnimals(t *testing.T) {
	b := animals(t)
	answers, err := NewEngine(b).Collect(context.Background(), Link{Type: "Similarity", Targets: []Query{concept("human"), v("V")}})
	require.NoError(t, err)

	want := []hasher.Handle{testutil.Concept("monkey"), testutil.Concept("chimp"), testutil.Concept("ent")}
	slices.Sort(want)
	assert.Equal(t, want, boundTo(t, answers, "V"))
}

func TestTypeWildcardLink(t *testing.T) {
	b := animals(t)
	answers, err := NewEngine(b).Collect(context.Background(), Link{Type: string(hasher.Wildcard), Targets: []Query{concept("human"), v("V")}})
	require.NoError(t, err)
	// 1 Inheritance + 3 Similarity
	assert.Len(t, answers, 4)
}

func TestNestedVariablesPropagate(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	likes := func(a, c string) storage.Params {
		return storage.Link("Evaluation", storage.Node("Predicate", "likes"),
			storage.Link("List", storage.Node("Concept", a), storage.Node("Concept", c)))
	}
	for _, p := range []storage.Params{likes("human", "monkey"), likes("monkey", "banana"), likes("human", "banana")} {
		_, err := b.AddLink(ctx, p)
		require.NoError(t, err)
	}

	e := NewEngine(b)
	q := Link{Type: "Evaluation", Targets: []Query{
		Node{Type: "Predicate", Name: "likes"},
		Link{Type: "List", Targets: []Query{concept("human"), v("X")}},
	}}
	answers, err := e.Collect(ctx, q)
	require.NoError(t, err)
	want := []hasher.Handle{testutil.Concept("monkey"), testutil.Concept("banana")}
	slices.Sort(want)
	assert.Equal(t, want, boundTo(t, answers, "X"))

	// X likes Y and Y likes banana
	chain := And{Clauses: []Query{
		Link{Type: "Evaluation", Targets: []Query{Node{Type: "Predicate", Name: "likes"}, Link{Type: "List", Targets: []Query{v("X"), v("Y")}}}},
		Link{Type: "Evaluation", Targets: []Query{Node{Type: "Predicate", Name: "likes"}, Link{Type: "List", Targets: []Query{v("Y"), concept("banana")}}}},
	}}
	answers, err = e.Collect(ctx, chain)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, map[string]string{
		"X": string(testutil.Concept("human")),
		"Y": string(testutil.Concept("monkey")),
	}, answers[0].Bindings())
}

func TestToplevelOnly(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	_, err := b.AddLink(ctx, storage.Link("Evaluation", storage.Node("Predicate", "likes"),
		storage.Link("List", storage.Node("Concept", "human"), storage.Node("Concept", "monkey"))))
	require.NoError(t, err)

	q := Link{Type: "List", Targets: []Query{v("A"), v("B")}}

	answers, err := NewEngine(b).Collect(ctx, q)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	answers, err = NewEngine(b, WithToplevelOnly(true)).Collect(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, answers, "the List only exists nested inside the Evaluation")

	nested := Link{Type: "Evaluation", Targets: []Query{Node{Type: "Predicate", Name: "likes"}, q}}
	answers, err = NewEngine(b, WithToplevelOnly(true)).Collect(ctx, nested)
	require.NoError(t, err)
	assert.Len(t, answers, 1, "the filter applies to the outermost clause only")
}

func TestOrAndNodeQueries(t *testing.T) {
	b := animals(t)
	e := NewEngine(b)
	ctx := context.Background()

	answers, err := e.Collect(ctx, Or{Clauses: []Query{
		Link{Type: "Inheritance", Targets: []Query{v("X"), concept("reptile")}},
		Link{Type: "Inheritance", Targets: []Query{v("X"), concept("plant")}},
	}})
	require.NoError(t, err)
	assert.Len(t, answers, 4)

	answers, err = e.Collect(ctx, concept("human"))
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, testutil.Concept("human"), answers[0].Subgraph.Atom.Handle)

	answers, err = e.Collect(ctx, concept("unicorn"))
	require.NoError(t, err)
	assert.Empty(t, answers)

	answers, err = e.Collect(ctx, Link{Type: "Inheritance", Targets: []Query{concept("unicorn"), v("X")}})
	require.NoError(t, err)
	assert.Empty(t, answers, "a missing node empties the branch instead of failing")
}

func TestStructuralErrorsBeforeIteration(t *testing.T) {
	e := NewEngine(memory.New())
	ctx := context.Background()

	tests := []struct {
		name     string
		q        Query
		sentinel error
	}{
		{"nil", nil, errors.ErrUnexpectedQueryFormat},
		{"top-level variable", v("X"), errors.ErrUnexpectedQueryFormat},
		{"link without targets", Link{Type: "Inheritance"}, errors.ErrMalformedPattern},
		{"node without name", Node{Type: "Concept"}, errors.ErrUnexpectedQueryFormat},
		{"and as target", Link{Type: "List", Targets: []Query{And{Clauses: []Query{concept("a")}}}}, errors.ErrUnexpectedQueryFormat},
		{"empty and", And{}, errors.ErrUnexpectedQueryFormat},
		{"empty variable", Link{Type: "List", Targets: []Query{v("")}}, errors.ErrUnexpectedQueryFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(ctx, tt.q)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestParseJSON(t *testing.T) {
	q, err := ParseJSON([]byte(`[
		{"link": "Inheritance", "targets": [{"variable": "V1"}, {"variable": "V2"}]},
		{"link": "Inheritance", "targets": [{"variable": "V2"}, {"node": "Concept", "name": "animal"}]}
	]`))
	require.NoError(t, err)
	assert.Equal(t, "AND(Inheritance($V1, $V2), Inheritance($V2, Concept:animal))", q.String())
	assert.Equal(t, []string{"V1", "V2"}, Variables(q))

	q, err = ParseJSON([]byte(`{"or": [{"node": "Concept", "name": "a"}, {"link": "Set", "targets": [{"link": "List", "targets": [{"variable": "X"}]}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "OR(Concept:a, Set(List($X)))", q.String())

	for _, bad := range []string{
		`{"variable": "X"}`,
		`{"nod": "Concept", "name": "a"}`,
		`{"link": "Inheritance", "targets": []}`,
		`{"link": "Inheritance", "targets": [{"and": [{"node": "C", "name": "a"}]}]}`,
		`[]`,
		`42`,
		`{not json`,
	} {
		_, err := ParseJSON([]byte(bad))
		assert.True(t, errors.Is(err, errors.ErrUnexpectedQueryFormat), "%s: %v", bad, err)
	}
}

func TestParsedQueryOverAnimals(t *testing.T) {
	q, err := ParseJSON([]byte(`[
		{"link": "Inheritance", "targets": [{"variable": "V1"}, {"variable": "V2"}]},
		{"link": "Inheritance", "targets": [{"variable": "V2"}, {"variable": "V3"}]}
	]`))
	require.NoError(t, err)

	answers, err := NewEngine(animals(t)).Collect(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, answers, 7)
}

func TestRemoteBackendQuery(t *testing.T) {
	b := animals(t)
	ts := httptest.NewServer(server.New(b).Handler())
	defer ts.Close()
	rc, err := remote.Open(context.Background(), remote.Config{URL: ts.URL})
	require.NoError(t, err)
	defer rc.Close()

	q := And{Clauses: []Query{
		Link{Type: "Inheritance", Targets: []Query{v("V1"), v("V2")}},
		Link{Type: "Inheritance", Targets: []Query{v("V2"), v("V3")}},
	}}
	answers, err := NewEngine(rc, WithChunkSize(2)).Collect(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, answers, 7)
}

func TestLazyExecution(t *testing.T) {
	b := animals(t)
	it, err := NewEngine(b).Execute(context.Background(), Link{Type: "Inheritance", Targets: []Query{v("X"), concept("mammal")}})
	require.NoError(t, err)
	defer it.Close()

	n := 0
	for it.Next() {
		_, err := it.Get()
		require.NoError(t, err)
		n++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 4, n)
	assert.False(t, it.Next())
}
