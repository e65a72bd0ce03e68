// Package testutil holds fixtures shared by package tests: the classic
// animal knowledge base and helpers that open each backend kind.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/storage"
)

// AnimalConcepts are the 14 Concept nodes of the animal base.
var AnimalConcepts = []string{
	"human", "monkey", "chimp", "snake", "earthworm", "rhino", "triceratops",
	"vine", "ent", "mammal", "animal", "reptile", "dinosaur", "plant",
}

// AnimalInheritance are the 12 Inheritance(child, parent) pairs.
var AnimalInheritance = [][2]string{
	{"human", "mammal"},
	{"monkey", "mammal"},
	{"chimp", "mammal"},
	{"mammal", "animal"},
	{"reptile", "animal"},
	{"snake", "reptile"},
	{"dinosaur", "reptile"},
	{"triceratops", "dinosaur"},
	{"earthworm", "animal"},
	{"rhino", "mammal"},
	{"vine", "plant"},
	{"ent", "plant"},
}

// AnimalSimilarity are the 7 similar pairs; each is stored in both directions.
var AnimalSimilarity = [][2]string{
	{"human", "monkey"},
	{"human", "chimp"},
	{"chimp", "monkey"},
	{"snake", "earthworm"},
	{"rhino", "triceratops"},
	{"snake", "vine"},
	{"human", "ent"},
}

// Animal base sizes.
const (
	AnimalNodeCount = 14
	AnimalLinkCount = 26
)

// AnimalParams returns the animal base as node and link params.
func AnimalParams() (nodes, links []storage.Params) {
	for _, name := range AnimalConcepts {
		nodes = append(nodes, storage.Node("Concept", name))
	}
	for _, p := range AnimalInheritance {
		links = append(links, storage.Link("Inheritance", storage.Node("Concept", p[0]), storage.Node("Concept", p[1])))
	}
	for _, p := range AnimalSimilarity {
		links = append(links,
			storage.Link("Similarity", storage.Node("Concept", p[0]), storage.Node("Concept", p[1])),
			storage.Link("Similarity", storage.Node("Concept", p[1]), storage.Node("Concept", p[0])),
		)
	}
	return nodes, links
}

// LoadAnimals adds the animal base to b.
func LoadAnimals(t testing.TB, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	nodes, links := AnimalParams()
	for _, p := range nodes {
		_, err := b.AddNode(ctx, p)
		require.NoError(t, err)
	}
	for _, p := range links {
		_, err := b.AddLink(ctx, p)
		require.NoError(t, err)
	}
}

// Concept returns the handle of a Concept node.
func Concept(name string) hasher.Handle {
	return hasher.TerminalHash("Concept", name)
}

// LinkHandle returns the handle of an ordered two-target link between concepts.
func LinkHandle(linkType, a, b string) hasher.Handle {
	return atom.DefaultSchema().LinkHandle(linkType, []hasher.Handle{Concept(a), Concept(b)})
}
