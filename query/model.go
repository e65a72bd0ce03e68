// Package query lowers pattern queries into iterators over a backend.
package query

import (
	"fmt"
	"strings"
)

// Query is a node of a query tree.
type Query interface {
	fmt.Stringer
	isQuery()
}

// Node matches one concrete node.
type Node struct {
	Type string `json:"node"`
	Name string `json:"name"`
}

// Link matches links of Type whose targets match Targets. Type may be "*".
type Link struct {
	Type    string  `json:"link"`
	Targets []Query `json:"targets"`
}

// Variable is a free variable. It may only appear as a link target.
type Variable struct {
	Name string `json:"variable"`
}

// And joins clauses on their shared variables.
type And struct {
	Clauses []Query `json:"and"`
}

// Or concatenates the answers of its clauses.
type Or struct {
	Clauses []Query `json:"or"`
}

func (Node) isQuery()     {}
func (Link) isQuery()     {}
func (Variable) isQuery() {}
func (And) isQuery()      {}
func (Or) isQuery()       {}

func (n Node) String() string { return fmt.Sprintf("%s:%s", n.Type, n.Name) }

func (l Link) String() string { return l.Type + "(" + join(l.Targets, ", ") + ")" }

func (v Variable) String() string { return "$" + v.Name }

func (a And) String() string { return "AND(" + join(a.Clauses, ", ") + ")" }

func (o Or) String() string { return "OR(" + join(o.Clauses, ", ") + ")" }

func join(qs []Query, sep string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return strings.Join(parts, sep)
}

// Variables returns the distinct variable names in q, in first-seen order.
func Variables(q Query) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Query)
	walk = func(q Query) {
		switch q := q.(type) {
		case Variable:
			if !seen[q.Name] {
				seen[q.Name] = true
				out = append(out, q.Name)
			}
		case Link:
			for _, t := range q.Targets {
				walk(t)
			}
		case And:
			for _, c := range q.Clauses {
				walk(c)
			}
		case Or:
			for _, c := range q.Clauses {
				walk(c)
			}
		}
	}
	walk(q)
	return out
}
