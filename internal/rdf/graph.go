package rdf

import (
	"sort"
	"strings"
)

// Graph is a set of triples. The zero value is not usable; use NewGraph.
// A nil *Graph behaves as an empty graph for all read methods.
type Graph struct {
	triples map[Triple]struct{}
}

// NewGraph returns a graph holding the given triples.
func NewGraph(ts ...Triple) *Graph {
	g := &Graph{triples: make(map[Triple]struct{}, len(ts))}
	for _, t := range ts {
		g.triples[t] = struct{}{}
	}
	return g
}

// Add inserts a triple. Adding an existing triple is a no-op.
func (g *Graph) Add(t Triple) {
	g.triples[t] = struct{}{}
}

// Remove deletes a triple if present.
func (g *Graph) Remove(t Triple) {
	delete(g.triples, t)
}

// Has reports membership.
func (g *Graph) Has(t Triple) bool {
	if g == nil {
		return false
	}
	_, ok := g.triples[t]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.triples)
}

// Triples returns the triples in N-Triples lexical order.
func (g *Graph) Triples() []Triple {
	if g == nil {
		return nil
	}
	out := make([]Triple, 0, len(g.triples))
	for t := range g.triples {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	if g == nil {
		return c
	}
	for t := range g.triples {
		c.triples[t] = struct{}{}
	}
	return c
}

// Union returns a new graph with every triple of every input.
func Union(gs ...*Graph) *Graph {
	out := NewGraph()
	for _, g := range gs {
		if g == nil {
			continue
		}
		for t := range g.triples {
			out.triples[t] = struct{}{}
		}
	}
	return out
}

// Difference returns the triples of g that are not in other.
func (g *Graph) Difference(other *Graph) *Graph {
	out := NewGraph()
	if g == nil {
		return out
	}
	for t := range g.triples {
		if !other.Has(t) {
			out.triples[t] = struct{}{}
		}
	}
	return out
}

// Intersection returns the triples present in both graphs.
func (g *Graph) Intersection(other *Graph) *Graph {
	out := NewGraph()
	if g == nil {
		return out
	}
	for t := range g.triples {
		if other.Has(t) {
			out.triples[t] = struct{}{}
		}
	}
	return out
}

// Equal reports set equality. Blank node labels are compared literally;
// use Isomorphic for structural equivalence.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	if g == nil {
		return true
	}
	for t := range g.triples {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// NTriples serializes the graph in sorted N-Triples form.
func (g *Graph) NTriples() string {
	var b strings.Builder
	for _, t := range g.Triples() {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// GraphDiff partitions two graphs being compared.
type GraphDiff struct {
	InExpectedNotInActual *Graph
	InActualNotInExpected *Graph
	InBoth                *Graph
}

// Diff computes the three-way partition of expected and actual.
func Diff(expected, actual *Graph) GraphDiff {
	return GraphDiff{
		InExpectedNotInActual: expected.Difference(actual),
		InActualNotInExpected: actual.Difference(expected),
		InBoth:                expected.Intersection(actual),
	}
}

// Empty reports whether the graphs had no one-sided triples.
func (d GraphDiff) Empty() bool {
	return d.InExpectedNotInActual.Len() == 0 && d.InActualNotInExpected.Len() == 0
}
