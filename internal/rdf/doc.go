// Package rdf provides the graph primitives the conformance engine relies on:
// terms, triples, graph set operations, parsing, isomorphism and three-way
// graph diffs.
//
// Terms are comparable values so a Graph is simply a set of Triple keys.
// Parsing of Turtle and N-Triples is delegated to github.com/knakk/rdf and
// converted into this package's term model at the boundary.
//
// # Comparison Semantics
//
// Two comparisons are available:
//   - Graph.Equal: plain set equality, blank node labels compared literally
//   - Isomorphic: equality up to blank node renaming
//
// Diff always partitions literally (labels as written); callers decide pass
// or fail with Isomorphic and use the diff only to explain a failure.
package rdf
