// Package sparql understands just enough SPARQL for the conformance runner.
//
// Every backend relies on [HasOrderBy] and [DetectKind] to classify query
// text. The in-memory backend additionally parses and evaluates a subset
// of the language:
//
//   - PREFIX and BASE declarations
//   - SELECT [DISTINCT|REDUCED] (* | vars) WHERE basic graph pattern
//   - CONSTRUCT template WHERE pattern, and CONSTRUCT WHERE short form
//   - ORDER BY, LIMIT and OFFSET
//   - INSERT DATA, DELETE DATA, DELETE/INSERT ... WHERE, DELETE WHERE, CLEAR
//
// Anything outside the subset (FILTER, OPTIONAL, UNION, named graphs,
// property paths, aggregates, ...) is reported as an [UnsupportedError]
// rather than a [SyntaxError], so callers can skip instead of fail.
package sparql
