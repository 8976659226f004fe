// Package verify compares an executed result against a specification's
// expectation and produces the terminal outcome.
//
// Select results are compared as canonical tables. Ordering is only
// significant when the query text has an explicit ORDER BY; otherwise both
// sides are sorted by every value column first. Construct and update
// results are compared by graph isomorphism.
package verify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
	"github.com/roach88/graphspec/internal/table"
)

// Verifier produces outcomes. It holds no per-call state.
type Verifier struct {
	logger *slog.Logger
}

// New creates a Verifier. A nil logger discards output.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Verifier{logger: logger}
}

// Verify compares the executed result with s.Then. rows must be set for a
// table expectation and graph for a graph expectation.
func (v *Verifier) Verify(s *spec.Specification, rows *sparql.Results, graph *rdf.Graph) outcome.Outcome {
	id := outcome.Identity{SpecURI: s.URI, Backend: s.Backend.Label()}
	switch then := s.Then.(type) {
	case spec.TableThen:
		if rows == nil {
			return outcome.InternalError{Identity: id, Cause: errors.New("table expectation verified without select results")}
		}
		return v.verifyTable(id, s.When.QueryText, then, rows)
	case spec.GraphThen:
		if graph == nil {
			return outcome.InternalError{Identity: id, Cause: errors.New("graph expectation verified without a graph")}
		}
		return v.verifyGraph(id, then, graph)
	}
	return outcome.InternalError{Identity: id, Cause: fmt.Errorf("unknown expectation %T", s.Then)}
}

func (v *Verifier) verifyTable(id outcome.Identity, query string, then spec.TableThen, rows *sparql.Results) outcome.Outcome {
	expected := then.Table
	if expected == nil {
		expected = table.New()
	}
	actual := table.FromResults(rows.Vars, rows.Rows)
	ordered := sparql.HasOrderBy(query)
	er, ec := expected.Shape()
	ar, ac := actual.Shape()
	sameShape := expected.SameShape(actual)

	var warning, note string
	var diff table.Diff
	switch {
	case actual.Len() == 0 && expected.Len() == 0:
		return outcome.Passed{Identity: id}
	case actual.Len() == 0:
		diff = table.Compare(expected, table.EmptyLike(expected))
	default:
		if !ordered {
			cols := table.ColumnUnion(expected, actual)
			expected = expected.Reindex(cols).SortByValues()
			actual = actual.Reindex(cols).SortByValues()
			if then.Ordered {
				warning = fmt.Sprintf("%s: ordering in the expectation is ignored because the query has no explicit order", id.SpecURI)
			}
		} else if !then.Ordered {
			note = "the actual result is ordered but the expectation does not declare a row order"
		}
		switch {
		case expected.Len() == 0:
			diff = table.Compare(table.EmptyLike(actual), actual)
		case sameShape:
			diff = table.Compare(expected, actual)
		default:
			diff = table.Reconcile(expected, actual)
		}
	}

	if diff.Empty() {
		if warning != "" {
			v.logger.Warn("passed with warning", "spec", id.SpecURI, "backend", id.Backend, "warning", warning)
			return outcome.PassedWithWarning{Identity: id, Warning: warning}
		}
		return outcome.Passed{Identity: id}
	}

	msg := fmt.Sprintf("Expected %d row(s) and %d column(s), got %d row(s) and %d column(s)", er, ec, ar, ac)
	if note != "" {
		msg += " (" + note + ")"
	}
	return outcome.TableMismatch{Identity: id, Diff: diff, Message: msg}
}

func (v *Verifier) verifyGraph(id outcome.Identity, then spec.GraphThen, actual *rdf.Graph) outcome.Outcome {
	expected := then.Graph
	if expected == nil {
		expected = rdf.NewGraph()
	}
	if rdf.Isomorphic(expected, actual) {
		return outcome.Passed{Identity: id}
	}
	return outcome.GraphMismatch{Identity: id, Diff: rdf.Diff(expected, actual)}
}
