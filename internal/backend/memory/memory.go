// Package memory is the in-process backend. It evaluates the supported
// SPARQL subset directly against the given graph and keeps no state
// between executions.
package memory

import (
	"context"
	"fmt"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

// Type is the backend type tag.
const Type = "memory"

// Backend evaluates queries over an in-memory graph.
type Backend struct{}

// New returns the in-memory backend.
func New() *Backend { return &Backend{} }

var _ backend.Backend = (*Backend)(nil)

// Stateful reports false: every execution starts from its own given.
func (*Backend) Stateful() bool { return false }

func initial(given spec.Given) *rdf.Graph {
	if given.Inherited || given.Graph == nil {
		return rdf.NewGraph()
	}
	return given.Graph
}

func parse(op, query string) (sparql.Query, error) {
	q, err := sparql.Parse(query)
	if err != nil {
		return nil, backend.FromSPARQL(op, err)
	}
	return q, nil
}

// Select runs a SELECT query.
func (b *Backend) Select(ctx context.Context, _ spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*sparql.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := parse("select", query)
	if err != nil {
		return nil, err
	}
	sq, ok := q.(*sparql.SelectQuery)
	if !ok {
		return nil, fmt.Errorf("select: query is a %T, not a SELECT", q)
	}
	return sparql.EvalSelect(initial(given), sq, bindings), nil
}

// Construct runs a CONSTRUCT query.
func (b *Backend) Construct(ctx context.Context, _ spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := parse("construct", query)
	if err != nil {
		return nil, err
	}
	cq, ok := q.(*sparql.ConstructQuery)
	if !ok {
		return nil, fmt.Errorf("construct: query is a %T, not a CONSTRUCT", q)
	}
	return sparql.EvalConstruct(initial(given), cq, bindings), nil
}

// Update applies an update request and returns the resulting graph. The
// given graph is left untouched.
func (b *Backend) Update(ctx context.Context, _ spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := parse("update", query)
	if err != nil {
		return nil, err
	}
	u, ok := q.(*sparql.Update)
	if !ok {
		return nil, fmt.Errorf("update: query is a %T, not an update", q)
	}
	return sparql.ApplyUpdate(initial(given), u, bindings), nil
}
