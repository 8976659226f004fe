package spec

import (
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/table"
)

// Component is a resolved role value.
//
// This is a sealed interface: Given, When, GraphThen and TableThen are the
// only implementations.
type Component interface {
	component()
}

// Given is the initial backend state.
type Given struct {
	Graph *rdf.Graph

	// Inherited marks a read-only given: the backend runs against its
	// existing state instead of being seeded.
	Inherited bool
}

// When is the operation under test.
type When struct {
	QueryText string
	QueryKind QueryKind
	Bindings  rdf.Binding
}

// Then is the expected result.
type Then interface {
	Component
	// Compatible reports whether a when component of kind q can be
	// verified against this expectation.
	Compatible(q QueryKind) bool
}

// GraphThen expects a graph, from a construct or the post-update state.
type GraphThen struct {
	Graph *rdf.Graph
}

// TableThen expects a select result.
type TableThen struct {
	Table *table.Table

	// Ordered is set when every expected row carries an explicit ordinal.
	Ordered bool
}

func (Given) component()     {}
func (When) component()      {}
func (GraphThen) component() {}
func (TableThen) component() {}

func (GraphThen) Compatible(q QueryKind) bool {
	return q == QueryConstruct || q == QueryUpdate
}

func (TableThen) Compatible(q QueryKind) bool {
	return q == QuerySelect
}

// Specification is one executable unit: a record resolved for one backend.
// It is never mutated after assembly.
type Specification struct {
	URI     string
	Backend Descriptor
	Given   Given
	When    When
	Then    Then
}
