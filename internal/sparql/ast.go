package sparql

import "github.com/roach88/graphspec/internal/rdf"

// Query is a parsed query or update request.
//
// This is a sealed interface: *SelectQuery, *ConstructQuery and *Update
// are the only implementations.
type Query interface {
	queryNode()
}

// PatternTerm is one position of a triple pattern: either a variable or a
// concrete term.
type PatternTerm struct {
	Var  string
	Term rdf.Term
}

// IsVar reports whether the position is a variable.
func (p PatternTerm) IsVar() bool { return p.Var != "" }

// Pattern is a triple pattern.
type Pattern struct {
	S, P, O PatternTerm
}

// OrderKey is one ORDER BY condition.
type OrderKey struct {
	Var  string
	Desc bool
}

// Modifiers are the solution modifiers shared by SELECT and CONSTRUCT.
// Limit and Offset are -1 when absent.
type Modifiers struct {
	Order  []OrderKey
	Limit  int
	Offset int
}

// SelectQuery is SELECT over a basic graph pattern. A nil Vars projects
// every variable (SELECT *).
type SelectQuery struct {
	Distinct bool
	Vars     []string
	Where    []Pattern
	Modifiers
}

// ConstructQuery is CONSTRUCT over a basic graph pattern.
type ConstructQuery struct {
	Template []Pattern
	Where    []Pattern
	Modifiers
}

// Update is a sequence of update operations applied in order.
type Update struct {
	Ops []UpdateOp
}

func (*SelectQuery) queryNode()    {}
func (*ConstructQuery) queryNode() {}
func (*Update) queryNode()         {}

// UpdateOp is one operation of an update request.
//
// This is a sealed interface implemented by InsertData, DeleteData,
// Modify, DeleteWhere and Clear.
type UpdateOp interface {
	updateOp()
}

// InsertData adds ground triples.
type InsertData struct {
	Triples []rdf.Triple
}

// DeleteData removes ground triples.
type DeleteData struct {
	Triples []rdf.Triple
}

// Modify is DELETE { } INSERT { } WHERE { }. Either template may be empty.
type Modify struct {
	Delete []Pattern
	Insert []Pattern
	Where  []Pattern
}

// DeleteWhere is DELETE WHERE { }, where the pattern doubles as template.
type DeleteWhere struct {
	Patterns []Pattern
}

// ClearTarget selects what CLEAR empties.
type ClearTarget int

const (
	ClearDefault ClearTarget = iota + 1
	ClearNamed
	ClearAll
	ClearGraph
)

// Clear is CLEAR [SILENT] target. Graph is set for ClearGraph.
type Clear struct {
	Silent bool
	Target ClearTarget
	Graph  string
}

func (InsertData) updateOp()  {}
func (DeleteData) updateOp()  {}
func (Modify) updateOp()      {}
func (DeleteWhere) updateOp() {}
func (Clear) updateOp()       {}
