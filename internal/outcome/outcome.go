// Package outcome defines the terminal result of running one specification
// against one backend.
//
// Outcome is a sealed union. Every variant embeds [Identity], so reports
// can attribute it without consulting the specification again.
package outcome

import (
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/table"
)

// Status is the stable name of an outcome variant.
type Status string

const (
	StatusPassed             Status = "passed"
	StatusPassedWithWarning  Status = "passed_with_warning"
	StatusTableMismatch      Status = "table_mismatch"
	StatusGraphMismatch      Status = "graph_mismatch"
	StatusParseFailure       Status = "parse_failure"
	StatusConnectionFailure  Status = "connection_failure"
	StatusExecutionError     Status = "execution_error"
	StatusSpecificationError Status = "specification_error"
	StatusSkipped            Status = "skipped"
	StatusInternalError      Status = "internal_error"
)

// Statuses lists every status in report order.
var Statuses = []Status{
	StatusPassed,
	StatusPassedWithWarning,
	StatusTableMismatch,
	StatusGraphMismatch,
	StatusParseFailure,
	StatusConnectionFailure,
	StatusExecutionError,
	StatusSpecificationError,
	StatusSkipped,
	StatusInternalError,
}

// Identity names the specification and backend an outcome belongs to.
type Identity struct {
	SpecURI string
	Backend string
}

// ID returns the identity itself.
func (i Identity) ID() Identity { return i }

// Outcome is a terminal result.
//
// This is a sealed interface: only types in this package implement it.
type Outcome interface {
	ID() Identity
	Status() Status
	// Passed reports whether the outcome counts as a pass.
	Passed() bool
	outcome()
}

// Passed means the result matched the expectation.
type Passed struct {
	Identity
}

// PassedWithWarning means the result matched but something about the
// comparison deserves attention.
type PassedWithWarning struct {
	Identity
	Warning string
}

// TableMismatch means a select result differed from the expected table.
type TableMismatch struct {
	Identity
	Diff    table.Diff
	Message string
}

// GraphMismatch means a constructed or updated graph was not isomorphic to
// the expected graph.
type GraphMismatch struct {
	Identity
	Diff rdf.GraphDiff
}

// ParseFailure means the backend rejected the query text.
type ParseFailure struct {
	Identity
	Cause error
}

// ConnectionFailure means the backend could not be reached or timed out.
type ConnectionFailure struct {
	Identity
	Cause error
}

// ExecutionError is any other backend failure.
type ExecutionError struct {
	Identity
	Cause error
}

// SpecificationError means the specification itself is malformed,
// ambiguous or duplicated.
type SpecificationError struct {
	Identity
	Cause error
}

// Skipped means the specification was deliberately not run.
type Skipped struct {
	Identity
	Reason string
}

// InternalError means the engine itself misbehaved while handling the
// specification. It signals a defect, not a problem with the spec content.
type InternalError struct {
	Identity
	Cause error
}

func (Passed) Status() Status             { return StatusPassed }
func (PassedWithWarning) Status() Status  { return StatusPassedWithWarning }
func (TableMismatch) Status() Status      { return StatusTableMismatch }
func (GraphMismatch) Status() Status      { return StatusGraphMismatch }
func (ParseFailure) Status() Status       { return StatusParseFailure }
func (ConnectionFailure) Status() Status  { return StatusConnectionFailure }
func (ExecutionError) Status() Status     { return StatusExecutionError }
func (SpecificationError) Status() Status { return StatusSpecificationError }
func (Skipped) Status() Status            { return StatusSkipped }
func (InternalError) Status() Status      { return StatusInternalError }

func (Passed) Passed() bool             { return true }
func (PassedWithWarning) Passed() bool  { return true }
func (TableMismatch) Passed() bool      { return false }
func (GraphMismatch) Passed() bool      { return false }
func (ParseFailure) Passed() bool       { return false }
func (ConnectionFailure) Passed() bool  { return false }
func (ExecutionError) Passed() bool     { return false }
func (SpecificationError) Passed() bool { return false }
func (Skipped) Passed() bool            { return false }
func (InternalError) Passed() bool      { return false }

func (Passed) outcome()             {}
func (PassedWithWarning) outcome()  {}
func (TableMismatch) outcome()      {}
func (GraphMismatch) outcome()      {}
func (ParseFailure) outcome()       {}
func (ConnectionFailure) outcome()  {}
func (ExecutionError) outcome()     {}
func (SpecificationError) outcome() {}
func (Skipped) outcome()            {}
func (InternalError) outcome()      {}

// IsFailure reports whether o should fail a run. Skipped outcomes do not.
func IsFailure(o Outcome) bool {
	return !o.Passed() && o.Status() != StatusSkipped
}
