// Package spec defines the data model shared by resolution, dispatch and
// verification.
//
// A declarative record arrives as a [Record]: an [Arena] of source nodes
// plus the node identifiers attached to each role. Nodes reference each
// other by [NodeID] only, so malformed input can describe cycles without
// creating pointer cycles.
//
// Resolution turns a record into an immutable [Specification] holding one
// [Given], one [When] and one [Then]. Then is a sealed union of [GraphThen]
// and [TableThen].
package spec
