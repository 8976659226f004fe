// Package backend defines the execution contract every graph store
// implements and the dispatcher that routes specifications to it.
//
// A backend runs one of three operations against an initial state:
//
//	Select(ctx, cfg, given, query, bindings)    -> rows
//	Construct(ctx, cfg, given, query, bindings) -> graph
//	Update(ctx, cfg, given, query, bindings)    -> post-update graph
//
// Backends report failures with [ParseError], [ConnectionError] or
// [UnsupportedError]; anything else is treated as a generic execution
// error. The [Dispatcher] maps these onto outcomes and never retries.
package backend
