// Package harness runs batches of specification records against a set of
// backends and collects one outcome per (record, backend) pair.
//
// A run proceeds in three phases:
//
//  1. Duplicate detection: records sharing a URI yield SpecificationError
//     for every copy and are not resolved.
//  2. Resolution: each record is resolved once; resolution failures yield
//     SpecificationError (or InternalError for engine defects) on every
//     backend. An update run against an inherited given is Skipped.
//  3. Execution: every resolved record is assembled per backend,
//     dispatched and verified. Backends run concurrently; executions on a
//     stateful backend instance run one at a time.
//
// Outcomes are returned in record order, then backend order, regardless of
// how execution was scheduled. A failure in one specification never aborts
// the batch.
//
// For host test suites, [AssertGolden] snapshots a batch of outcomes to a
// goldie fixture under testdata/golden.
package harness
