package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/table"
	"github.com/roach88/graphspec/internal/testutil"
)

// createTestStore creates a new store with deterministic IDs and clock.
func createTestStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialRunIDs("")), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// sampleRecords returns one record of each detail shape.
func sampleRecords() []outcome.Record {
	return []outcome.Record{
		{SpecURI: "urn:spec:a", Backend: "memory", Status: outcome.StatusPassed},
		{
			SpecURI: "urn:spec:b",
			Backend: "memory",
			Status:  outcome.StatusTableMismatch,
			Message: "Expected 1 row(s) and 3 column(s), got 1 row(s) and 2 column(s)",
			TableDiff: []table.CellDiff{
				{Row: 0, Column: "p", Expected: "https://example.org/pred"},
			},
		},
		{
			SpecURI: "urn:spec:c",
			Backend: "memory",
			Status:  outcome.StatusGraphMismatch,
			GraphDiff: &outcome.GraphDiffRecord{
				InExpectedNotInActual: []string{"<https://example.org/obj> <https://example.org/sub> <https://example.org/pred> ."},
				InActualNotInExpected: []string{},
				InBoth:                []string{},
			},
		},
		{SpecURI: "urn:spec:d", Backend: "memory", Status: outcome.StatusSkipped, Message: "backend type \"x\" is not implemented"},
	}
}
