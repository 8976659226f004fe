package outcome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/table"
)

var id = Identity{SpecURI: "urn:spec:one", Backend: "memory"}

func TestStatusAndPassed(t *testing.T) {
	tests := []struct {
		o      Outcome
		status Status
		passed bool
	}{
		{Passed{id}, StatusPassed, true},
		{PassedWithWarning{Identity: id, Warning: "w"}, StatusPassedWithWarning, true},
		{TableMismatch{Identity: id}, StatusTableMismatch, false},
		{GraphMismatch{Identity: id}, StatusGraphMismatch, false},
		{ParseFailure{Identity: id}, StatusParseFailure, false},
		{ConnectionFailure{Identity: id}, StatusConnectionFailure, false},
		{ExecutionError{Identity: id}, StatusExecutionError, false},
		{SpecificationError{Identity: id}, StatusSpecificationError, false},
		{Skipped{Identity: id}, StatusSkipped, false},
		{InternalError{Identity: id}, StatusInternalError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.o.Status())
			assert.Equal(t, tt.passed, tt.o.Passed())
			assert.Equal(t, id, tt.o.ID())
		})
	}
	assert.False(t, IsFailure(Skipped{Identity: id}))
	assert.True(t, IsFailure(ExecutionError{Identity: id}))
}

func TestToRecord_GraphMismatch(t *testing.T) {
	a := rdf.NewIRI("https://example.org/a")
	expected := rdf.NewGraph(rdf.T(a, a, rdf.NewLiteral("x")))
	actual := rdf.NewGraph(rdf.T(a, a, rdf.NewLiteral("y")))

	r := ToRecord(GraphMismatch{Identity: id, Diff: rdf.Diff(expected, actual)})
	assert.Equal(t, StatusGraphMismatch, r.Status)
	assert.Equal(t, []string{`<https://example.org/a> <https://example.org/a> "x" .`}, r.GraphDiff.InExpectedNotInActual)
	assert.Equal(t, []string{`<https://example.org/a> <https://example.org/a> "y" .`}, r.GraphDiff.InActualNotInExpected)
	assert.Empty(t, r.GraphDiff.InBoth)

	out := r.Render()
	assert.Contains(t, out, "GRAPH_MISMATCH [memory] urn:spec:one")
	assert.Contains(t, out, "in expected, not in actual:")
}

func TestToRecord_Messages(t *testing.T) {
	assert.Equal(t, "boom", ToRecord(ExecutionError{Identity: id, Cause: errors.New("boom")}).Message)
	assert.Equal(t, "why", ToRecord(Skipped{Identity: id, Reason: "why"}).Message)
	assert.Equal(t, "careful", ToRecord(PassedWithWarning{Identity: id, Warning: "careful"}).Message)
	assert.Empty(t, ToRecord(ParseFailure{Identity: id}).Message)

	tm := ToRecord(TableMismatch{
		Identity: id,
		Message:  "Expected 1 row(s) and 3 column(s), got 1 row(s) and 2 column(s)",
		Diff:     table.Diff{Cells: []table.CellDiff{{Row: 0, Column: "p", Expected: "x"}}},
	})
	assert.Len(t, tm.TableDiff, 1)
	out := tm.Render()
	assert.Contains(t, out, "Expected 1 row(s) and 3 column(s)")
	assert.Contains(t, out, "column")
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Record{
		ToRecord(Passed{id}),
		ToRecord(Passed{id}),
		ToRecord(Skipped{Identity: id}),
		ToRecord(TableMismatch{Identity: id}),
	})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "4 spec(s), 2 passed, 1 table_mismatch, 1 skipped", s.String())
}
