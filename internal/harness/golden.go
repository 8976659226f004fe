package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/graphspec/internal/outcome"
)

// Snapshot is the golden-file form of a batch of outcomes.
type Snapshot struct {
	Name     string           `json:"name"`
	Summary  outcome.Summary  `json:"summary"`
	Outcomes []outcome.Record `json:"outcomes"`
}

// NewSnapshot converts outcomes to their record form.
func NewSnapshot(name string, outcomes []outcome.Outcome) Snapshot {
	recs := make([]outcome.Record, len(outcomes))
	for i, o := range outcomes {
		recs[i] = outcome.ToRecord(o)
	}
	return Snapshot{Name: name, Summary: outcome.Summarize(recs), Outcomes: recs}
}

// AssertGolden compares outcomes against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name string, outcomes []outcome.Outcome) {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewSnapshot(name, outcomes)); err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}
