package outcome

import (
	"fmt"
	"strings"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/table"
)

// Record is the serializable form of an outcome, used for JSON output,
// golden files and run history.
type Record struct {
	SpecURI   string           `json:"spec_uri"`
	Backend   string           `json:"backend"`
	Status    Status           `json:"status"`
	Message   string           `json:"message,omitempty"`
	TableDiff []table.CellDiff `json:"table_diff,omitempty"`
	GraphDiff *GraphDiffRecord `json:"graph_diff,omitempty"`
}

// GraphDiffRecord lists the triples of each partition in N-Triples form.
type GraphDiffRecord struct {
	InExpectedNotInActual []string `json:"in_expected_not_in_actual"`
	InActualNotInExpected []string `json:"in_actual_not_in_expected"`
	InBoth                []string `json:"in_both"`
}

// ToRecord converts an outcome to its record.
func ToRecord(o Outcome) Record {
	id := o.ID()
	r := Record{SpecURI: id.SpecURI, Backend: id.Backend, Status: o.Status()}
	switch v := o.(type) {
	case PassedWithWarning:
		r.Message = v.Warning
	case TableMismatch:
		r.Message = v.Message
		r.TableDiff = v.Diff.Cells
	case GraphMismatch:
		r.GraphDiff = &GraphDiffRecord{
			InExpectedNotInActual: lines(v.Diff.InExpectedNotInActual),
			InActualNotInExpected: lines(v.Diff.InActualNotInExpected),
			InBoth:                lines(v.Diff.InBoth),
		}
	case ParseFailure:
		r.Message = causeText(v.Cause)
	case ConnectionFailure:
		r.Message = causeText(v.Cause)
	case ExecutionError:
		r.Message = causeText(v.Cause)
	case SpecificationError:
		r.Message = causeText(v.Cause)
	case InternalError:
		r.Message = causeText(v.Cause)
	case Skipped:
		r.Message = v.Reason
	}
	return r
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func lines(g *rdf.Graph) []string {
	ts := g.Triples()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// Render formats an outcome for terminal output.
func Render(o Outcome) string {
	return ToRecord(o).Render()
}

// Render formats the record for terminal output.
func (r Record) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", strings.ToUpper(string(r.Status)), r.Backend, r.SpecURI)
	if r.Message != "" {
		fmt.Fprintf(&b, "\n  %s", r.Message)
	}
	if len(r.TableDiff) > 0 {
		for _, line := range strings.Split(strings.TrimRight(table.Diff{Cells: r.TableDiff}.Render(), "\n"), "\n") {
			b.WriteString("\n    " + line)
		}
	}
	if d := r.GraphDiff; d != nil {
		section := func(title string, triples []string) {
			if len(triples) == 0 {
				return
			}
			fmt.Fprintf(&b, "\n  %s:", title)
			for _, t := range triples {
				b.WriteString("\n    " + t)
			}
		}
		section("in expected, not in actual", d.InExpectedNotInActual)
		section("in actual, not in expected", d.InActualNotInExpected)
	}
	return b.String()
}

// Summary counts outcomes by status.
type Summary struct {
	Total  int            `json:"total"`
	Failed int            `json:"failed"`
	Counts map[Status]int `json:"counts"`
}

// Summarize counts records by status.
func Summarize(records []Record) Summary {
	s := Summary{Counts: make(map[Status]int)}
	for _, r := range records {
		s.Total++
		s.Counts[r.Status]++
		if r.Status.IsFailure() {
			s.Failed++
		}
	}
	return s
}

// IsFailure reports whether a status should fail a run.
func (s Status) IsFailure() bool {
	switch s {
	case StatusPassed, StatusPassedWithWarning, StatusSkipped:
		return false
	}
	return true
}

// String renders the summary on one line, listing non-zero counts in
// report order.
func (s Summary) String() string {
	parts := []string{fmt.Sprintf("%d spec(s)", s.Total)}
	for _, st := range Statuses {
		if n := s.Counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return strings.Join(parts, ", ")
}
