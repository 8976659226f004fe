package table

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// CellDiff is one diverging cell. Row indexes the compared sequence: the
// row position for a direct comparison, or the leftover-row position after
// shape reconciliation.
type CellDiff struct {
	Row      int    `json:"row"`
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Diff is the list of diverging cells, ordered by row then column.
type Diff struct {
	Cells []CellDiff `json:"cells"`
}

// Empty reports whether nothing diverged.
func (d Diff) Empty() bool { return len(d.Cells) == 0 }

// Mirror swaps the expected and actual sides.
func (d Diff) Mirror() Diff {
	out := Diff{Cells: make([]CellDiff, len(d.Cells))}
	for i, c := range d.Cells {
		out.Cells[i] = CellDiff{Row: c.Row, Column: c.Column, Expected: c.Actual, Actual: c.Expected}
	}
	return out
}

// Columns returns the distinct columns that diverged, in first-seen order.
func (d Diff) Columns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, c := range d.Cells {
		if _, ok := seen[c.Column]; !ok {
			seen[c.Column] = struct{}{}
			cols = append(cols, c.Column)
		}
	}
	return cols
}

// Compare diffs two tables element-wise. Rows are paired by position and
// cells by column name over the union of both column sets; a row missing on
// one side compares as empty.
func Compare(expected, actual *Table) Diff {
	cols := ColumnUnion(expected, actual)
	e := expected.Reindex(cols)
	a := actual.Reindex(cols)
	return compareAligned(cols, e.Rows, a.Rows)
}

// Reconcile diffs two tables whose shapes differ.
//
// Both sides are padded to the union of columns, rows present on both
// sides are cancelled as a multiset, and only the leftover rows are
// compared positionally. The result for (a, b) is the mirror of (b, a).
func Reconcile(expected, actual *Table) Diff {
	cols := ColumnUnion(expected, actual)
	e := expected.Reindex(cols)
	a := actual.Reindex(cols)
	eLeft := multisetMinus(e.Rows, a.Rows)
	aLeft := multisetMinus(a.Rows, e.Rows)
	return compareAligned(cols, eLeft, aLeft)
}

func compareAligned(cols []string, expected, actual [][]string) Diff {
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	var d Diff
	for i := 0; i < n; i++ {
		er := rowOrEmpty(expected, i, len(cols))
		ar := rowOrEmpty(actual, i, len(cols))
		for j, c := range cols {
			if er[j] != ar[j] {
				d.Cells = append(d.Cells, CellDiff{Row: i, Column: c, Expected: er[j], Actual: ar[j]})
			}
		}
	}
	return d
}

func rowOrEmpty(rows [][]string, i, width int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return make([]string, width)
}

// multisetMinus returns the rows of a not cancelled by an equal row of b,
// preserving a's order.
func multisetMinus(a, b [][]string) [][]string {
	counts := make(map[string]int, len(b))
	for _, r := range b {
		counts[rowKey(r)]++
	}
	var out [][]string
	for _, r := range a {
		k := rowKey(r)
		if counts[k] > 0 {
			counts[k]--
			continue
		}
		out = append(out, r)
	}
	return out
}

func rowKey(r []string) string {
	return strings.Join(r, "\x1f")
}

// Render writes the diff as an aligned text table.
func (d Diff) Render() string {
	if d.Empty() {
		return ""
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "row\tcolumn\texpected\tactual")
	for _, c := range d.Cells {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.Row, c.Column, display(c.Expected), display(c.Actual))
	}
	w.Flush()
	return b.String()
}

func display(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
