// Package table implements the canonical table used to compare SELECT
// results, whether they come from a literal expectation or a live backend.
//
// Every variable contributes two columns: the value column named after the
// variable and a paired datatype column named "<var>_datatype". An empty
// cell means "unbound". Lexical values are NFC-normalized on the way in so
// equivalent Unicode spellings compare equal.
package table

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/graphspec/internal/rdf"
)

// DatatypeSuffix names the paired datatype column of a variable.
const DatatypeSuffix = "_datatype"

// Table is a canonical value+datatype table.
// Rows are aligned with Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// ColumnsFor returns the canonical column list for a set of variables:
// variables sorted, each followed by its datatype column.
func ColumnsFor(vars []string) []string {
	sorted := append([]string(nil), vars...)
	sort.Strings(sorted)
	cols := make([]string, 0, len(sorted)*2)
	for _, v := range sorted {
		cols = append(cols, v, v+DatatypeSuffix)
	}
	return cols
}

// CellFor maps a bound term to its (value, datatype) pair.
//
// Literals keep their datatype, defaulting to xsd:string. Language-tagged
// literals carry rdf:langString followed by "@" and the tag. Resource
// references (IRIs and blank nodes) carry xsd:anyURI.
func CellFor(t rdf.Term) (value, datatype string) {
	switch t.Kind {
	case rdf.KindLiteral:
		dt := t.Datatype
		switch {
		case t.Lang != "":
			dt = rdf.RDFLangText + "@" + t.Lang
		case dt == "":
			dt = rdf.XSDString
		}
		return norm.NFC.String(t.Value), dt
	case rdf.KindBlank:
		return "_:" + t.Value, rdf.XSDAnyURI
	case rdf.KindIRI:
		return t.Value, rdf.XSDAnyURI
	default:
		return "", ""
	}
}

// FromBindings builds a canonical table from solution rows. The column set
// is the union of variables bound in any row.
func FromBindings(rows []rdf.Binding) *Table {
	return FromResults(nil, rows)
}

// FromResults builds a canonical table from a projected variable list and
// its solution rows. Every projected variable gets columns even when no row
// binds it; variables bound but not projected are added as well.
func FromResults(vars []string, rows []rdf.Binding) *Table {
	seen := make(map[string]struct{})
	var all []string
	add := func(v string) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			all = append(all, v)
		}
	}
	for _, v := range vars {
		add(v)
	}
	for _, row := range rows {
		for v := range row {
			add(v)
		}
	}
	t := New(ColumnsFor(all)...)
	for _, row := range rows {
		cells := make(map[string]string, len(row)*2)
		for v, term := range row {
			val, dt := CellFor(term)
			cells[v] = val
			cells[v+DatatypeSuffix] = dt
		}
		t.AddRow(cells)
	}
	return t
}

// AddRow appends a row given as column -> value. Missing columns are empty;
// unknown columns are ignored.
func (t *Table) AddRow(cells map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = cells[c]
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Variables returns the value columns (datatype columns excluded).
func (t *Table) Variables() []string {
	if t == nil {
		return nil
	}
	var vars []string
	for _, c := range t.Columns {
		if !IsDatatypeColumn(c) {
			vars = append(vars, c)
		}
	}
	return vars
}

// IsDatatypeColumn reports whether c is a paired datatype column.
func IsDatatypeColumn(c string) bool {
	return strings.HasSuffix(c, DatatypeSuffix) && len(c) > len(DatatypeSuffix)
}

// Shape returns (rows, variables). Datatype columns are not counted.
func (t *Table) Shape() (rows, vars int) {
	return t.Len(), len(t.Variables())
}

// Value returns the cell at row, column.
func (t *Table) Value(row int, column string) (string, bool) {
	idx := t.columnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	return t.Rows[row][idx], true
}

func (t *Table) columnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// SameShape reports whether both tables have the same row count and the
// same column set (order ignored).
func (t *Table) SameShape(other *Table) bool {
	if t.Len() != other.Len() || len(t.Columns) != len(other.Columns) {
		return false
	}
	cols := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		cols[c] = struct{}{}
	}
	for _, c := range other.Columns {
		if _, ok := cols[c]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := New(t.Columns...)
	c.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return c
}

// SortByValues returns a copy sorted ascending by every value column in
// column order, then by every datatype column. The sort is stable.
func (t *Table) SortByValues() *Table {
	c := t.Clone()
	var keys, ties []int
	for i, col := range c.Columns {
		if IsDatatypeColumn(col) {
			ties = append(ties, i)
			continue
		}
		keys = append(keys, i)
	}
	keys = append(keys, ties...)
	sort.SliceStable(c.Rows, func(i, j int) bool {
		for _, k := range keys {
			if c.Rows[i][k] != c.Rows[j][k] {
				return c.Rows[i][k] < c.Rows[j][k]
			}
		}
		return false
	})
	return c
}

// Reindex projects the table onto columns, filling missing ones with empty
// cells.
func (t *Table) Reindex(columns []string) *Table {
	out := New(columns...)
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.columnIndex(c)
	}
	for _, r := range t.Rows {
		row := make([]string, len(columns))
		for i, j := range idx {
			if j >= 0 {
				row[i] = r[j]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// EmptyLike returns a table with t's columns and row count and every cell
// empty.
func EmptyLike(t *Table) *Table {
	out := New(t.Columns...)
	for range t.Rows {
		out.Rows = append(out.Rows, make([]string, len(t.Columns)))
	}
	return out
}

// ColumnUnion merges the columns of a and b into canonical order, so the
// result does not depend on argument order.
func ColumnUnion(a, b *Table) []string {
	seen := make(map[string]struct{})
	var vars, extra []string
	add := func(cols []string) {
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			if IsDatatypeColumn(c) {
				extra = append(extra, c)
				continue
			}
			vars = append(vars, c)
		}
	}
	add(a.Columns)
	add(b.Columns)

	cols := ColumnsFor(vars)
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[c] = struct{}{}
	}
	// Datatype columns without a value column keep a stable position at the end.
	sort.Strings(extra)
	for _, c := range extra {
		if _, ok := have[c]; !ok {
			cols = append(cols, c)
		}
	}
	return cols
}
