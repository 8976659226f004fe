package resolve

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
	"github.com/roach88/graphspec/internal/table"
)

type graphFunc func(ctx context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (*rdf.Graph, error)

func asGiven(fn graphFunc) Func {
	return func(ctx context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
		g, err := fn(ctx, r, rec, n)
		if err != nil {
			return nil, err
		}
		return spec.Given{Graph: g}, nil
	}
}

func asGraphThen(fn graphFunc) Func {
	return func(ctx context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
		g, err := fn(ctx, r, rec, n)
		if err != nil {
			return nil, err
		}
		return spec.GraphThen{Graph: g}, nil
	}
}

func statementsGraph(_ context.Context, _ *Resolver, _ *spec.Record, n *spec.Node) (*rdf.Graph, error) {
	g, err := rdf.ParseString(n.Text, rdf.FormatTurtle)
	if err != nil {
		return nil, &SpecError{Code: ErrCodePayload, Message: "invalid inline statements", Err: err}
	}
	return g, nil
}

func fileGraph(_ context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (*rdf.Graph, error) {
	format, ok := rdf.FormatForPath(n.Path)
	if !ok {
		return nil, &SpecError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unsupported RDF file format %q", filepath.Ext(n.Path))}
	}
	full, data, err := r.readFile(rec, n.Path)
	if err != nil {
		return nil, err
	}
	g, err := rdf.Parse(bytes.NewReader(data), format)
	if err != nil {
		return nil, &SpecError{Code: ErrCodePayload, Message: "invalid RDF in " + full, Err: err}
	}
	return g, nil
}

func httpGraph(ctx context.Context, r *Resolver, _ *spec.Record, n *spec.Node) (*rdf.Graph, error) {
	res, err := r.fetch(ctx, n.URL)
	if err != nil {
		return nil, err
	}
	format, ok := rdf.FormatForMediaType(res.MediaType)
	if !ok {
		format, ok = rdf.FormatForPath(urlPath(n.URL))
	}
	if !ok {
		return nil, &SpecError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unsupported RDF media type %q at %s", res.MediaType, n.URL)}
	}
	g, err := rdf.Parse(bytes.NewReader(res.Body), format)
	if err != nil {
		return nil, &SpecError{Code: ErrCodePayload, Message: "invalid RDF at " + n.URL, Err: err}
	}
	return g, nil
}

func emptyGraph(context.Context, *Resolver, *spec.Record, *spec.Node) (*rdf.Graph, error) {
	return rdf.NewGraph(), nil
}

func inheritedGiven(context.Context, *Resolver, *spec.Record, *spec.Node) (spec.Component, error) {
	return spec.Given{Graph: rdf.NewGraph(), Inherited: true}, nil
}

func urlPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return path.Base(raw)
}

var queryExtensions = map[string]bool{".rq": true, ".sparql": true, ".ru": true}

func textQuery(_ context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
	return r.when(rec, n, n.Text)
}

func fileQuery(_ context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
	if !queryExtensions[strings.ToLower(filepath.Ext(n.Path))] {
		return nil, &SpecError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unsupported query file format %q", filepath.Ext(n.Path))}
	}
	_, data, err := r.readFile(rec, n.Path)
	if err != nil {
		return nil, err
	}
	return r.when(rec, n, string(data))
}

func httpQuery(ctx context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
	res, err := r.fetch(ctx, n.URL)
	if err != nil {
		return nil, err
	}
	return r.when(rec, n, string(res.Body))
}

// when builds the when component. A declared query kind wins over
// detection; undetectable text leaves the kind unset.
func (r *Resolver) when(rec *spec.Record, n *spec.Node, text string) (spec.Component, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SpecError{Code: ErrCodePayload, Message: "empty query text"}
	}
	w := spec.When{QueryText: text}
	if n.Query != "" {
		k, err := spec.ParseQueryKind(n.Query)
		if err != nil {
			return nil, &SpecError{Code: ErrCodePayload, Message: "invalid query kind", Err: err}
		}
		w.QueryKind = k
	} else if k, err := sparql.DetectKind(text); err == nil {
		w.QueryKind = k
	} else {
		r.logger.Debug("query kind not detected", "spec", rec.URI, "error", err)
	}
	if len(n.Bindings) > 0 {
		w.Bindings = make(rdf.Binding, len(n.Bindings))
		for k, v := range n.Bindings {
			w.Bindings[k] = v
		}
	}
	return w, nil
}

func emptyTable(context.Context, *Resolver, *spec.Record, *spec.Node) (spec.Component, error) {
	return spec.TableThen{Table: table.New()}, nil
}

// maxVisits bounds the total work of one row walk, covering shared
// subtrees that a depth budget alone would let fan out.
const maxVisits = 100000

type rowFrame struct {
	id      spec.NodeID
	depth   int
	ordinal *int
	exit    bool
}

type orderedRow struct {
	ordinal *int
	binding rdf.Binding
}

// tableRows walks the nested row nodes of a TableDataset with an explicit
// worklist. A node on the current path reappearing is a cycle.
func tableRows(_ context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
	var rows []orderedRow
	onPath := map[spec.NodeID]bool{n.ID: true}
	stack := make([]rowFrame, 0, len(n.Rows))
	for i := len(n.Rows) - 1; i >= 0; i-- {
		stack = append(stack, rowFrame{id: n.Rows[i], depth: 1, ordinal: n.Ordinal})
	}

	visits := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.exit {
			delete(onPath, f.id)
			continue
		}
		visits++
		if visits > maxVisits {
			return nil, &SpecError{Code: ErrCodeNodeGraph, Message: "row nodes exceed the visit budget"}
		}
		if f.depth > r.maxDepth {
			return nil, &SpecError{Code: ErrCodeNodeGraph, Message: fmt.Sprintf("row nesting deeper than %d", r.maxDepth)}
		}
		if onPath[f.id] {
			return nil, &SpecError{Code: ErrCodeNodeGraph, Message: fmt.Sprintf("cycle through node %d", f.id)}
		}
		row, err := rec.Arena.Node(f.id)
		if err != nil {
			return nil, &SpecError{Code: ErrCodeNodeGraph, Message: "dangling row reference", Err: err}
		}
		ord := f.ordinal
		if row.Ordinal != nil {
			ord = row.Ordinal
		}
		if len(row.Rows) == 0 {
			rows = append(rows, orderedRow{ordinal: ord, binding: row.Bindings})
			continue
		}
		onPath[f.id] = true
		stack = append(stack, rowFrame{id: f.id, exit: true})
		for i := len(row.Rows) - 1; i >= 0; i-- {
			stack = append(stack, rowFrame{id: row.Rows[i], depth: f.depth + 1, ordinal: ord})
		}
	}

	ordered := len(rows) > 0
	for _, row := range rows {
		if row.ordinal == nil {
			ordered = false
			break
		}
	}
	if ordered {
		sort.SliceStable(rows, func(i, j int) bool { return *rows[i].ordinal < *rows[j].ordinal })
	}
	bindings := make([]rdf.Binding, len(rows))
	for i, row := range rows {
		bindings[i] = row.binding
	}
	return spec.TableThen{Table: table.FromBindings(bindings), Ordered: ordered}, nil
}

func fileTable(_ context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error) {
	ext := strings.ToLower(filepath.Ext(n.Path))
	if ext != ".csv" && ext != ".srj" && ext != ".json" {
		return nil, &SpecError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unsupported table file format %q", ext)}
	}
	full, data, err := r.readFile(rec, n.Path)
	if err != nil {
		return nil, err
	}
	var res *sparql.Results
	if ext == ".csv" {
		res, err = readCSV(bytes.NewReader(data))
	} else {
		res, err = sparql.DecodeResults(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &SpecError{Code: ErrCodePayload, Message: "invalid table in " + full, Err: err}
	}
	return spec.TableThen{Table: table.FromResults(res.Vars, res.Rows)}, nil
}

// readCSV reads a header row of variable names, optionally paired with
// "<var>_datatype" columns. Without a datatype column a cell is read as a
// term; with one it is a literal of that datatype, or a resource when the
// datatype is xsd:anyURI. Empty cells are unbound.
func readCSV(r io.Reader) (*sparql.Results, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	header := records[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	var vars []string
	for _, h := range header {
		if !table.IsDatatypeColumn(h) {
			vars = append(vars, h)
		}
	}

	res := &sparql.Results{Vars: vars}
	for line, rec := range records[1:] {
		row := make(rdf.Binding, len(vars))
		for _, v := range vars {
			cell := rec[index[v]]
			if cell == "" {
				continue
			}
			dt := ""
			if j, ok := index[v+table.DatatypeSuffix]; ok {
				dt = rec[j]
			}
			t, err := csvTerm(cell, dt)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", line+1, v, err)
			}
			row[v] = t
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func csvTerm(cell, datatype string) (rdf.Term, error) {
	switch {
	case datatype == "":
		return rdf.ParseTerm(cell)
	case datatype == rdf.XSDAnyURI && strings.HasPrefix(cell, "_:"):
		return rdf.NewBlank(cell), nil
	case datatype == rdf.XSDAnyURI:
		return rdf.NewIRI(cell), nil
	case strings.HasPrefix(datatype, rdf.RDFLangText+"@"):
		return rdf.NewLangLiteral(cell, strings.TrimPrefix(datatype, rdf.RDFLangText+"@")), nil
	}
	return rdf.NewTypedLiteral(cell, datatype), nil
}
