package sparql

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/roach88/graphspec/internal/rdf"
)

// Results is a SELECT result: the projected variables and one binding per
// solution. Unbound variables are absent from a row.
type Results struct {
	Vars []string
	Rows []rdf.Binding
}

// ResultsMediaType is the SPARQL 1.1 JSON results format.
const ResultsMediaType = "application/sparql-results+json"

type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean,omitempty"`
	Results *struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results,omitempty"`
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// DecodeResults reads a SPARQL 1.1 JSON results document.
func DecodeResults(r io.Reader) (*Results, error) {
	var doc jsonResults
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}
	if doc.Boolean != nil {
		return nil, &UnsupportedError{Feature: "boolean results"}
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("decode sparql results: missing results member")
	}
	res := &Results{Vars: doc.Head.Vars}
	for i, b := range doc.Results.Bindings {
		row := make(rdf.Binding, len(b))
		for v, jt := range b {
			t, err := jt.term()
			if err != nil {
				return nil, fmt.Errorf("decode sparql results: row %d, variable %s: %w", i, v, err)
			}
			row[v] = t
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (j jsonTerm) term() (rdf.Term, error) {
	switch j.Type {
	case "uri":
		return rdf.NewIRI(j.Value), nil
	case "bnode":
		return rdf.NewBlank(j.Value), nil
	case "literal", "typed-literal":
		if j.Lang != "" {
			return rdf.NewLangLiteral(j.Value, j.Lang), nil
		}
		return rdf.NewTypedLiteral(j.Value, j.Datatype), nil
	}
	return rdf.Term{}, fmt.Errorf("unknown term type %q", j.Type)
}

// EncodeResults writes res as a SPARQL 1.1 JSON results document.
func EncodeResults(w io.Writer, res *Results) error {
	var doc jsonResults
	doc.Head.Vars = res.Vars
	if doc.Head.Vars == nil {
		doc.Head.Vars = []string{}
	}
	doc.Results = &struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	}{Bindings: []map[string]jsonTerm{}}
	for _, row := range res.Rows {
		b := make(map[string]jsonTerm, len(row))
		for v, t := range row {
			b[v] = toJSONTerm(t)
		}
		doc.Results.Bindings = append(doc.Results.Bindings, b)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func toJSONTerm(t rdf.Term) jsonTerm {
	switch t.Kind {
	case rdf.KindIRI:
		return jsonTerm{Type: "uri", Value: t.Value}
	case rdf.KindBlank:
		return jsonTerm{Type: "bnode", Value: t.Value}
	}
	jt := jsonTerm{Type: "literal", Value: t.Value}
	if t.Lang != "" {
		jt.Lang = t.Lang
	} else if t.Datatype != rdf.XSDString {
		jt.Datatype = t.Datatype
	}
	return jt
}

// WithValues appends a VALUES block binding each variable of b to its term.
// Blank nodes cannot be passed this way.
func WithValues(query string, b rdf.Binding) (string, error) {
	if len(b) == 0 {
		return query, nil
	}
	vars := make([]string, 0, len(b))
	for v := range b {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	var head, row strings.Builder
	for i, v := range vars {
		t := b[v]
		if t.IsBlank() || t.IsZero() {
			return "", fmt.Errorf("binding ?%s: blank or unbound terms cannot be sent as VALUES", v)
		}
		if i > 0 {
			head.WriteByte(' ')
			row.WriteByte(' ')
		}
		head.WriteString("?" + v)
		row.WriteString(t.String())
	}
	return fmt.Sprintf("%s\nVALUES (%s) { (%s) }\n", strings.TrimRight(query, " \t\r\n"), head.String(), row.String()), nil
}
