package rdf

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	krdf "github.com/knakk/rdf"
)

// Format identifies an RDF serialization.
type Format int

const (
	FormatTurtle Format = iota + 1
	FormatNTriples
)

func (f Format) String() string {
	switch f {
	case FormatTurtle:
		return "turtle"
	case FormatNTriples:
		return "n-triples"
	default:
		return "unknown"
	}
}

// FormatForPath maps a file extension to a Format.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttl", ".turtle":
		return FormatTurtle, true
	case ".nt":
		return FormatNTriples, true
	default:
		return 0, false
	}
}

// FormatForMediaType maps an HTTP content type to a Format.
func FormatForMediaType(contentType string) (Format, bool) {
	mt := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch strings.ToLower(mt) {
	case "text/turtle", "application/x-turtle":
		return FormatTurtle, true
	case "application/n-triples", "text/plain":
		return FormatNTriples, true
	default:
		return 0, false
	}
}

// SyntaxError reports malformed RDF input.
type SyntaxError struct {
	Format Format
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Format, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse decodes RDF text into a Graph.
func Parse(r io.Reader, f Format) (*Graph, error) {
	var kf krdf.Format
	switch f {
	case FormatTurtle:
		kf = krdf.Turtle
	case FormatNTriples:
		kf = krdf.NTriples
	default:
		return nil, fmt.Errorf("unsupported RDF format %d", f)
	}

	g := NewGraph()
	dec := krdf.NewTripleDecoder(r, kf)
	for {
		tr, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SyntaxError{Format: f, Err: err}
		}
		t, err := fromDecoded(tr)
		if err != nil {
			return nil, &SyntaxError{Format: f, Err: err}
		}
		g.Add(t)
	}
	return g, nil
}

// ParseString is Parse over a string.
func ParseString(src string, f Format) (*Graph, error) {
	return Parse(strings.NewReader(src), f)
}

func fromDecoded(tr krdf.Triple) (Triple, error) {
	s, err := fromTerm(tr.Subj)
	if err != nil {
		return Triple{}, err
	}
	p, err := fromTerm(tr.Pred)
	if err != nil {
		return Triple{}, err
	}
	o, err := fromTerm(tr.Obj)
	if err != nil {
		return Triple{}, err
	}
	return Triple{S: s, P: p, O: o}, nil
}

func fromTerm(t krdf.Term) (Term, error) {
	switch v := t.(type) {
	case krdf.IRI:
		return NewIRI(v.String()), nil
	case krdf.Blank:
		return NewBlank(v.String()), nil
	case krdf.Literal:
		if lang := v.Lang(); lang != "" {
			return NewLangLiteral(v.String(), lang), nil
		}
		return NewTypedLiteral(v.String(), v.DataType.String()), nil
	default:
		return Term{}, fmt.Errorf("unexpected term type %T", t)
	}
}
