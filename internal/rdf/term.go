package rdf

import (
	"fmt"
	"strings"
)

// Well-known vocabulary IRIs.
const (
	XSD = "http://www.w3.org/2001/XMLSchema#"
	RDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	XSDString   = XSD + "string"
	XSDAnyURI   = XSD + "anyURI"
	XSDInteger  = XSD + "integer"
	XSDDecimal  = XSD + "decimal"
	XSDDouble   = XSD + "double"
	XSDBoolean  = XSD + "boolean"
	RDFType     = RDF + "type"
	RDFLangText = RDF + "langString"
)

// TermKind discriminates the three RDF term shapes.
type TermKind uint8

const (
	KindIRI TermKind = iota + 1
	KindBlank
	KindLiteral
)

// Term is an RDF term.
//
// Term is a comparable value type so terms and triples can be used as map
// keys. The zero Term is "unbound".
//
// Value holds the IRI for KindIRI, the label (without "_:") for KindBlank,
// and the lexical form for KindLiteral. Datatype and Lang are only set for
// literals; a language-tagged literal always carries rdf:langString.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// NewIRI returns an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// NewBlank returns a blank node term. A leading "_:" is stripped.
func NewBlank(label string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(label, "_:")}
}

// NewLiteral returns an xsd:string literal.
func NewLiteral(lexical string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: XSDString}
}

// NewTypedLiteral returns a literal with an explicit datatype.
// An empty datatype defaults to xsd:string.
func NewTypedLiteral(lexical, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: KindLiteral, Value: lexical, Datatype: datatype}
}

// NewLangLiteral returns a language-tagged literal.
func NewLangLiteral(lexical, lang string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: RDFLangText, Lang: strings.ToLower(lang)}
}

// IsZero reports whether the term is unbound.
func (t Term) IsZero() bool { return t.Kind == 0 }

func (t Term) IsIRI() bool     { return t.Kind == KindIRI }
func (t Term) IsBlank() bool   { return t.Kind == KindBlank }
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		lit := `"` + escapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return lit + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != XSDString {
			return lit + "^^<" + t.Datatype + ">"
		}
		return lit
	default:
		return ""
	}
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}

// ParseTerm parses a single term written in N-Triples syntax.
//
// Accepted forms: <iri>, _:label, "lexical", "lexical"@lang,
// "lexical"^^<datatype>. Any other text is taken verbatim as an xsd:string
// literal, which keeps hand-written spec tables terse.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Term{}, fmt.Errorf("empty term")
	case strings.HasPrefix(s, "<"):
		if !strings.HasSuffix(s, ">") || len(s) < 3 {
			return Term{}, fmt.Errorf("malformed IRI %q", s)
		}
		return NewIRI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		if len(s) == 2 {
			return Term{}, fmt.Errorf("blank node %q has no label", s)
		}
		return NewBlank(s), nil
	case strings.HasPrefix(s, `"`):
		return parseQuotedLiteral(s)
	default:
		return NewLiteral(s), nil
	}
}

func parseQuotedLiteral(s string) (Term, error) {
	var b strings.Builder
	i := 1
	for ; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			break
		}
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	if i >= len(s) {
		return Term{}, fmt.Errorf("unterminated literal %q", s)
	}
	rest := s[i+1:]
	switch {
	case rest == "":
		return NewLiteral(b.String()), nil
	case strings.HasPrefix(rest, "@") && len(rest) > 1:
		return NewLangLiteral(b.String(), rest[1:]), nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		return NewTypedLiteral(b.String(), rest[3:len(rest)-1]), nil
	default:
		return Term{}, fmt.Errorf("malformed literal suffix %q", rest)
	}
}

// Triple is an RDF statement.
type Triple struct {
	S, P, O Term
}

// T is a shorthand constructor for triples.
func T(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// String renders the triple as one N-Triples line without newline.
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// HasBlank reports whether any position holds a blank node.
func (t Triple) HasBlank() bool {
	return t.S.IsBlank() || t.P.IsBlank() || t.O.IsBlank()
}

// Binding is one solution row: variable name to bound term.
// Unbound variables are absent.
type Binding map[string]Term
