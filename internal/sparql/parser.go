package sparql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

// patternMode controls how blank nodes and variables are read.
type patternMode int

const (
	// modeWhere reads blank nodes as non-projected variables.
	modeWhere patternMode = iota
	// modeTemplate keeps blank nodes as terms, minted fresh per solution.
	modeTemplate
	// modeData forbids variables.
	modeData
	// modeDeleteData forbids variables and blank nodes.
	modeDeleteData
)

type parser struct {
	toks     []token
	i        int
	prefixes map[string]string
	base     *url.URL
	anon     int
}

func newParser(query string) (*parser, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, prefixes: make(map[string]string)}, nil
}

// Parse parses query or update text.
func Parse(query string) (Query, error) {
	p, err := newParser(query)
	if err != nil {
		return nil, err
	}
	if err := p.prologue(); err != nil {
		return nil, err
	}
	t := p.peek()
	switch {
	case t.is("SELECT"):
		return p.selectQuery()
	case t.is("CONSTRUCT"):
		return p.constructQuery()
	case t.is("ASK"), t.is("DESCRIBE"):
		return nil, &UnsupportedError{Feature: strings.ToUpper(t.val) + " queries"}
	case isUpdateKeyword(t):
		return p.update()
	}
	return nil, p.errorf("expected SELECT, CONSTRUCT or an update operation")
}

// DetectKind classifies query text without parsing the whole request.
func DetectKind(query string) (spec.QueryKind, error) {
	p, err := newParser(query)
	if err != nil {
		return 0, err
	}
	if err := p.prologue(); err != nil {
		return 0, err
	}
	t := p.peek()
	switch {
	case t.is("SELECT"):
		return spec.QuerySelect, nil
	case t.is("CONSTRUCT"):
		return spec.QueryConstruct, nil
	case t.is("ASK"), t.is("DESCRIBE"):
		return 0, &UnsupportedError{Feature: strings.ToUpper(t.val) + " queries"}
	case isUpdateKeyword(t):
		return spec.QueryUpdate, nil
	}
	return 0, p.errorf("cannot determine query form")
}

func isUpdateKeyword(t token) bool {
	for _, w := range []string{"INSERT", "DELETE", "CLEAR", "LOAD", "DROP", "CREATE", "ADD", "MOVE", "COPY", "WITH"} {
		if t.is(w) {
			return true
		}
	}
	return false
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.typ != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.peek().pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(s string) error {
	if !p.peek().punct(s) {
		return p.errorf("expected %q", s)
	}
	p.advance()
	return nil
}

func (p *parser) expectWord(w string) error {
	if !p.peek().is(w) {
		return p.errorf("expected %s", w)
	}
	p.advance()
	return nil
}

func (p *parser) expectEOF() error {
	t := p.peek()
	if t.is("VALUES") {
		return &UnsupportedError{Feature: "VALUES"}
	}
	if t.typ != tokEOF {
		return p.errorf("unexpected %q", t.val)
	}
	return nil
}

func (p *parser) prologue() error {
	for {
		switch t := p.peek(); {
		case t.is("PREFIX"):
			p.advance()
			name := p.advance()
			if name.typ != tokPName || !strings.HasSuffix(name.val, ":") {
				return &SyntaxError{Offset: name.pos, Message: "expected prefix name"}
			}
			iri := p.advance()
			if iri.typ != tokIRI {
				return &SyntaxError{Offset: iri.pos, Message: "expected IRI after PREFIX"}
			}
			p.prefixes[strings.TrimSuffix(name.val, ":")] = p.resolveIRI(iri.val)
		case t.is("BASE"):
			p.advance()
			iri := p.advance()
			if iri.typ != tokIRI {
				return &SyntaxError{Offset: iri.pos, Message: "expected IRI after BASE"}
			}
			u, err := url.Parse(p.resolveIRI(iri.val))
			if err != nil {
				return &SyntaxError{Offset: iri.pos, Message: "invalid BASE IRI"}
			}
			p.base = u
		default:
			return nil
		}
	}
}

func (p *parser) resolveIRI(s string) string {
	if p.base == nil {
		return s
	}
	ref, err := url.Parse(s)
	if err != nil || ref.IsAbs() {
		return s
	}
	return p.base.ResolveReference(ref).String()
}

func (p *parser) selectQuery() (*SelectQuery, error) {
	p.advance()
	q := &SelectQuery{}
	if p.peek().is("DISTINCT") {
		q.Distinct = true
		p.advance()
	} else if p.peek().is("REDUCED") {
		p.advance()
	}
	if p.peek().punct("*") {
		p.advance()
	} else {
		q.Vars = []string{}
		for {
			t := p.peek()
			if t.punct("(") {
				return nil, &UnsupportedError{Feature: "select expressions"}
			}
			if t.typ != tokVar {
				break
			}
			q.Vars = append(q.Vars, t.val)
			p.advance()
		}
		if len(q.Vars) == 0 {
			return nil, p.errorf("expected projection")
		}
	}
	if err := p.datasetClause(); err != nil {
		return nil, err
	}
	if p.peek().is("WHERE") {
		p.advance()
	}
	where, err := p.group(modeWhere)
	if err != nil {
		return nil, err
	}
	q.Where = where
	if q.Modifiers, err = p.modifiers(); err != nil {
		return nil, err
	}
	return q, p.expectEOF()
}

func (p *parser) constructQuery() (*ConstructQuery, error) {
	p.advance()
	q := &ConstructQuery{}
	if p.peek().is("WHERE") {
		p.advance()
		where, err := p.group(modeWhere)
		if err != nil {
			return nil, err
		}
		for _, pat := range where {
			if hasBlankVar(pat) {
				return nil, p.errorf("blank nodes are not allowed in CONSTRUCT WHERE")
			}
		}
		q.Template = where
		q.Where = where
	} else {
		tmpl, err := p.group(modeTemplate)
		if err != nil {
			return nil, err
		}
		q.Template = tmpl
		if err := p.datasetClause(); err != nil {
			return nil, err
		}
		if p.peek().is("WHERE") {
			p.advance()
		}
		if q.Where, err = p.group(modeWhere); err != nil {
			return nil, err
		}
	}
	var err error
	if q.Modifiers, err = p.modifiers(); err != nil {
		return nil, err
	}
	return q, p.expectEOF()
}

func (p *parser) datasetClause() error {
	if p.peek().is("FROM") {
		return &UnsupportedError{Feature: "dataset clauses"}
	}
	return nil
}

func (p *parser) modifiers() (Modifiers, error) {
	m := Modifiers{Limit: -1, Offset: -1}
	for {
		t := p.peek()
		switch {
		case t.is("GROUP"), t.is("HAVING"):
			return m, &UnsupportedError{Feature: "aggregation"}
		case t.is("ORDER"):
			p.advance()
			if err := p.expectWord("BY"); err != nil {
				return m, err
			}
			keys, err := p.orderKeys()
			if err != nil {
				return m, err
			}
			m.Order = keys
		case t.is("LIMIT"), t.is("OFFSET"):
			p.advance()
			n := p.advance()
			if n.typ != tokInteger {
				return m, &SyntaxError{Offset: n.pos, Message: "expected integer"}
			}
			v, err := strconv.Atoi(n.val)
			if err != nil || v < 0 {
				return m, &SyntaxError{Offset: n.pos, Message: "invalid " + strings.ToUpper(t.val)}
			}
			if t.is("LIMIT") {
				m.Limit = v
			} else {
				m.Offset = v
			}
		default:
			return m, nil
		}
	}
}

func (p *parser) orderKeys() ([]OrderKey, error) {
	var keys []OrderKey
	for {
		t := p.peek()
		switch {
		case t.typ == tokVar:
			p.advance()
			keys = append(keys, OrderKey{Var: t.val})
		case t.is("ASC"), t.is("DESC"), t.punct("("):
			desc := t.is("DESC")
			if !t.punct("(") {
				p.advance()
			}
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			v := p.advance()
			if v.typ != tokVar || !p.peek().punct(")") {
				return nil, &UnsupportedError{Feature: "order expressions"}
			}
			p.advance()
			keys = append(keys, OrderKey{Var: v.val, Desc: desc})
		default:
			if len(keys) == 0 {
				return nil, p.errorf("expected order condition")
			}
			return keys, nil
		}
	}
}

func (p *parser) update() (*Update, error) {
	u := &Update{}
	for {
		if err := p.prologue(); err != nil {
			return nil, err
		}
		if p.peek().typ == tokEOF {
			if len(u.Ops) == 0 {
				return nil, p.errorf("empty update")
			}
			return u, nil
		}
		op, err := p.updateOp()
		if err != nil {
			return nil, err
		}
		u.Ops = append(u.Ops, op)
		if p.peek().punct(";") {
			p.advance()
			continue
		}
		if err := p.expectEOF(); err != nil {
			return nil, err
		}
		return u, nil
	}
}

func (p *parser) updateOp() (UpdateOp, error) {
	t := p.advance()
	switch {
	case t.is("INSERT"):
		if p.peek().is("DATA") {
			p.advance()
			triples, err := p.groundGroup(modeData)
			return InsertData{Triples: triples}, err
		}
		ins, err := p.group(modeTemplate)
		if err != nil {
			return nil, err
		}
		where, err := p.modifyWhere()
		return Modify{Insert: ins, Where: where}, err
	case t.is("DELETE"):
		switch {
		case p.peek().is("DATA"):
			p.advance()
			triples, err := p.groundGroup(modeDeleteData)
			return DeleteData{Triples: triples}, err
		case p.peek().is("WHERE"):
			p.advance()
			pats, err := p.group(modeWhere)
			if err != nil {
				return nil, err
			}
			for _, pat := range pats {
				if hasBlankVar(pat) {
					return nil, p.errorf("blank nodes are not allowed in DELETE WHERE")
				}
			}
			return DeleteWhere{Patterns: pats}, nil
		}
		del, err := p.group(modeTemplate)
		if err != nil {
			return nil, err
		}
		for _, pat := range del {
			if pat.S.Term.IsBlank() || pat.O.Term.IsBlank() {
				return nil, p.errorf("blank nodes are not allowed in DELETE templates")
			}
		}
		var ins []Pattern
		if p.peek().is("INSERT") {
			p.advance()
			if ins, err = p.group(modeTemplate); err != nil {
				return nil, err
			}
		}
		where, err := p.modifyWhere()
		return Modify{Delete: del, Insert: ins, Where: where}, err
	case t.is("CLEAR"):
		c := Clear{}
		if p.peek().is("SILENT") {
			c.Silent = true
			p.advance()
		}
		switch target := p.advance(); {
		case target.is("DEFAULT"):
			c.Target = ClearDefault
		case target.is("NAMED"):
			c.Target = ClearNamed
		case target.is("ALL"):
			c.Target = ClearAll
		case target.is("GRAPH"):
			iri, err := p.iri()
			if err != nil {
				return nil, err
			}
			c.Target, c.Graph = ClearGraph, iri
		default:
			return nil, &SyntaxError{Offset: target.pos, Message: "expected CLEAR target"}
		}
		return c, nil
	case isUpdateKeyword(t):
		return nil, &UnsupportedError{Feature: strings.ToUpper(t.val)}
	}
	return nil, &SyntaxError{Offset: t.pos, Message: "expected update operation"}
}

func (p *parser) modifyWhere() ([]Pattern, error) {
	if p.peek().is("USING") {
		return nil, &UnsupportedError{Feature: "USING"}
	}
	if err := p.expectWord("WHERE"); err != nil {
		return nil, err
	}
	return p.group(modeWhere)
}

func (p *parser) groundGroup(mode patternMode) ([]rdf.Triple, error) {
	pats, err := p.group(mode)
	if err != nil {
		return nil, err
	}
	triples := make([]rdf.Triple, len(pats))
	for i, pat := range pats {
		triples[i] = rdf.T(pat.S.Term, pat.P.Term, pat.O.Term)
	}
	return triples, nil
}

// group parses "{ triples }".
func (p *parser) group(mode patternMode) ([]Pattern, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var pats []Pattern
	for {
		t := p.peek()
		switch {
		case t.punct("}"):
			p.advance()
			return pats, nil
		case t.punct("{"):
			return nil, &UnsupportedError{Feature: "nested group patterns"}
		case t.typ == tokWord && unsupportedGroupWord(t.val):
			return nil, &UnsupportedError{Feature: strings.ToUpper(t.val)}
		case t.typ == tokEOF:
			return nil, p.errorf("unterminated group")
		}
		more, err := p.triplesSameSubject(mode)
		if err != nil {
			return nil, err
		}
		pats = append(pats, more...)
		switch n := p.peek(); {
		case n.punct("."):
			p.advance()
		case n.punct("}"), n.punct("{"), n.typ == tokWord && unsupportedGroupWord(n.val):
		default:
			return nil, p.errorf("expected '.' or '}'")
		}
	}
}

func unsupportedGroupWord(w string) bool {
	switch strings.ToUpper(w) {
	case "FILTER", "OPTIONAL", "MINUS", "BIND", "VALUES", "GRAPH", "SERVICE", "UNION":
		return true
	}
	return false
}

func (p *parser) triplesSameSubject(mode patternMode) ([]Pattern, error) {
	subj, err := p.term(mode)
	if err != nil {
		return nil, err
	}
	var pats []Pattern
	for {
		verb, err := p.verb(mode)
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.term(mode)
			if err != nil {
				return nil, err
			}
			pats = append(pats, Pattern{S: subj, P: verb, O: obj})
			if !p.peek().punct(",") {
				break
			}
			p.advance()
		}
		if !p.peek().punct(";") {
			return pats, nil
		}
		for p.peek().punct(";") {
			p.advance()
		}
		if t := p.peek(); t.punct(".") || t.punct("}") {
			return pats, nil
		}
	}
}

func (p *parser) verb(mode patternMode) (PatternTerm, error) {
	t := p.peek()
	var v PatternTerm
	switch {
	case t.is("a"):
		p.advance()
		v = PatternTerm{Term: rdf.NewIRI(rdf.RDFType)}
	case t.typ == tokVar:
		if mode >= modeData {
			return v, p.errorf("variables are not allowed in data blocks")
		}
		p.advance()
		v = PatternTerm{Var: t.val}
	case t.typ == tokIRI || t.typ == tokPName:
		iri, err := p.iri()
		if err != nil {
			return v, err
		}
		v = PatternTerm{Term: rdf.NewIRI(iri)}
	case t.punct("^") || t.punct("!") || t.punct("("):
		return v, &UnsupportedError{Feature: "property paths"}
	default:
		return v, p.errorf("expected predicate")
	}
	if n := p.peek(); n.punct("/") || n.punct("|") || n.punct("*") || n.punct("+") || n.punct("?") {
		return v, &UnsupportedError{Feature: "property paths"}
	}
	return v, nil
}

func (p *parser) iri() (string, error) {
	t := p.advance()
	switch t.typ {
	case tokIRI:
		return p.resolveIRI(t.val), nil
	case tokPName:
		prefix, local, _ := strings.Cut(t.val, ":")
		ns, ok := p.prefixes[prefix]
		if !ok {
			return "", &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("undefined prefix %q", prefix)}
		}
		return ns + local, nil
	}
	return "", &SyntaxError{Offset: t.pos, Message: "expected IRI"}
}

func (p *parser) term(mode patternMode) (PatternTerm, error) {
	t := p.peek()
	switch {
	case t.typ == tokVar:
		if mode >= modeData {
			return PatternTerm{}, p.errorf("variables are not allowed in data blocks")
		}
		p.advance()
		return PatternTerm{Var: t.val}, nil
	case t.typ == tokIRI || t.typ == tokPName:
		iri, err := p.iri()
		return PatternTerm{Term: rdf.NewIRI(iri)}, err
	case t.typ == tokBlank:
		p.advance()
		return p.blank(mode, t.val)
	case t.punct("["):
		if !p.peekAt(1).punct("]") {
			return PatternTerm{}, &UnsupportedError{Feature: "blank node property lists"}
		}
		p.advance()
		p.advance()
		p.anon++
		return p.blank(mode, fmt.Sprintf("anon%d", p.anon))
	case t.punct("("):
		return PatternTerm{}, &UnsupportedError{Feature: "collections"}
	case t.typ == tokString:
		p.advance()
		return p.literal(t.val)
	case t.typ == tokInteger:
		p.advance()
		return PatternTerm{Term: rdf.NewTypedLiteral(t.val, rdf.XSDInteger)}, nil
	case t.typ == tokDecimal:
		p.advance()
		return PatternTerm{Term: rdf.NewTypedLiteral(t.val, rdf.XSDDecimal)}, nil
	case t.typ == tokDouble:
		p.advance()
		return PatternTerm{Term: rdf.NewTypedLiteral(t.val, rdf.XSDDouble)}, nil
	case t.is("true"), t.is("false"):
		p.advance()
		return PatternTerm{Term: rdf.NewTypedLiteral(strings.ToLower(t.val), rdf.XSDBoolean)}, nil
	}
	return PatternTerm{}, p.errorf("expected term")
}

func (p *parser) blank(mode patternMode, label string) (PatternTerm, error) {
	switch mode {
	case modeWhere:
		return PatternTerm{Var: "_:" + label}, nil
	case modeDeleteData:
		return PatternTerm{}, p.errorf("blank nodes are not allowed in DELETE DATA")
	}
	return PatternTerm{Term: rdf.NewBlank(label)}, nil
}

func (p *parser) literal(lexical string) (PatternTerm, error) {
	switch t := p.peek(); t.typ {
	case tokLang:
		p.advance()
		return PatternTerm{Term: rdf.NewLangLiteral(lexical, t.val)}, nil
	case tokHatHat:
		p.advance()
		dt, err := p.iri()
		if err != nil {
			return PatternTerm{}, err
		}
		return PatternTerm{Term: rdf.NewTypedLiteral(lexical, dt)}, nil
	}
	return PatternTerm{Term: rdf.NewLiteral(lexical)}, nil
}

func hasBlankVar(p Pattern) bool {
	for _, t := range []PatternTerm{p.S, p.P, p.O} {
		if strings.HasPrefix(t.Var, "_:") {
			return true
		}
	}
	return false
}
