package sparql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/graphspec/internal/rdf"
)

// EvalSelect runs q against g. initial seeds the single starting solution,
// so its variables behave as if bound by a VALUES block.
func EvalSelect(g *rdf.Graph, q *SelectQuery, initial rdf.Binding) *Results {
	sols := match(g, q.Where, initial)
	sortSolutions(sols, q.Order)

	vars := q.Vars
	if vars == nil {
		vars = patternVars(q.Where, initial)
	}
	rows := make([]rdf.Binding, 0, len(sols))
	seen := make(map[string]struct{})
	for _, s := range sols {
		row := make(rdf.Binding, len(vars))
		for _, v := range vars {
			if t, ok := s[v]; ok {
				row[v] = t
			}
		}
		if q.Distinct {
			k := solutionKey(row, vars)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		rows = append(rows, row)
	}
	return &Results{Vars: append([]string(nil), vars...), Rows: slice(rows, q.Modifiers)}
}

// EvalConstruct runs q against g and returns the constructed graph.
func EvalConstruct(g *rdf.Graph, q *ConstructQuery, initial rdf.Binding) *rdf.Graph {
	sols := match(g, q.Where, initial)
	sortSolutions(sols, q.Order)
	sols = slice(sols, q.Modifiers)

	out := rdf.NewGraph()
	mint := newMinter(g)
	for _, s := range sols {
		for _, t := range instantiate(q.Template, s, mint.scope()) {
			out.Add(t)
		}
	}
	return out
}

// ApplyUpdate applies u to a copy of g and returns the resulting state.
// g is not modified.
func ApplyUpdate(g *rdf.Graph, u *Update, initial rdf.Binding) *rdf.Graph {
	out := g.Clone()
	mint := newMinter(g)
	for _, op := range u.Ops {
		switch op := op.(type) {
		case InsertData:
			fresh := mint.scope()
			for _, t := range op.Triples {
				out.Add(rdf.T(fresh(t.S), t.P, fresh(t.O)))
			}
		case DeleteData:
			for _, t := range op.Triples {
				out.Remove(t)
			}
		case DeleteWhere:
			for _, s := range match(out, op.Patterns, initial) {
				for _, t := range instantiate(op.Patterns, s, nil) {
					out.Remove(t)
				}
			}
		case Modify:
			var del, ins []rdf.Triple
			for _, s := range match(out, op.Where, initial) {
				del = append(del, instantiate(op.Delete, s, nil)...)
				ins = append(ins, instantiate(op.Insert, s, mint.scope())...)
			}
			for _, t := range del {
				out.Remove(t)
			}
			for _, t := range ins {
				out.Add(t)
			}
		case Clear:
			// Only the default graph exists in memory; named targets are empty.
			if op.Target == ClearDefault || op.Target == ClearAll {
				out = rdf.NewGraph()
			}
		}
	}
	return out
}

// match evaluates a basic graph pattern, seeded with one solution.
func match(g *rdf.Graph, pats []Pattern, initial rdf.Binding) []rdf.Binding {
	seed := make(rdf.Binding, len(initial))
	for k, v := range initial {
		seed[k] = v
	}
	sols := []rdf.Binding{seed}
	triples := g.Triples()
	for _, pat := range pats {
		var next []rdf.Binding
		for _, s := range sols {
			for _, t := range triples {
				if b, ok := unify(s, pat, t); ok {
					next = append(next, b)
				}
			}
		}
		sols = next
		if len(sols) == 0 {
			break
		}
	}
	return sols
}

func unify(s rdf.Binding, pat Pattern, t rdf.Triple) (rdf.Binding, bool) {
	out := s
	copied := false
	bind := func(pt PatternTerm, term rdf.Term) bool {
		if !pt.IsVar() {
			return pt.Term == term
		}
		if cur, ok := out[pt.Var]; ok {
			return cur == term
		}
		if !copied {
			out = make(rdf.Binding, len(s)+3)
			for k, v := range s {
				out[k] = v
			}
			copied = true
		}
		out[pt.Var] = term
		return true
	}
	if bind(pat.S, t.S) && bind(pat.P, t.P) && bind(pat.O, t.O) {
		return out, true
	}
	return nil, false
}

// instantiate fills a template from one solution. Triples with unbound
// variables or invalid positions are dropped. fresh maps template blank
// nodes; nil leaves them unchanged.
func instantiate(tmpl []Pattern, s rdf.Binding, fresh func(rdf.Term) rdf.Term) []rdf.Triple {
	var out []rdf.Triple
	for _, pat := range tmpl {
		term := func(pt PatternTerm) (rdf.Term, bool) {
			if pt.IsVar() {
				t, ok := s[pt.Var]
				return t, ok
			}
			if fresh != nil {
				return fresh(pt.Term), true
			}
			return pt.Term, true
		}
		sub, ok1 := term(pat.S)
		pred, ok2 := term(pat.P)
		obj, ok3 := term(pat.O)
		if !ok1 || !ok2 || !ok3 || sub.IsLiteral() || !pred.IsIRI() || obj.IsZero() {
			continue
		}
		out = append(out, rdf.T(sub, pred, obj))
	}
	return out
}

// minter hands out blank labels that do not collide with an existing graph.
type minter struct {
	used map[string]struct{}
	n    int
}

func newMinter(g *rdf.Graph) *minter {
	m := &minter{used: make(map[string]struct{})}
	for _, t := range g.Triples() {
		for _, term := range []rdf.Term{t.S, t.O} {
			if term.IsBlank() {
				m.used[term.Value] = struct{}{}
			}
		}
	}
	return m
}

// scope returns a mapping that renames each distinct blank node to a new
// label, consistently within the scope.
func (m *minter) scope() func(rdf.Term) rdf.Term {
	labels := make(map[string]rdf.Term)
	return func(t rdf.Term) rdf.Term {
		if !t.IsBlank() {
			return t
		}
		if r, ok := labels[t.Value]; ok {
			return r
		}
		for {
			m.n++
			l := fmt.Sprintf("b%d", m.n)
			if _, taken := m.used[l]; taken {
				continue
			}
			m.used[l] = struct{}{}
			labels[t.Value] = rdf.NewBlank(l)
			return labels[t.Value]
		}
	}
}

// patternVars lists the projectable variables of a pattern: seeded
// variables first, then pattern variables in order of appearance.
func patternVars(pats []Pattern, initial rdf.Binding) []string {
	var vars []string
	seen := make(map[string]struct{})
	add := func(v string) {
		if v == "" || strings.HasPrefix(v, "_:") {
			return
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			vars = append(vars, v)
		}
	}
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k)
	}
	for _, p := range pats {
		add(p.S.Var)
		add(p.P.Var)
		add(p.O.Var)
	}
	return vars
}

func solutionKey(row rdf.Binding, vars []string) string {
	var b strings.Builder
	for _, v := range vars {
		b.WriteString(row[v].String())
		b.WriteByte(0)
	}
	return b.String()
}

func slice[T any](rows []T, m Modifiers) []T {
	if m.Offset > 0 {
		if m.Offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[m.Offset:]
	}
	if m.Limit >= 0 && m.Limit < len(rows) {
		rows = rows[:m.Limit]
	}
	return rows
}

func sortSolutions(sols []rdf.Binding, keys []OrderKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(sols, func(i, j int) bool {
		for _, k := range keys {
			c := CompareTerms(sols[i][k.Var], sols[j][k.Var])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// CompareTerms orders terms for ORDER BY: unbound, blank nodes, IRIs, then
// literals. Numeric literals compare by value.
func CompareTerms(a, b rdf.Term) int {
	if ra, rb := termRank(a), termRank(b); ra != rb {
		return ra - rb
	}
	if a.IsLiteral() {
		if x, ok := numericValue(a); ok {
			if y, ok := numericValue(b); ok {
				switch {
				case x < y:
					return -1
				case x > y:
					return 1
				}
			}
		}
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

func termRank(t rdf.Term) int {
	switch t.Kind {
	case rdf.KindBlank:
		return 1
	case rdf.KindIRI:
		return 2
	case rdf.KindLiteral:
		return 3
	}
	return 0
}

var numericTypes = map[string]bool{
	rdf.XSDInteger:                 true,
	rdf.XSDDecimal:                 true,
	rdf.XSDDouble:                  true,
	rdf.XSD + "float":              true,
	rdf.XSD + "int":                true,
	rdf.XSD + "long":               true,
	rdf.XSD + "short":              true,
	rdf.XSD + "nonNegativeInteger": true,
	rdf.XSD + "positiveInteger":    true,
}

func numericValue(t rdf.Term) (float64, bool) {
	if !numericTypes[t.Datatype] {
		return 0, false
	}
	f, err := strconv.ParseFloat(t.Value, 64)
	return f, err == nil
}
