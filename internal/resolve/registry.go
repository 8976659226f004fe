package resolve

import (
	"context"
	"sort"

	"github.com/roach88/graphspec/internal/spec"
)

// Func resolves one source node for one of its declared kinds.
type Func func(ctx context.Context, r *Resolver, rec *spec.Record, n *spec.Node) (spec.Component, error)

// Key is the dispatch key of a resolver function.
type Key struct {
	Kind spec.Kind
	Role spec.Role
}

// Registry maps (kind, role) pairs to resolver functions.
type Registry struct {
	funcs map[Key]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[Key]Func)}
}

// Register binds fn to (kind, role), replacing any previous binding.
func (r *Registry) Register(kind spec.Kind, role spec.Role, fn Func) {
	r.funcs[Key{Kind: kind, Role: role}] = fn
}

// Lookup returns the function bound to (kind, role).
func (r *Registry) Lookup(kind spec.Kind, role spec.Role) (Func, bool) {
	fn, ok := r.funcs[Key{Kind: kind, Role: role}]
	return fn, ok
}

// Keys returns every registered key, sorted by role then kind.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.funcs))
	for k := range r.funcs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Role != keys[j].Role {
			return keys[i].Role < keys[j].Role
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}

// DefaultRegistry returns a registry with every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(spec.KindStatementsDataset, spec.RoleGiven, asGiven(statementsGraph))
	r.Register(spec.KindFileDataset, spec.RoleGiven, asGiven(fileGraph))
	r.Register(spec.KindHTTPDataset, spec.RoleGiven, asGiven(httpGraph))
	r.Register(spec.KindEmptyGraph, spec.RoleGiven, asGiven(emptyGraph))
	r.Register(spec.KindInheritedDataset, spec.RoleGiven, inheritedGiven)

	r.Register(spec.KindTextSparqlSource, spec.RoleWhen, textQuery)
	r.Register(spec.KindFileSparqlSource, spec.RoleWhen, fileQuery)
	r.Register(spec.KindHTTPSparqlSource, spec.RoleWhen, httpQuery)

	r.Register(spec.KindStatementsDataset, spec.RoleThen, asGraphThen(statementsGraph))
	r.Register(spec.KindFileDataset, spec.RoleThen, asGraphThen(fileGraph))
	r.Register(spec.KindHTTPDataset, spec.RoleThen, asGraphThen(httpGraph))
	r.Register(spec.KindEmptyGraph, spec.RoleThen, asGraphThen(emptyGraph))
	r.Register(spec.KindTableDataset, spec.RoleThen, tableRows)
	r.Register(spec.KindEmptyTable, spec.RoleThen, emptyTable)
	r.Register(spec.KindFileTable, spec.RoleThen, fileTable)

	return r
}
