package testutil

import (
	"context"
	"sync"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

// Call records one invocation of a FakeBackend.
type Call struct {
	Op       string
	Backend  string
	Query    string
	Bindings rdf.Binding
}

// FakeBackend is a backend whose operations are plain funcs. A nil func
// returns an empty result. Every call is recorded.
type FakeBackend struct {
	SelectFunc    func(ctx context.Context, given spec.Given, query string, bindings rdf.Binding) (*sparql.Results, error)
	ConstructFunc func(ctx context.Context, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error)
	UpdateFunc    func(ctx context.Context, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error)

	// IsStateful is returned by Stateful.
	IsStateful bool

	mu    sync.Mutex
	calls []Call
}

func (f *FakeBackend) record(op string, cfg spec.Descriptor, query string, bindings rdf.Binding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Backend: cfg.Label(), Query: query, Bindings: bindings})
}

// Calls returns a copy of the recorded calls.
func (f *FakeBackend) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeBackend) Stateful() bool { return f.IsStateful }

func (f *FakeBackend) Select(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*sparql.Results, error) {
	f.record("select", cfg, query, bindings)
	if f.SelectFunc == nil {
		return &sparql.Results{}, nil
	}
	return f.SelectFunc(ctx, given, query, bindings)
}

func (f *FakeBackend) Construct(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	f.record("construct", cfg, query, bindings)
	if f.ConstructFunc == nil {
		return rdf.NewGraph(), nil
	}
	return f.ConstructFunc(ctx, given, query, bindings)
}

func (f *FakeBackend) Update(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	f.record("update", cfg, query, bindings)
	if f.UpdateFunc == nil {
		return rdf.NewGraph(), nil
	}
	return f.UpdateFunc(ctx, given, query, bindings)
}
