package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

// Response is the raw result of one dispatched operation. Rows is set for
// select, Graph for construct and update.
type Response struct {
	Rows  *sparql.Results
	Graph *rdf.Graph
}

// Dispatcher routes specifications to registered backends.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(reg *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{registry: reg, logger: logger, locks: make(map[string]*sync.Mutex)}
}

// Serialized reports whether executions against d must run one at a time.
func (d *Dispatcher) Serialized(desc spec.Descriptor) bool {
	b, ok := d.registry.Lookup(desc.Type)
	return ok && IsStateful(b)
}

func (d *Dispatcher) instanceLock(name string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[name]
	if !ok {
		l = &sync.Mutex{}
		d.locks[name] = l
	}
	return l
}

// Dispatch runs s against its backend. Exactly one of the response and the
// outcome is non-nil: a failed execution is terminal and is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, s *spec.Specification) (*Response, outcome.Outcome) {
	id := outcome.Identity{SpecURI: s.URI, Backend: s.Backend.Label()}
	b, ok := d.registry.Lookup(s.Backend.Type)
	if !ok {
		return nil, outcome.Skipped{Identity: id, Reason: fmt.Sprintf("backend type %q is not implemented", s.Backend.Type)}
	}
	if IsStateful(b) {
		l := d.instanceLock(s.Backend.Label())
		l.Lock()
		defer l.Unlock()
	}

	d.logger.Debug("dispatching", "spec", s.URI, "backend", id.Backend, "kind", s.When.QueryKind)

	var resp Response
	var err error
	switch s.When.QueryKind {
	case spec.QuerySelect:
		resp.Rows, err = b.Select(ctx, s.Backend, s.Given, s.When.QueryText, s.When.Bindings)
	case spec.QueryConstruct:
		resp.Graph, err = b.Construct(ctx, s.Backend, s.Given, s.When.QueryText, s.When.Bindings)
	case spec.QueryUpdate:
		resp.Graph, err = b.Update(ctx, s.Backend, s.Given, s.When.QueryText, s.When.Bindings)
	default:
		return nil, outcome.InternalError{Identity: id, Cause: fmt.Errorf("unknown query kind %v", s.When.QueryKind)}
	}
	if err != nil {
		o := Classify(id, err)
		d.logger.Debug("backend failed", "spec", s.URI, "backend", id.Backend, "status", o.Status(), "error", err)
		return nil, o
	}
	return &resp, nil
}

// Classify maps a backend error onto the outcome taxonomy.
func Classify(id outcome.Identity, err error) outcome.Outcome {
	err = FromSPARQL("operation", err)
	var ne net.Error
	switch {
	case IsParseError(err):
		return outcome.ParseFailure{Identity: id, Cause: err}
	case IsConnectionError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &ne) && ne.Timeout():
		return outcome.ConnectionFailure{Identity: id, Cause: err}
	case IsUnsupportedError(err):
		return outcome.Skipped{Identity: id, Reason: err.Error()}
	}
	return outcome.ExecutionError{Identity: id, Cause: err}
}
