package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

// Backend executes operations against a graph store.
type Backend interface {
	Select(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*sparql.Results, error)
	Construct(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error)
	Update(ctx context.Context, cfg spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error)
}

// Stateful is implemented by backends whose instances keep state between
// calls. The dispatcher serializes executions per instance for them.
type Stateful interface {
	Stateful() bool
}

// IsStateful reports whether b declares itself stateful.
func IsStateful(b Backend) bool {
	s, ok := b.(Stateful)
	return ok && s.Stateful()
}

// ParseError reports that the backend rejected the query text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse error: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ConnectionError reports that the backend could not be reached, refused
// the credentials or timed out.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("connection failed: %v", e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }

// UnsupportedError reports an operation the backend does not support.
type UnsupportedError struct {
	Operation string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported: %s", e.Operation, e.Reason)
}

// IsParseError checks if err is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsConnectionError checks if err is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsUnsupportedError checks if err is an UnsupportedError.
func IsUnsupportedError(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// FromSPARQL converts errors from the sparql package into backend errors.
// Other errors are returned unchanged.
func FromSPARQL(op string, err error) error {
	var se *sparql.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Err: err}
	}
	var ue *sparql.UnsupportedError
	if errors.As(err, &ue) {
		return &UnsupportedError{Operation: op, Reason: ue.Error()}
	}
	return err
}

// Registry maps backend type tags to implementations.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register binds b to tag, replacing any previous binding.
func (r *Registry) Register(tag string, b Backend) {
	r.backends[tag] = b
}

// Lookup returns the backend registered for tag.
func (r *Registry) Lookup(tag string) (Backend, bool) {
	b, ok := r.backends[tag]
	return b, ok
}

// Tags lists registered type tags, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.backends))
	for t := range r.backends {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
