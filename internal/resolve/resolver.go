// Package resolve turns declarative records into executable specifications.
//
// Each source node declares one or more kinds. For every (kind, role) pair
// the [Registry] supplies a resolver function; the [Resolver] applies the
// role's combination rule to the results and checks that the when query
// kind fits the then shape before anything is dispatched.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/graphspec/internal/fetch"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

// DefaultMaxDepth bounds how deeply nested row groups may be.
const DefaultMaxDepth = 32

// Resolver resolves records using a registry of kind handlers.
type Resolver struct {
	registry *Registry
	baseDir  string
	fetcher  fetch.Fetcher
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseDir resolves relative payload paths against dir instead of the
// record's own directory.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) { r.baseDir = dir }
}

// WithFetcher sets the collaborator used for URL payloads.
func WithFetcher(f fetch.Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

// WithMaxDepth sets the nesting budget for row groups.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) { r.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver.
func New(reg *Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: reg,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolved holds the three resolved components of one record. It is
// backend independent; Assemble binds it to a backend.
type Resolved struct {
	URI   string
	Given spec.Given
	When  spec.When
	Then  spec.Then
}

// Assemble binds the resolved components to a backend.
func (res *Resolved) Assemble(backend spec.Descriptor) *spec.Specification {
	return &spec.Specification{
		URI:     res.URI,
		Backend: backend,
		Given:   res.Given,
		When:    res.When,
		Then:    res.Then,
	}
}

// ResolveRecord resolves every role of rec and checks that the when query
// kind is compatible with the then shape.
func (r *Resolver) ResolveRecord(ctx context.Context, rec *spec.Record) (*Resolved, error) {
	res := &Resolved{URI: rec.URI}
	for _, role := range spec.Roles {
		c, err := r.Resolve(ctx, rec, role)
		if err != nil {
			return nil, err
		}
		switch v := c.(type) {
		case spec.Given:
			res.Given = v
		case spec.When:
			res.When = v
		case spec.Then:
			res.Then = v
		}
	}

	if res.When.QueryKind == 0 {
		// Query text could not be classified; follow the expectation and let
		// the backend report the malformed query.
		res.When.QueryKind = spec.QueryConstruct
		if _, ok := res.Then.(spec.TableThen); ok {
			res.When.QueryKind = spec.QuerySelect
		}
		r.logger.Debug("query kind inferred from expectation", "spec", rec.URI, "kind", res.When.QueryKind)
	}
	if !res.Then.Compatible(res.When.QueryKind) {
		return nil, &SpecError{
			Code:    ErrCodeIncompatible,
			Subject: rec.URI,
			Message: fmt.Sprintf("%s query cannot be verified against a %s expectation", res.When.QueryKind, thenShape(res.Then)),
		}
	}
	return res, nil
}

// Resolve resolves one role of rec into a single component.
func (r *Resolver) Resolve(ctx context.Context, rec *spec.Record, role spec.Role) (spec.Component, error) {
	ids := rec.Nodes(role)
	if len(ids) == 0 {
		return nil, &SpecError{Code: ErrCodeMissingRole, Subject: rec.URI, Role: role, Message: fmt.Sprintf("no %s component", role)}
	}

	var comps []spec.Component
	var kinds []spec.Kind
	for _, id := range ids {
		n, err := rec.Arena.Node(id)
		if err != nil {
			return nil, &SpecError{Code: ErrCodeNodeGraph, Subject: rec.URI, Role: role, Message: "dangling node reference", Err: err}
		}
		if len(n.Kinds) == 0 {
			return nil, &SpecError{Code: ErrCodeNoType, Subject: rec.URI, Role: role, Message: "node has no type"}
		}
		for _, kind := range n.Kinds {
			fn, ok := r.registry.Lookup(kind, role)
			if !ok {
				return nil, &SpecError{
					Code:    ErrCodeUnregistered,
					Subject: rec.URI,
					Kind:    kind,
					Role:    role,
					Message: fmt.Sprintf("no resolver for kind %s in role %s", kind, role),
				}
			}
			c, err := fn(ctx, r, rec, n)
			if err != nil {
				return nil, decorate(err, rec.URI, kind, role)
			}
			r.logger.Debug("resolved component", "spec", rec.URI, "role", role, "kind", kind)
			comps = append(comps, c)
			kinds = append(kinds, kind)
		}
	}

	switch role {
	case spec.RoleGiven:
		return combineGiven(rec.URI, comps)
	case spec.RoleWhen:
		return combineWhen(rec.URI, comps)
	default:
		return combineThen(rec.URI, comps, kinds)
	}
}

// decorate fills in the spec identity on errors raised by resolver functions.
func decorate(err error, subject string, kind spec.Kind, role spec.Role) error {
	var se *SpecError
	if errors.As(err, &se) {
		if se.Subject == "" {
			se.Subject = subject
		}
		if se.Kind == "" {
			se.Kind = kind
		}
		if se.Role == "" {
			se.Role = role
		}
		return se
	}
	if IsFileNotFound(err) {
		return err
	}
	return &SpecError{Code: ErrCodePayload, Subject: subject, Kind: kind, Role: role, Message: "cannot read payload", Err: err}
}

func mismatch(subject string, role spec.Role, c spec.Component) error {
	return &SpecError{
		Code:    ErrCodeInternal,
		Subject: subject,
		Role:    role,
		Message: fmt.Sprintf("resolver returned %T for role %s", c, role),
	}
}

func combineGiven(subject string, comps []spec.Component) (spec.Component, error) {
	var graphs []*rdf.Graph
	inherited := false
	for _, c := range comps {
		g, ok := c.(spec.Given)
		if !ok {
			return nil, mismatch(subject, spec.RoleGiven, c)
		}
		inherited = inherited || g.Inherited
		graphs = append(graphs, g.Graph)
	}
	if inherited && len(comps) > 1 {
		return nil, &SpecError{
			Code:    ErrCodePayload,
			Subject: subject,
			Role:    spec.RoleGiven,
			Message: "an inherited dataset cannot be combined with other given data",
		}
	}
	return spec.Given{Graph: rdf.Union(graphs...), Inherited: inherited}, nil
}

func combineWhen(subject string, comps []spec.Component) (spec.Component, error) {
	if len(comps) > 1 {
		return nil, &SpecError{
			Code:    ErrCodeMultipleWhen,
			Subject: subject,
			Role:    spec.RoleWhen,
			Message: "multiple when-components not supported",
		}
	}
	w, ok := comps[0].(spec.When)
	if !ok {
		return nil, mismatch(subject, spec.RoleWhen, comps[0])
	}
	return w, nil
}

func combineThen(subject string, comps []spec.Component, kinds []spec.Kind) (spec.Component, error) {
	tables := 0
	for _, k := range kinds {
		if k.IsTable() {
			tables++
		}
	}
	switch {
	case tables > 1:
		return nil, &SpecError{
			Code:    ErrCodeMultipleTable,
			Subject: subject,
			Role:    spec.RoleThen,
			Message: "multiple table then-components not supported",
		}
	case tables == 1 && len(comps) > 1:
		return nil, &SpecError{
			Code:    ErrCodeMixedThen,
			Subject: subject,
			Role:    spec.RoleThen,
			Message: "table and graph then-components cannot be combined",
		}
	case tables == 1:
		t, ok := comps[0].(spec.TableThen)
		if !ok {
			return nil, mismatch(subject, spec.RoleThen, comps[0])
		}
		return t, nil
	}

	var graphs []*rdf.Graph
	for _, c := range comps {
		g, ok := c.(spec.GraphThen)
		if !ok {
			return nil, mismatch(subject, spec.RoleThen, c)
		}
		graphs = append(graphs, g.Graph)
	}
	return spec.GraphThen{Graph: rdf.Union(graphs...)}, nil
}

func thenShape(t spec.Then) string {
	if _, ok := t.(spec.TableThen); ok {
		return "table"
	}
	return "graph"
}

// path resolves a payload path for rec.
func (r *Resolver) path(rec *spec.Record, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	base := r.baseDir
	if base == "" && rec.Source != "" {
		base = filepath.Dir(rec.Source)
	}
	return filepath.Join(base, p)
}

// readFile reads a payload file, rejecting directories.
func (r *Resolver) readFile(rec *spec.Record, p string) (string, []byte, error) {
	if p == "" {
		return "", nil, &SpecError{Code: ErrCodePayload, Message: "file payload has no path"}
	}
	full := r.path(rec, p)
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return full, nil, &FileNotFoundError{Path: full}
	}
	if err != nil {
		return full, nil, fmt.Errorf("stat %s: %w", full, err)
	}
	if info.IsDir() {
		return full, nil, &SpecError{Code: ErrCodeDirectory, Message: fmt.Sprintf("path %s is a directory", full)}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return full, nil, fmt.Errorf("read %s: %w", full, err)
	}
	return full, data, nil
}

// fetch retrieves a URL payload through the configured fetcher.
func (r *Resolver) fetch(ctx context.Context, url string) (*fetch.Resource, error) {
	if url == "" {
		return nil, &SpecError{Code: ErrCodePayload, Message: "remote payload has no URL"}
	}
	if r.fetcher == nil {
		return nil, &SpecError{Code: ErrCodePayload, Message: fmt.Sprintf("no fetcher configured for %s", url)}
	}
	return r.fetcher.Fetch(ctx, url)
}
