// Package remote runs specifications against a SPARQL 1.1 protocol
// endpoint over HTTP.
//
// A remote store is shared state, so every execution acquires it for its
// whole duration: the target graph is cleared and seeded with the given
// triples, the operation runs, and the graph is cleared again. The
// dispatcher serializes executions per configured instance.
//
// Configuration keys:
//
//	query_endpoint   required; SPARQL query endpoint URL
//	update_endpoint  SPARQL update endpoint URL (defaults to query_endpoint)
//	graph            named graph to seed; the default graph when empty
//	username         HTTP basic auth user
//	password_key     credential name looked up for the basic auth password
//	timeout          per-request timeout as a Go duration (default 30s)
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/credentials"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

// Type is the backend type tag.
const Type = "remote"

// DefaultTimeout bounds each HTTP request when the config sets none.
const DefaultTimeout = 30 * time.Second

// DefaultMaxResponseBytes bounds a response body.
const DefaultMaxResponseBytes = 32 << 20

// ErrResponseTooLarge is returned when an endpoint's response exceeds the
// configured size bound.
var ErrResponseTooLarge = errors.New("response too large")

const (
	mediaSPARQLUpdate = "application/sparql-update"
	mediaForm         = "application/x-www-form-urlencoded"
	acceptGraph       = "application/n-triples, text/turtle;q=0.9"
)

// Backend talks to SPARQL endpoints described by per-instance config.
type Backend struct {
	creds   credentials.Lookup
	client  *http.Client
	logger  *slog.Logger
	maxBody int64
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithMaxResponseBytes bounds response bodies. Larger responses fail with
// ErrResponseTooLarge.
func WithMaxResponseBytes(n int64) Option {
	return func(b *Backend) { b.maxBody = n }
}

// New creates a remote backend. creds resolves password_key; it may be nil
// when no instance uses authentication.
func New(creds credentials.Lookup, opts ...Option) *Backend {
	b := &Backend{
		creds:   creds,
		client:  http.DefaultClient,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBody: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ backend.Backend = (*Backend)(nil)

// Stateful reports true.
func (*Backend) Stateful() bool { return true }

// Config is the parsed per-instance configuration.
type Config struct {
	QueryEndpoint  string
	UpdateEndpoint string
	Graph          string
	Username       string
	Password       string
	Timeout        time.Duration
}

// ParseConfig validates desc.Config and resolves credentials.
func (b *Backend) ParseConfig(desc spec.Descriptor) (Config, error) {
	c := Config{
		QueryEndpoint:  desc.Config["query_endpoint"],
		UpdateEndpoint: desc.Config["update_endpoint"],
		Graph:          desc.Config["graph"],
		Username:       desc.Config["username"],
		Timeout:        DefaultTimeout,
	}
	if c.QueryEndpoint == "" {
		return c, fmt.Errorf("backend %s: query_endpoint is required", desc.Label())
	}
	if c.UpdateEndpoint == "" {
		c.UpdateEndpoint = c.QueryEndpoint
	}
	if raw := desc.Config["timeout"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c, fmt.Errorf("backend %s: invalid timeout %q", desc.Label(), raw)
		}
		c.Timeout = d
	}
	if key := desc.Config["password_key"]; key != "" {
		if b.creds == nil {
			return c, fmt.Errorf("backend %s: password_key set but no credential source configured", desc.Label())
		}
		pw, err := b.creds.Lookup(key)
		if err != nil {
			return c, fmt.Errorf("backend %s: password %s: %w", desc.Label(), key, err)
		}
		c.Password = pw
	}
	return c, nil
}

// Select runs a SELECT query against the seeded graph.
func (b *Backend) Select(ctx context.Context, desc spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*sparql.Results, error) {
	cfg, err := b.ParseConfig(desc)
	if err != nil {
		return nil, err
	}
	q, err := sparql.WithValues(query, bindings)
	if err != nil {
		return nil, &backend.UnsupportedError{Operation: "select", Reason: err.Error()}
	}
	var res *sparql.Results
	err = b.acquire(ctx, cfg, given, func() error {
		body, _, err := b.query(ctx, cfg, q, sparql.ResultsMediaType)
		if err != nil {
			return err
		}
		res, err = sparql.DecodeResults(bytes.NewReader(body))
		return err
	})
	return res, err
}

// Construct runs a CONSTRUCT query against the seeded graph.
func (b *Backend) Construct(ctx context.Context, desc spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	cfg, err := b.ParseConfig(desc)
	if err != nil {
		return nil, err
	}
	q, err := sparql.WithValues(query, bindings)
	if err != nil {
		return nil, &backend.UnsupportedError{Operation: "construct", Reason: err.Error()}
	}
	var g *rdf.Graph
	err = b.acquire(ctx, cfg, given, func() error {
		g, err = b.constructGraph(ctx, cfg, q)
		return err
	})
	return g, err
}

// Update applies an update and reads back the resulting default graph.
//
// Updates cannot be rewritten to target a named graph or to carry initial
// bindings without changing their meaning, so both are reported as
// unsupported.
func (b *Backend) Update(ctx context.Context, desc spec.Descriptor, given spec.Given, query string, bindings rdf.Binding) (*rdf.Graph, error) {
	cfg, err := b.ParseConfig(desc)
	if err != nil {
		return nil, err
	}
	if len(bindings) > 0 {
		return nil, &backend.UnsupportedError{Operation: "update", Reason: "initial bindings cannot be sent with an update request"}
	}
	if cfg.Graph != "" {
		return nil, &backend.UnsupportedError{Operation: "update", Reason: "updates against a named graph are not supported"}
	}
	var g *rdf.Graph
	err = b.acquire(ctx, cfg, given, func() error {
		if err := b.update(ctx, cfg, query); err != nil {
			return err
		}
		g, err = b.constructGraph(ctx, cfg, "CONSTRUCT WHERE { ?s ?p ?o }")
		return err
	})
	return g, err
}

// acquire seeds the target graph, runs fn and always clears the graph
// afterwards, even when ctx is cancelled. Inherited givens run against the
// store as-is.
func (b *Backend) acquire(ctx context.Context, cfg Config, given spec.Given, fn func() error) error {
	if given.Inherited {
		return fn()
	}
	if err := b.update(ctx, cfg, clearStatement(cfg.Graph)); err != nil {
		return err
	}
	defer func() {
		cleanup := context.WithoutCancel(ctx)
		if err := b.update(cleanup, cfg, clearStatement(cfg.Graph)); err != nil {
			b.logger.Warn("failed to clear graph after execution", "endpoint", cfg.UpdateEndpoint, "graph", cfg.Graph, "error", err)
		}
	}()
	if given.Graph != nil && given.Graph.Len() > 0 {
		if err := b.update(ctx, cfg, insertStatement(cfg.Graph, given.Graph)); err != nil {
			return err
		}
	}
	return fn()
}

func clearStatement(graph string) string {
	if graph == "" {
		return "CLEAR SILENT DEFAULT"
	}
	return fmt.Sprintf("CLEAR SILENT GRAPH <%s>", graph)
}

func insertStatement(graph string, g *rdf.Graph) string {
	var sb strings.Builder
	sb.WriteString("INSERT DATA {\n")
	if graph != "" {
		fmt.Fprintf(&sb, "GRAPH <%s> {\n", graph)
	}
	for _, t := range g.Triples() {
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	if graph != "" {
		sb.WriteString("}\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func (b *Backend) constructGraph(ctx context.Context, cfg Config, query string) (*rdf.Graph, error) {
	body, ct, err := b.query(ctx, cfg, query, acceptGraph)
	if err != nil {
		return nil, err
	}
	f, ok := rdf.FormatForMediaType(ct)
	if !ok {
		f = rdf.FormatNTriples
	}
	return rdf.Parse(bytes.NewReader(body), f)
}

func (b *Backend) query(ctx context.Context, cfg Config, query, accept string) ([]byte, string, error) {
	form := url.Values{"query": {query}}
	if cfg.Graph != "" {
		form.Set("default-graph-uri", cfg.Graph)
	}
	return b.post(ctx, cfg, cfg.QueryEndpoint, mediaForm, form.Encode(), accept)
}

func (b *Backend) update(ctx context.Context, cfg Config, stmt string) error {
	_, _, err := b.post(ctx, cfg, cfg.UpdateEndpoint, mediaSPARQLUpdate, stmt, "*/*")
	return err
}

func (b *Backend) post(ctx context.Context, cfg Config, endpoint, contentType, body, accept string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, "", &backend.ConnectionError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", accept)
	if cfg.Username != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	b.logger.Debug("sparql request", "endpoint", endpoint, "content_type", contentType)
	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", &backend.ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("timed out after %s: %w", cfg.Timeout, err)}
		}
		return nil, "", &backend.ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBody+1))
	if err != nil {
		return nil, "", &backend.ConnectionError{Endpoint: endpoint, Err: err}
	}
	if int64(len(data)) > b.maxBody {
		return nil, "", fmt.Errorf("%s: %w: more than %d bytes", endpoint, ErrResponseTooLarge, b.maxBody)
	}
	if err := statusError(endpoint, resp.StatusCode, data); err != nil {
		return nil, "", err
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, mt, nil
}

func statusError(endpoint string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	err := fmt.Errorf("%s: HTTP %d: %s", endpoint, code, msg)
	switch {
	case code == http.StatusBadRequest:
		return &backend.ParseError{Err: err}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return &backend.ConnectionError{Endpoint: endpoint, Err: err}
	}
	return err
}
