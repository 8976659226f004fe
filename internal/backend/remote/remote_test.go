package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/credentials"
	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/sparql"
	"github.com/roach88/graphspec/internal/spec"
)

const ex = "https://example.org/"

var (
	sub  = rdf.NewIRI(ex + "sub")
	pred = rdf.NewIRI(ex + "pred")
	obj  = rdf.NewIRI(ex + "obj")
)

// endpoint is a SPARQL protocol server backed by the in-process evaluator.
// It serves the default graph only and records every request.
type endpoint struct {
	t *testing.T

	mu       sync.Mutex
	graph    *rdf.Graph
	requests []request
	status   int
}

type request struct {
	ContentType string
	Accept      string
	Body        string
	Form        url.Values
	User        string
	Password    string
}

func newEndpoint(t *testing.T) (*endpoint, *httptest.Server) {
	e := &endpoint{t: t, graph: rdf.NewGraph()}
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return e, srv
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	req := request{ContentType: r.Header.Get("Content-Type"), Accept: r.Header.Get("Accept"), Body: string(body)}
	req.User, req.Password, _ = r.BasicAuth()
	if req.ContentType == mediaForm {
		req.Form, _ = url.ParseQuery(string(body))
	}
	e.requests = append(e.requests, req)

	if e.status != 0 {
		http.Error(w, "forced failure", e.status)
		return
	}

	text := req.Body
	if req.Form != nil {
		text = req.Form.Get("query")
	}
	if strings.Contains(text, "GRAPH <") {
		// Named graphs are only checked for request shape.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	q, err := sparql.Parse(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch q := q.(type) {
	case *sparql.Update:
		e.graph = sparql.ApplyUpdate(e.graph, q, nil)
		w.WriteHeader(http.StatusNoContent)
	case *sparql.SelectQuery:
		w.Header().Set("Content-Type", sparql.ResultsMediaType)
		assert.NoError(e.t, sparql.EncodeResults(w, sparql.EvalSelect(e.graph, q, nil)))
	case *sparql.ConstructQuery:
		w.Header().Set("Content-Type", "application/n-triples")
		_, _ = io.WriteString(w, sparql.EvalConstruct(e.graph, q, nil).NTriples())
	}
}

func (e *endpoint) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, r := range e.requests {
		if r.Form != nil {
			out = append(out, "query: "+r.Form.Get("query"))
			continue
		}
		out = append(out, r.Body)
	}
	return out
}

func descFor(srv *httptest.Server, extra map[string]string) spec.Descriptor {
	cfg := map[string]string{"query_endpoint": srv.URL + "/query", "update_endpoint": srv.URL + "/update"}
	for k, v := range extra {
		cfg[k] = v
	}
	return spec.Descriptor{Name: "store", Type: Type, Config: cfg}
}

func given(ts ...rdf.Triple) spec.Given {
	return spec.Given{Graph: rdf.NewGraph(ts...)}
}

func TestSelect_SeedsRunsAndClears(t *testing.T) {
	e, srv := newEndpoint(t)
	b := New(nil)

	res, err := b.Select(context.Background(), descFor(srv, nil), given(rdf.T(sub, pred, obj)),
		"SELECT ?s ?p ?o WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, sub, res.Rows[0]["s"])

	bodies := e.bodies()
	require.Len(t, bodies, 4)
	assert.Equal(t, "CLEAR SILENT DEFAULT", bodies[0])
	assert.Contains(t, bodies[1], "INSERT DATA {")
	assert.Contains(t, bodies[1], rdf.T(sub, pred, obj).String())
	assert.Equal(t, "query: SELECT ?s ?p ?o WHERE { ?s ?p ?o }", bodies[2])
	assert.Equal(t, "CLEAR SILENT DEFAULT", bodies[3])
	assert.Equal(t, 0, e.graph.Len(), "store is left empty")
	assert.Equal(t, sparql.ResultsMediaType, e.requests[2].Accept)
}

func TestSelect_BindingsBecomeValues(t *testing.T) {
	e, srv := newEndpoint(t)
	b := New(nil)

	_, err := b.Select(context.Background(), descFor(srv, nil), given(),
		"SELECT ?s WHERE { ?s ?p ?o }", rdf.Binding{"o": obj})
	require.NoError(t, err)
	q := e.requests[1].Form.Get("query")
	assert.Contains(t, q, "VALUES (?o) { (<https://example.org/obj>) }")
}

func TestSelect_BlankBindingIsUnsupported(t *testing.T) {
	_, srv := newEndpoint(t)
	_, err := New(nil).Select(context.Background(), descFor(srv, nil), given(),
		"SELECT ?s WHERE { ?s ?p ?o }", rdf.Binding{"o": rdf.NewBlank("b")})
	assert.True(t, backend.IsUnsupportedError(err), "got %v", err)
}

func TestConstruct(t *testing.T) {
	_, srv := newEndpoint(t)
	g, err := New(nil).Construct(context.Background(), descFor(srv, nil), given(rdf.T(sub, pred, obj)),
		"CONSTRUCT { ?o ?p ?s } WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.True(t, g.Equal(rdf.NewGraph(rdf.T(obj, pred, sub))))
}

func TestUpdate_ReadsBackState(t *testing.T) {
	e, srv := newEndpoint(t)
	g, err := New(nil).Update(context.Background(), descFor(srv, nil), given(rdf.T(sub, pred, obj)),
		`INSERT DATA { <https://example.org/sub> <https://example.org/pred> "new" }`, nil)
	require.NoError(t, err)
	assert.True(t, g.Equal(rdf.NewGraph(rdf.T(sub, pred, obj), rdf.T(sub, pred, rdf.NewLiteral("new")))))
	assert.Equal(t, 0, e.graph.Len())
}

func TestUpdate_Unsupported(t *testing.T) {
	e, srv := newEndpoint(t)
	b := New(nil)

	_, err := b.Update(context.Background(), descFor(srv, nil), given(), "CLEAR DEFAULT", rdf.Binding{"s": sub})
	assert.True(t, backend.IsUnsupportedError(err))

	_, err = b.Update(context.Background(), descFor(srv, map[string]string{"graph": ex + "g"}), given(), "CLEAR DEFAULT", nil)
	assert.True(t, backend.IsUnsupportedError(err))
	assert.Empty(t, e.bodies(), "nothing is sent for unsupported updates")
}

func TestNamedGraph_RequestShape(t *testing.T) {
	e, srv := newEndpoint(t)
	desc := descFor(srv, map[string]string{"graph": ex + "g"})
	_, err := New(nil).Select(context.Background(), desc, given(rdf.T(sub, pred, obj)), "SELECT * WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)

	bodies := e.bodies()
	require.Len(t, bodies, 4)
	assert.Equal(t, "CLEAR SILENT GRAPH <https://example.org/g>", bodies[0])
	assert.Contains(t, bodies[1], "GRAPH <https://example.org/g> {")
	assert.Equal(t, ex+"g", e.requests[2].Form.Get("default-graph-uri"))
	assert.Equal(t, "CLEAR SILENT GRAPH <https://example.org/g>", bodies[len(bodies)-1])
}

func TestInheritedGiven_NoSeedOrClear(t *testing.T) {
	e, srv := newEndpoint(t)
	e.graph = rdf.NewGraph(rdf.T(sub, pred, obj))

	res, err := New(nil).Select(context.Background(), descFor(srv, nil), spec.Given{Inherited: true},
		"SELECT ?s WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Len(t, e.bodies(), 1)
	assert.Equal(t, 1, e.graph.Len())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusBadRequest, backend.IsParseError},
		{http.StatusUnauthorized, backend.IsConnectionError},
		{http.StatusForbidden, backend.IsConnectionError},
		{http.StatusInternalServerError, func(err error) bool {
			return err != nil && !backend.IsParseError(err) && !backend.IsConnectionError(err)
		}},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			e, srv := newEndpoint(t)
			e.status = tc.status
			_, err := New(nil).Select(context.Background(), descFor(srv, nil), given(), "SELECT * WHERE { ?s ?p ?o }", nil)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestSyntaxErrorFromEndpoint(t *testing.T) {
	_, srv := newEndpoint(t)
	_, err := New(nil).Select(context.Background(), descFor(srv, nil), given(), "SELECT ?s WHERE { ?s", nil)
	assert.True(t, backend.IsParseError(err), "got %v", err)
}

func TestTransportFailure(t *testing.T) {
	_, srv := newEndpoint(t)
	desc := descFor(srv, nil)
	srv.Close()
	_, err := New(nil).Select(context.Background(), desc, given(), "SELECT * WHERE { ?s ?p ?o }", nil)
	assert.True(t, backend.IsConnectionError(err), "got %v", err)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	desc := descFor(srv, map[string]string{"timeout": "20ms"})
	_, err := New(nil).Select(context.Background(), spec.Descriptor{Name: desc.Name, Type: Type, Config: desc.Config},
		spec.Given{Inherited: true}, "SELECT * WHERE { ?s ?p ?o }", nil)
	assert.True(t, backend.IsConnectionError(err), "got %v", err)
}

func TestResponseTooLarge(t *testing.T) {
	e, srv := newEndpoint(t)
	e.graph = rdf.NewGraph(rdf.T(sub, pred, obj))
	q := "SELECT * WHERE { ?s ?p ?o }"

	_, err := New(nil, WithMaxResponseBytes(16)).Select(context.Background(), descFor(srv, nil), spec.Given{Inherited: true}, q, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.False(t, backend.IsParseError(err))
	assert.False(t, backend.IsConnectionError(err))

	id := outcome.Identity{SpecURI: ex + "spec", Backend: "store"}
	assert.Equal(t, outcome.StatusExecutionError, backend.Classify(id, err).Status())

	res, err := New(nil).Select(context.Background(), descFor(srv, nil), spec.Given{Inherited: true}, q, nil)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestBasicAuth(t *testing.T) {
	e, srv := newEndpoint(t)
	b := New(credentials.Static{"STORE_PASSWORD": "s3cret"})
	desc := descFor(srv, map[string]string{"username": "alice", "password_key": "STORE_PASSWORD"})
	_, err := b.Select(context.Background(), desc, spec.Given{Inherited: true}, "SELECT * WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.requests[0].User)
	assert.Equal(t, "s3cret", e.requests[0].Password)
}

func TestParseConfig(t *testing.T) {
	b := New(credentials.Static{})

	_, err := b.ParseConfig(spec.Descriptor{Type: Type})
	assert.ErrorContains(t, err, "query_endpoint is required")

	cfg, err := b.ParseConfig(spec.Descriptor{Type: Type, Config: map[string]string{"query_endpoint": "http://q"}})
	require.NoError(t, err)
	assert.Equal(t, "http://q", cfg.UpdateEndpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)

	_, err = b.ParseConfig(spec.Descriptor{Type: Type, Config: map[string]string{"query_endpoint": "http://q", "timeout": "soon"}})
	assert.ErrorContains(t, err, "invalid timeout")

	_, err = b.ParseConfig(spec.Descriptor{Type: Type, Config: map[string]string{"query_endpoint": "http://q", "password_key": "MISSING"}})
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestCleanupRunsAfterCancellation(t *testing.T) {
	e, srv := newEndpoint(t)
	ctx, cancel := context.WithCancel(context.Background())
	b := New(nil)
	err := b.acquire(ctx, Config{QueryEndpoint: srv.URL, UpdateEndpoint: srv.URL, Timeout: time.Second}, given(rdf.T(sub, pred, obj)), func() error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	bodies := e.bodies()
	assert.Equal(t, "CLEAR SILENT DEFAULT", bodies[len(bodies)-1])
	assert.Equal(t, 0, e.graph.Len())
}
