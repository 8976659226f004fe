package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphspec/internal/fetch"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

const turtle = `@prefix ex: <https://example.org/> .
ex:sub ex:pred ex:obj .
`

var (
	sub  = rdf.NewIRI("https://example.org/sub")
	pred = rdf.NewIRI("https://example.org/pred")
	obj  = rdf.NewIRI("https://example.org/obj")
)

// recordBuilder assembles records for tests.
type recordBuilder struct {
	rec *spec.Record
}

func newRecord(uri string) *recordBuilder {
	return &recordBuilder{rec: &spec.Record{URI: uri, Arena: spec.NewArena()}}
}

func (b *recordBuilder) given(n spec.Node) *recordBuilder {
	b.rec.Given = append(b.rec.Given, b.rec.Arena.Add(n))
	return b
}

func (b *recordBuilder) when(n spec.Node) *recordBuilder {
	b.rec.When = append(b.rec.When, b.rec.Arena.Add(n))
	return b
}

func (b *recordBuilder) then(n spec.Node) *recordBuilder {
	b.rec.Then = append(b.rec.Then, b.rec.Arena.Add(n))
	return b
}

func kinds(k ...spec.Kind) []spec.Kind { return k }

func requireCode(t *testing.T, err error, code ErrorCode) *SpecError {
	t.Helper()
	var se *SpecError
	require.True(t, errors.As(err, &se), "expected SpecError, got %v", err)
	assert.Equal(t, code, se.Code)
	return se
}

func TestResolveRecord_ConstructSpec(t *testing.T) {
	rec := newRecord("urn:spec:construct").
		given(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: turtle}).
		when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "construct {?o ?s ?p} {?s ?p ?o}"}).
		then(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: `@prefix ex: <https://example.org/> . ex:obj ex:sub ex:pred .`}).
		rec

	res, err := New(DefaultRegistry()).ResolveRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, res.Given.Graph.Equal(rdf.NewGraph(rdf.T(sub, pred, obj))))
	assert.Equal(t, spec.QueryConstruct, res.When.QueryKind)
	gt, ok := res.Then.(spec.GraphThen)
	require.True(t, ok)
	assert.True(t, gt.Graph.Has(rdf.T(obj, sub, pred)))

	s := res.Assemble(spec.Descriptor{Name: "mem", Type: "memory"})
	assert.Equal(t, "urn:spec:construct", s.URI)
	assert.Equal(t, "mem", s.Backend.Name)
}

func TestResolve_GivenUnionsFragments(t *testing.T) {
	rec := newRecord("urn:spec:union").
		given(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: turtle}).
		given(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: `<https://example.org/obj> <https://example.org/pred> <https://example.org/sub> .`}).
		given(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		rec

	c, err := New(DefaultRegistry()).Resolve(context.Background(), rec, spec.RoleGiven)
	require.NoError(t, err)
	assert.Equal(t, 2, c.(spec.Given).Graph.Len())
}

func TestResolve_Errors(t *testing.T) {
	r := New(DefaultRegistry())
	ctx := context.Background()

	t.Run("no type", func(t *testing.T) {
		rec := newRecord("urn:spec:untyped").given(spec.Node{Text: turtle}).rec
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		se := requireCode(t, err, ErrCodeNoType)
		assert.Contains(t, se.Error(), "node has no type")
	})

	t.Run("unregistered pair names kind and role", func(t *testing.T) {
		rec := newRecord("urn:spec:bad").when(spec.Node{Kinds: kinds(spec.KindTableDataset)}).rec
		_, err := r.Resolve(ctx, rec, spec.RoleWhen)
		se := requireCode(t, err, ErrCodeUnregistered)
		assert.Equal(t, spec.KindTableDataset, se.Kind)
		assert.Equal(t, spec.RoleWhen, se.Role)
		assert.Contains(t, se.Error(), "TableDataset")
		assert.Contains(t, se.Error(), "when")
	})

	t.Run("multiple when", func(t *testing.T) {
		rec := newRecord("urn:spec:twowhen").
			when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "SELECT * {}"}).
			when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "SELECT * {}"}).
			rec
		_, err := r.Resolve(ctx, rec, spec.RoleWhen)
		se := requireCode(t, err, ErrCodeMultipleWhen)
		assert.Contains(t, se.Error(), "multiple when-components not supported")
	})

	t.Run("multiple table then", func(t *testing.T) {
		rec := newRecord("urn:spec:twotables").
			then(spec.Node{Kinds: kinds(spec.KindEmptyTable)}).
			then(spec.Node{Kinds: kinds(spec.KindEmptyTable)}).
			rec
		_, err := r.Resolve(ctx, rec, spec.RoleThen)
		requireCode(t, err, ErrCodeMultipleTable)
	})

	t.Run("mixed then", func(t *testing.T) {
		rec := newRecord("urn:spec:mixed").
			then(spec.Node{Kinds: kinds(spec.KindEmptyTable)}).
			then(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
			rec
		_, err := r.Resolve(ctx, rec, spec.RoleThen)
		requireCode(t, err, ErrCodeMixedThen)
	})

	t.Run("missing role", func(t *testing.T) {
		_, err := r.Resolve(ctx, newRecord("urn:spec:empty").rec, spec.RoleGiven)
		requireCode(t, err, ErrCodeMissingRole)
	})

	t.Run("invalid inline turtle", func(t *testing.T) {
		rec := newRecord("urn:spec:broken").given(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: "ex:a ex:b"}).rec
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		requireCode(t, err, ErrCodePayload)
	})

	t.Run("inherited combined with data", func(t *testing.T) {
		rec := newRecord("urn:spec:inh").
			given(spec.Node{Kinds: kinds(spec.KindInheritedDataset)}).
			given(spec.Node{Kinds: kinds(spec.KindStatementsDataset), Text: turtle}).
			rec
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		requireCode(t, err, ErrCodePayload)
	})

	t.Run("no fetcher", func(t *testing.T) {
		rec := newRecord("urn:spec:http").given(spec.Node{Kinds: kinds(spec.KindHTTPDataset), URL: "https://example.org/x.ttl"}).rec
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		requireCode(t, err, ErrCodePayload)
	})
}

func TestResolveRecord_IncompatibleShapes(t *testing.T) {
	rec := newRecord("urn:spec:incompatible").
		given(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "SELECT * { ?s ?p ?o }"}).
		then(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		rec

	_, err := New(DefaultRegistry()).ResolveRecord(context.Background(), rec)
	se := requireCode(t, err, ErrCodeIncompatible)
	assert.Equal(t, "urn:spec:incompatible", se.Subject)
}

func TestResolveRecord_DeclaredQueryKindWins(t *testing.T) {
	rec := newRecord("urn:spec:declared").
		given(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "INSERT DATA { <a:x> <a:y> <a:z> }", Query: "update"}).
		then(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		rec

	res, err := New(DefaultRegistry()).ResolveRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, spec.QueryUpdate, res.When.QueryKind)
}

func TestResolveRecord_MalformedQueryFollowsExpectation(t *testing.T) {
	rec := newRecord("urn:spec:malformed").
		given(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).
		when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "SELEKT nonsense"}).
		then(spec.Node{Kinds: kinds(spec.KindEmptyTable)}).
		rec

	res, err := New(DefaultRegistry()).ResolveRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, spec.QuerySelect, res.When.QueryKind)
	assert.Equal(t, "SELEKT nonsense", res.When.QueryText)
}

func TestResolve_WhenBindingsAreCopied(t *testing.T) {
	b := map[string]rdf.Term{"s": sub}
	rec := newRecord("urn:spec:bind").
		when(spec.Node{Kinds: kinds(spec.KindTextSparqlSource), Text: "SELECT * { ?s ?p ?o }", Bindings: b}).
		rec

	c, err := New(DefaultRegistry()).Resolve(context.Background(), rec, spec.RoleWhen)
	require.NoError(t, err)
	w := c.(spec.When)
	assert.Equal(t, rdf.Binding{"s": sub}, w.Bindings)

	b["s"] = obj
	assert.Equal(t, sub, w.Bindings["s"])
}

func TestResolve_WrongComponentTypeIsInternal(t *testing.T) {
	reg := NewRegistry()
	reg.Register(spec.KindEmptyGraph, spec.RoleGiven, func(context.Context, *Resolver, *spec.Record, *spec.Node) (spec.Component, error) {
		return spec.When{QueryText: "SELECT * {}"}, nil
	})
	rec := newRecord("urn:spec:internal").given(spec.Node{Kinds: kinds(spec.KindEmptyGraph)}).rec

	_, err := New(reg).Resolve(context.Background(), rec, spec.RoleGiven)
	assert.True(t, IsInternalError(err))
}

func TestResolve_FilePayloads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "given.ttl"), []byte(turtle), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "given.nt"), []byte("<https://example.org/obj> <https://example.org/pred> <https://example.org/sub> .\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query.rq"), []byte("SELECT ?s { ?s ?p ?o }"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.ttl"), 0o755))

	rec := newRecord("urn:spec:files").
		given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: "given.ttl"}).
		given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: filepath.Join(dir, "given.nt")}).
		when(spec.Node{Kinds: kinds(spec.KindFileSparqlSource), Path: "query.rq"}).
		rec
	rec.Source = filepath.Join(dir, "specs.yaml")

	r := New(DefaultRegistry())
	ctx := context.Background()

	c, err := r.Resolve(ctx, rec, spec.RoleGiven)
	require.NoError(t, err)
	assert.Equal(t, 2, c.(spec.Given).Graph.Len())

	c, err = r.Resolve(ctx, rec, spec.RoleWhen)
	require.NoError(t, err)
	assert.Equal(t, spec.QuerySelect, c.(spec.When).QueryKind)

	t.Run("base dir overrides record directory", func(t *testing.T) {
		rec := newRecord("urn:spec:base").given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: "given.ttl"}).rec
		rec.Source = "/elsewhere/specs.yaml"
		_, err := New(DefaultRegistry(), WithBaseDir(dir)).Resolve(ctx, rec, spec.RoleGiven)
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := newRecord("urn:spec:missing").given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: "nope.ttl"}).rec
		rec.Source = filepath.Join(dir, "specs.yaml")
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		assert.True(t, IsFileNotFound(err), "got %v", err)
	})

	t.Run("directory", func(t *testing.T) {
		rec := newRecord("urn:spec:dir").given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: "folder.ttl"}).rec
		rec.Source = filepath.Join(dir, "specs.yaml")
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		requireCode(t, err, ErrCodeDirectory)
	})

	t.Run("unknown extension", func(t *testing.T) {
		rec := newRecord("urn:spec:ext").given(spec.Node{Kinds: kinds(spec.KindFileDataset), Path: "given.rdf"}).rec
		_, err := r.Resolve(ctx, rec, spec.RoleGiven)
		requireCode(t, err, ErrCodeUnsupportedFormat)
	})
}

type staticFetcher map[string]*fetch.Resource

func (f staticFetcher) Fetch(_ context.Context, url string) (*fetch.Resource, error) {
	if res, ok := f[url]; ok {
		return res, nil
	}
	return nil, errors.New("not found")
}

func TestResolve_URLPayloads(t *testing.T) {
	f := staticFetcher{
		"https://example.org/given":       {Body: []byte(turtle), MediaType: "text/turtle"},
		"https://example.org/data.nt?x=1": {Body: []byte("<https://example.org/a> <https://example.org/b> <https://example.org/c> .\n")},
		"https://example.org/query":       {Body: []byte("CONSTRUCT WHERE { ?s ?p ?o }")},
		"https://example.org/blob":        {Body: []byte("..."), MediaType: "application/octet-stream"},
	}
	r := New(DefaultRegistry(), WithFetcher(f))
	ctx := context.Background()

	rec := newRecord("urn:spec:http").
		given(spec.Node{Kinds: kinds(spec.KindHTTPDataset), URL: "https://example.org/given"}).
		given(spec.Node{Kinds: kinds(spec.KindHTTPDataset), URL: "https://example.org/data.nt?x=1"}).
		when(spec.Node{Kinds: kinds(spec.KindHTTPSparqlSource), URL: "https://example.org/query"}).
		rec

	c, err := r.Resolve(ctx, rec, spec.RoleGiven)
	require.NoError(t, err)
	assert.Equal(t, 2, c.(spec.Given).Graph.Len())

	c, err = r.Resolve(ctx, rec, spec.RoleWhen)
	require.NoError(t, err)
	assert.Equal(t, spec.QueryConstruct, c.(spec.When).QueryKind)

	bad := newRecord("urn:spec:blob").given(spec.Node{Kinds: kinds(spec.KindHTTPDataset), URL: "https://example.org/blob"}).rec
	_, err = r.Resolve(ctx, bad, spec.RoleGiven)
	requireCode(t, err, ErrCodeUnsupportedFormat)

	fail := newRecord("urn:spec:fail").given(spec.Node{Kinds: kinds(spec.KindHTTPDataset), URL: "https://example.org/down"}).rec
	_, err = r.Resolve(ctx, fail, spec.RoleGiven)
	requireCode(t, err, ErrCodePayload)
}

func TestRegistryKeys(t *testing.T) {
	keys := DefaultRegistry().Keys()
	assert.Contains(t, keys, Key{Kind: spec.KindInheritedDataset, Role: spec.RoleGiven})
	assert.NotContains(t, keys, Key{Kind: spec.KindInheritedDataset, Role: spec.RoleThen})
	assert.Equal(t, spec.RoleGiven, keys[0].Role)
}
