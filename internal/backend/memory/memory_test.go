package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

const ex = "https://example.org/"

var (
	sub  = rdf.NewIRI(ex + "sub")
	pred = rdf.NewIRI(ex + "pred")
	obj  = rdf.NewIRI(ex + "obj")
	desc = spec.Descriptor{Type: Type}
)

func given(ts ...rdf.Triple) spec.Given {
	return spec.Given{Graph: rdf.NewGraph(ts...)}
}

func TestSelect(t *testing.T) {
	b := New()
	res, err := b.Select(context.Background(), desc, given(rdf.T(sub, pred, obj)),
		"SELECT ?s ?p ?o WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"s", "p", "o"}, res.Vars)
	assert.Equal(t, obj, res.Rows[0]["o"])
}

func TestSelect_InitialBindings(t *testing.T) {
	other := rdf.NewIRI(ex + "other")
	b := New()
	res, err := b.Select(context.Background(), desc,
		given(rdf.T(sub, pred, obj), rdf.T(other, pred, obj)),
		"SELECT ?s WHERE { ?s ?p ?o }", rdf.Binding{"s": other})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, other, res.Rows[0]["s"])
}

func TestConstruct(t *testing.T) {
	b := New()
	g, err := b.Construct(context.Background(), desc, given(rdf.T(sub, pred, obj)),
		"CONSTRUCT { ?o ?p ?s } WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.True(t, g.Equal(rdf.NewGraph(rdf.T(obj, pred, sub))))
}

func TestUpdate_DoesNotMutateGiven(t *testing.T) {
	b := New()
	in := given(rdf.T(sub, pred, obj))
	g, err := b.Update(context.Background(), desc, in,
		"DELETE { ?s ?p ?o } INSERT { ?s ?p \"x\" } WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.True(t, g.Equal(rdf.NewGraph(rdf.T(sub, pred, rdf.NewLiteral("x")))))
	assert.True(t, in.Graph.Equal(rdf.NewGraph(rdf.T(sub, pred, obj))))
}

func TestInheritedGivenStartsEmpty(t *testing.T) {
	b := New()
	res, err := b.Select(context.Background(), desc,
		spec.Given{Graph: rdf.NewGraph(rdf.T(sub, pred, obj)), Inherited: true},
		"SELECT ?s WHERE { ?s ?p ?o }", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestErrors(t *testing.T) {
	b := New()
	ctx := context.Background()

	_, err := b.Select(ctx, desc, given(), "SELECT ?s WHERE { ?s ?p", nil)
	assert.True(t, backend.IsParseError(err), "got %v", err)

	_, err = b.Select(ctx, desc, given(), "SELECT ?s WHERE { ?s ?p ?o OPTIONAL { ?s ?p ?x } }", nil)
	assert.True(t, backend.IsUnsupportedError(err), "got %v", err)

	_, err = b.Construct(ctx, desc, given(), "SELECT ?s WHERE { ?s ?p ?o }", nil)
	require.Error(t, err)
	assert.False(t, backend.IsParseError(err))
	assert.False(t, backend.IsUnsupportedError(err))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Select(ctx, desc, given(), "SELECT * WHERE { ?s ?p ?o }", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
