package sparql

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphspec/internal/rdf"
)

func TestDecodeResults(t *testing.T) {
	doc := `{
  "head": {"vars": ["s", "label", "n", "b"]},
  "results": {"bindings": [
    {"s": {"type": "uri", "value": "https://example.org/s"},
     "label": {"type": "literal", "value": "chat", "xml:lang": "FR"},
     "n": {"type": "typed-literal", "value": "1", "datatype": "http://www.w3.org/2001/XMLSchema#integer"},
     "b": {"type": "bnode", "value": "x1"}},
    {"s": {"type": "uri", "value": "https://example.org/t"}}
  ]}
}`
	res, err := DecodeResults(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "label", "n", "b"}, res.Vars)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, rdf.NewLangLiteral("chat", "fr"), res.Rows[0]["label"])
	assert.Equal(t, rdf.NewTypedLiteral("1", rdf.XSDInteger), res.Rows[0]["n"])
	assert.Equal(t, rdf.NewBlank("x1"), res.Rows[0]["b"])
	assert.NotContains(t, res.Rows[1], "label")
}

func TestDecodeResults_Errors(t *testing.T) {
	_, err := DecodeResults(strings.NewReader(`{"head": {}, "boolean": true}`))
	assert.True(t, IsUnsupportedError(err))

	_, err = DecodeResults(strings.NewReader(`{"head": {"vars": ["x"]}, "results": {"bindings": [{"x": {"type": "weird", "value": "1"}}]}}`))
	assert.Error(t, err)

	_, err = DecodeResults(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestEncodeResults_RoundTrip(t *testing.T) {
	in := &Results{
		Vars: []string{"s", "o"},
		Rows: []rdf.Binding{
			{"s": rdf.NewIRI(ex + "s"), "o": rdf.NewLiteral("plain")},
			{"s": rdf.NewBlank("b"), "o": rdf.NewTypedLiteral("2", rdf.XSDInteger)},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeResults(&buf, in))

	out, err := DecodeResults(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWithValues(t *testing.T) {
	q, err := WithValues("SELECT * { ?s ?p ?o }\n", rdf.Binding{
		"s": rdf.NewIRI(ex + "s"),
		"o": rdf.NewLiteral("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * { ?s ?p ?o }\nVALUES (?o ?s) { (\"x\" <https://example.org/s>) }\n", q)

	same, err := WithValues("SELECT * {}", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * {}", same)

	_, err = WithValues("SELECT * {}", rdf.Binding{"b": rdf.NewBlank("x")})
	assert.Error(t, err)
}
