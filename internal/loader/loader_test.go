package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

const yamlSpecs = `
specs:
  - uri: https://example.org/specs/select
    given:
      - kind: StatementsDataset
        text: |
          @prefix ex: <https://example.org/> .
          ex:sub ex:pred ex:obj .
    when:
      - kind: TextSparqlSource
        text: SELECT ?s WHERE { ?s ?p ?o }
        bindings:
          o: "<https://example.org/obj>"
    then:
      - kind: [TableDataset]
        rows:
          - index: 2
            bindings:
              s: "<https://example.org/sub>"
          - index: 1
            rows:
              - bindings: {s: plain}
  - uri: https://example.org/specs/file
    given:
      - kind: FileDataset
        path: data/given.ttl
    when:
      - kind: FileSparqlSource
        path: query.rq
        query: construct
    then:
      - kind: EmptyGraph
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFile_YAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "specs.yaml", yamlSpecs)

	recs, err := LoadFile(p)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	rec := recs[0]
	assert.Equal(t, "https://example.org/specs/select", rec.URI)
	assert.Equal(t, p, rec.Source)
	require.Len(t, rec.When, 1)

	when, err := rec.Arena.Node(rec.When[0])
	require.NoError(t, err)
	assert.Equal(t, []spec.Kind{spec.KindTextSparqlSource}, when.Kinds)
	assert.Equal(t, rdf.NewIRI("https://example.org/obj"), when.Bindings["o"])

	then, err := rec.Arena.Node(rec.Then[0])
	require.NoError(t, err)
	assert.Equal(t, []spec.Kind{spec.KindTableDataset}, then.Kinds)
	require.Len(t, then.Rows, 2)

	first, err := rec.Arena.Node(then.Rows[0])
	require.NoError(t, err)
	require.NotNil(t, first.Ordinal)
	assert.Equal(t, 2, *first.Ordinal)
	assert.Equal(t, rdf.NewIRI("https://example.org/sub"), first.Bindings["s"])

	group, err := rec.Arena.Node(then.Rows[1])
	require.NoError(t, err)
	require.Len(t, group.Rows, 1)
	leaf, err := rec.Arena.Node(group.Rows[0])
	require.NoError(t, err)
	assert.Nil(t, leaf.Ordinal)
	assert.Equal(t, rdf.NewLiteral("plain"), leaf.Bindings["s"])

	file, err := recs[1].Arena.Node(recs[1].When[0])
	require.NoError(t, err)
	assert.Equal(t, "query.rq", file.Path)
	assert.Equal(t, "construct", file.Query)
}

func TestLoadFile_UnknownFieldRejected(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.yaml", "specs:\n  - uri: x\n    gven: []\n")
	_, err := LoadFile(p)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParseFailed, le.Code)
}

func TestLoadFile_MissingURI(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.yaml", "specs:\n  - given: []\n")
	_, err := LoadFile(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalid, le.Code)
	assert.Contains(t, le.Error(), "specs[0]: uri is required")
}

func TestLoadFile_BadTerm(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.yaml", `
specs:
  - uri: x
    when:
      - kind: TextSparqlSource
        bindings: {s: "<unterminated"}
`)
	_, err := LoadFile(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeTerm, le.Code)
	assert.Contains(t, le.Message, "specs[0].when[0].bindings.s")
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	p := writeFile(t, t.TempDir(), "specs.toml", "")
	_, err := LoadFile(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeFormat, le.Code)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadFile_CUE(t *testing.T) {
	p := writeFile(t, t.TempDir(), "specs.cue", `
#ex: "https://example.org/"

#given: {
	kind: "StatementsDataset"
	text: "<\(#ex)sub> <\(#ex)pred> <\(#ex)obj> ."
}

specs: [{
	uri: #ex + "specs/cue"
	given: [#given]
	when: [{kind: "TextSparqlSource", text: "SELECT ?s WHERE { ?s ?p ?o }"}]
	then: [{
		kind: ["TableDataset"]
		rows: [{index: 1, bindings: {s: "<\(#ex)sub>"}}]
	}]
}]
`)
	recs, err := LoadFile(p)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example.org/specs/cue", recs[0].URI)

	given, err := recs[0].Arena.Node(recs[0].Given[0])
	require.NoError(t, err)
	assert.Equal(t, "<https://example.org/sub> <https://example.org/pred> <https://example.org/obj> .", given.Text)

	then, err := recs[0].Arena.Node(recs[0].Then[0])
	require.NoError(t, err)
	row, err := recs[0].Arena.Node(then.Rows[0])
	require.NoError(t, err)
	require.NotNil(t, row.Ordinal)
	assert.Equal(t, 1, *row.Ordinal)
}

func TestLoadFile_CUEErrorHasPosition(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.cue", "specs: [{uri: 1 & \"x\"}]\n")
	_, err := LoadFile(p)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParseFailed, le.Code)
	assert.True(t, le.Pos.IsValid())
}

func TestLoadFile_CUEIncomplete(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.cue", "specs: [{uri: string}]\n")
	_, err := LoadFile(p)
	assert.True(t, IsLoadError(err))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "specs:\n  - uri: urn:spec:b\n")
	writeFile(t, dir, "nested/a.yml", "specs:\n  - uri: urn:spec:a\n")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "z.yaml", "specs: [[[")

	recs, errs := LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 1)
	var uris []string
	for _, r := range recs {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{"urn:spec:b", "urn:spec:a"}, uris)

	recs, errs = LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Len(t, recs, 2)
}

func TestLoadDir_Errors(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNotFound)

	_, errs = LoadDir(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)
}

func TestLoadDir_SingleFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "one.yaml", "specs:\n  - uri: urn:spec:one\n")
	recs, errs := LoadDir(p, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, recs, 1)
}

func TestFilter(t *testing.T) {
	recs := []*spec.Record{
		{URI: "https://example.org/specs/select-basic"},
		{URI: "https://example.org/specs#construct-basic"},
		{URI: "urn:spec:select-ordered"},
	}
	out, err := Filter(recs, "select-*")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "urn:spec:select-ordered", out[1].URI)

	out, err = Filter(recs, "")
	require.NoError(t, err)
	assert.Len(t, out, 3)

	_, err = Filter(recs, "[")
	assert.Error(t, err)
}
