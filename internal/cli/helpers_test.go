package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const passingSpecs = `
specs:
  - uri: https://example.org/specs/swap-construct
    given:
      - kind: StatementsDataset
        text: "@prefix ex: <https://example.org/> . ex:sub ex:pred ex:obj ."
    when:
      - kind: TextSparqlSource
        text: "CONSTRUCT { ?o ?p ?s } WHERE { ?s ?p ?o }"
    then:
      - kind: StatementsDataset
        text: "@prefix ex: <https://example.org/> . ex:obj ex:pred ex:sub ."
  - uri: https://example.org/specs/person-names
    given:
      - kind: FileDataset
        path: people.ttl
    when:
      - kind: FileSparqlSource
        path: names.rq
    then:
      - kind: TableDataset
        rows:
          - bindings:
              name: '"Alice"'
          - bindings:
              name: '"Bob"'
`

const peopleTurtle = `@prefix ex: <https://example.org/> .
ex:alice ex:name "Alice" .
ex:bob ex:name "Bob" .
`

const namesQuery = `PREFIX ex: <https://example.org/>
SELECT ?name WHERE { ?person ex:name ?name }
`

const failingSpecs = `
specs:
  - uri: https://example.org/specs/wrong-direction
    given:
      - kind: StatementsDataset
        text: "@prefix ex: <https://example.org/> . ex:sub ex:pred ex:obj ."
    when:
      - kind: TextSparqlSource
        text: "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }"
    then:
      - kind: StatementsDataset
        text: "@prefix ex: <https://example.org/> . ex:obj ex:pred ex:sub ."
`

const invalidSpecs = `
specs:
  - uri: https://example.org/specs/no-when
    given:
      - kind: EmptyGraph
    then:
      - kind: EmptyTable
  - uri: https://example.org/specs/select-vs-graph
    given:
      - kind: EmptyGraph
    when:
      - kind: TextSparqlSource
        text: "SELECT * WHERE { ?s ?p ?o }"
    then:
      - kind: EmptyGraph
`

// writeFiles creates a directory holding the named files.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func passingDir(t *testing.T) string {
	return writeFiles(t, map[string]string{
		"specs.yaml": passingSpecs,
		"people.ttl": peopleTurtle,
		"names.rq":   namesQuery,
	})
}

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// executeSub runs a subcommand built directly, the way the command tests
// construct them.
func executeSub(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals a JSON CLIResponse and decodes its data into v.
func decodeData(t *testing.T, output string, v any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.CLIResponse
}
