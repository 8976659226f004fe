package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/table"
)

// detail is the JSON stored in outcomes.detail.
type detail struct {
	TableDiff []table.CellDiff         `json:"table_diff,omitempty"`
	GraphDiff *outcome.GraphDiffRecord `json:"graph_diff,omitempty"`
}

// marshalJSON encodes v with HTML escaping disabled, so terms such as
// <iri> are stored verbatim.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalDetail(r outcome.Record) (string, error) {
	s, err := marshalJSON(detail{TableDiff: r.TableDiff, GraphDiff: r.GraphDiff})
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return s, nil
}

func unmarshalDetail(data string, r *outcome.Record) error {
	if data == "" || data == "{}" {
		return nil
	}
	var d detail
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return fmt.Errorf("unmarshal detail: %w", err)
	}
	r.TableDiff = d.TableDiff
	r.GraphDiff = d.GraphDiff
	return nil
}

func marshalBackends(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	s, err := marshalJSON(names)
	if err != nil {
		return "", fmt.Errorf("marshal backends: %w", err)
	}
	return s, nil
}

func unmarshalBackends(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal backends: %w", err)
	}
	return names, nil
}
