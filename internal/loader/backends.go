package loader

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphspec/internal/spec"
)

// DefaultBackend is used when no backend file is given.
var DefaultBackend = spec.Descriptor{Name: "memory", Type: "memory"}

type backendsFile struct {
	Backends []spec.Descriptor `yaml:"backends"`
}

// LoadBackends reads a backend configuration file:
//
//	backends:
//	  - name: fuseki
//	    type: remote
//	    config:
//	      query_endpoint: http://localhost:3030/ds/query
//
// An empty path yields the single in-memory backend.
func LoadBackends(p string) ([]spec.Descriptor, error) {
	if p == "" {
		return []spec.Descriptor{DefaultBackend}, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "failed to read backends file", Err: err}
	}
	return DecodeBackends(p, data)
}

// DecodeBackends decodes and validates backend configuration.
func DecodeBackends(p string, data []byte) ([]spec.Descriptor, error) {
	var f backendsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: p, Message: "failed to parse YAML", Err: err}
	}
	if len(f.Backends) == 0 {
		return nil, &LoadError{Code: ErrCodeBackend, Path: p, Message: "no backends declared"}
	}
	seen := make(map[string]bool, len(f.Backends))
	for i, d := range f.Backends {
		if d.Type == "" {
			return nil, &LoadError{Code: ErrCodeBackend, Path: p, Message: fmt.Sprintf("backends[%d]: type is required", i)}
		}
		if seen[d.Label()] {
			return nil, &LoadError{Code: ErrCodeBackend, Path: p, Message: fmt.Sprintf("backends[%d]: duplicate backend name %q", i, d.Label())}
		}
		seen[d.Label()] = true
	}
	return f.Backends, nil
}
