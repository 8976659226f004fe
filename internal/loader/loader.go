package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/graphspec/internal/rdf"
	"github.com/roach88/graphspec/internal/spec"
)

// LoadMode controls how errors are handled when loading a directory.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// File is the decoded form of one spec file.
type File struct {
	Specs []SpecDoc `yaml:"specs" json:"specs"`
}

// SpecDoc is one specification as written.
type SpecDoc struct {
	URI   string    `yaml:"uri" json:"uri"`
	Given []NodeDoc `yaml:"given" json:"given"`
	When  []NodeDoc `yaml:"when" json:"when"`
	Then  []NodeDoc `yaml:"then" json:"then"`
}

// NodeDoc is one source node as written.
type NodeDoc struct {
	Kind     KindList          `yaml:"kind" json:"kind"`
	Text     string            `yaml:"text,omitempty" json:"text,omitempty"`
	Path     string            `yaml:"path,omitempty" json:"path,omitempty"`
	URL      string            `yaml:"url,omitempty" json:"url,omitempty"`
	Query    string            `yaml:"query,omitempty" json:"query,omitempty"`
	Bindings map[string]string `yaml:"bindings,omitempty" json:"bindings,omitempty"`
	Rows     []RowDoc          `yaml:"rows,omitempty" json:"rows,omitempty"`
}

// RowDoc is one table row, or a group of rows sharing an ordinal.
type RowDoc struct {
	Index    *int              `yaml:"index,omitempty" json:"index,omitempty"`
	Bindings map[string]string `yaml:"bindings,omitempty" json:"bindings,omitempty"`
	Rows     []RowDoc          `yaml:"rows,omitempty" json:"rows,omitempty"`
}

// KindList accepts either a single kind or a list of kinds.
type KindList []spec.Kind

func (k *KindList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*k = KindList{spec.Kind(n.Value)}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := n.Decode(&ss); err != nil {
			return err
		}
		*k = toKinds(ss)
		return nil
	}
	return fmt.Errorf("line %d: kind must be a string or a list of strings", n.Line)
}

func (k *KindList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = KindList{spec.Kind(s)}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return fmt.Errorf("kind must be a string or a list of strings")
	}
	*k = toKinds(ss)
	return nil
}

func toKinds(ss []string) KindList {
	out := make(KindList, len(ss))
	for i, s := range ss {
		out[i] = spec.Kind(s)
	}
	return out
}

// LoadFile reads one spec file. The format follows the extension.
func LoadFile(p string) ([]*spec.Record, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "spec file not found"}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Path: p, Message: "failed to read spec file", Err: err}
	}
	var f *File
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		f, err = DecodeYAML(p, data)
	case ".cue":
		f, err = DecodeCUE(p, data)
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Path: p, Message: fmt.Sprintf("unsupported spec file extension %q", filepath.Ext(p))}
	}
	if err != nil {
		return nil, err
	}
	return f.Records(p)
}

// DecodeYAML decodes a YAML spec file, rejecting unknown fields.
func DecodeYAML(p string, data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: p, Message: "failed to parse YAML", Err: err}
	}
	return &f, nil
}

// DecodeCUE evaluates a CUE spec file and decodes its concrete value.
func DecodeCUE(p string, data []byte) (*File, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(p))
	if err := v.Err(); err != nil {
		return nil, fromCUE(p, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(p, err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, fromCUE(p, err)
	}
	var f File
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: p, Message: "unexpected shape", Err: err}
	}
	return &f, nil
}

// Records converts the decoded documents into records whose Source is p.
func (f *File) Records(p string) ([]*spec.Record, error) {
	recs := make([]*spec.Record, 0, len(f.Specs))
	for i, d := range f.Specs {
		at := fmt.Sprintf("specs[%d]", i)
		if d.URI == "" {
			return nil, &LoadError{Code: ErrCodeInvalid, Path: p, Message: at + ": uri is required"}
		}
		rec := &spec.Record{URI: d.URI, Arena: spec.NewArena(), Source: p}
		var err error
		if rec.Given, err = addNodes(rec.Arena, p, at+".given", d.Given); err != nil {
			return nil, err
		}
		if rec.When, err = addNodes(rec.Arena, p, at+".when", d.When); err != nil {
			return nil, err
		}
		if rec.Then, err = addNodes(rec.Arena, p, at+".then", d.Then); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func addNodes(a *spec.Arena, p, at string, docs []NodeDoc) ([]spec.NodeID, error) {
	ids := make([]spec.NodeID, 0, len(docs))
	for i, d := range docs {
		here := fmt.Sprintf("%s[%d]", at, i)
		bindings, err := terms(p, here, d.Bindings)
		if err != nil {
			return nil, err
		}
		rows, err := addRows(a, p, here+".rows", d.Rows)
		if err != nil {
			return nil, err
		}
		ids = append(ids, a.Add(spec.Node{
			Kinds:    append([]spec.Kind(nil), d.Kind...),
			Text:     d.Text,
			Path:     d.Path,
			URL:      d.URL,
			Query:    d.Query,
			Bindings: bindings,
			Rows:     rows,
		}))
	}
	return ids, nil
}

// addRows adds nested rows children first, so every node only refers to
// nodes already in the arena.
func addRows(a *spec.Arena, p, at string, docs []RowDoc) ([]spec.NodeID, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ids := make([]spec.NodeID, 0, len(docs))
	for i, d := range docs {
		here := fmt.Sprintf("%s[%d]", at, i)
		bindings, err := terms(p, here, d.Bindings)
		if err != nil {
			return nil, err
		}
		children, err := addRows(a, p, here+".rows", d.Rows)
		if err != nil {
			return nil, err
		}
		n := spec.Node{Bindings: bindings, Rows: children}
		if d.Index != nil {
			idx := *d.Index
			n.Ordinal = &idx
		}
		ids = append(ids, a.Add(n))
	}
	return ids, nil
}

func terms(p, at string, raw map[string]string) (map[string]rdf.Term, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]rdf.Term, len(raw))
	for v, s := range raw {
		t, err := rdf.ParseTerm(s)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeTerm, Path: p, Message: fmt.Sprintf("%s.bindings.%s", at, v), Err: err}
		}
		out[strings.TrimPrefix(v, "?")] = t
	}
	return out, nil
}

// IsSpecFile reports whether p has a spec file extension.
func IsSpecFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// FindSpecFiles walks dir and returns every spec file path, sorted.
func FindSpecFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSpecFile(p) {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadDir loads every spec file under dir. With LoadModeCollectAll the
// records of every readable file are returned along with all errors.
func LoadDir(dir string, mode LoadMode) ([]*spec.Record, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Path: dir, Message: "specs directory not found"}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Path: dir, Message: "error accessing specs directory", Err: err}}
	}
	if !info.IsDir() {
		recs, err := LoadFile(dir)
		if err != nil {
			return nil, []error{err}
		}
		return recs, nil
	}

	files, err := FindSpecFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Path: dir, Message: "error scanning directory", Err: err}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Path: dir, Message: "no spec files found"}}
	}

	var recs []*spec.Record
	var errs []error
	for _, f := range files {
		more, err := LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return recs, errs
			}
			continue
		}
		recs = append(recs, more...)
	}
	return recs, errs
}

// Filter keeps records whose URI's last segment matches the glob pattern.
// An empty pattern keeps everything.
func Filter(recs []*spec.Record, pattern string) ([]*spec.Record, error) {
	if pattern == "" {
		return recs, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	var out []*spec.Record
	for _, r := range recs {
		if ok, _ := path.Match(pattern, LastSegment(r.URI)); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// LastSegment returns the part of uri after its last '/', '#' or ':'.
func LastSegment(uri string) string {
	if i := strings.LastIndexAny(uri, "/#:"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
