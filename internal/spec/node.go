package spec

import (
	"fmt"

	"github.com/roach88/graphspec/internal/rdf"
)

// NodeID identifies a node within an Arena. The zero value is invalid.
type NodeID int

// Node is one source descriptor as produced by the loader.
//
// Exactly which payload fields are meaningful depends on Kinds: inline
// nodes use Text, file nodes Path, remote nodes URL, and table nodes Rows.
// A row node carries Bindings and may itself group further Rows.
type Node struct {
	ID    NodeID
	Kinds []Kind

	Text string
	Path string
	URL  string

	// Query optionally declares the query kind of a when node. Empty means
	// the kind is detected from the query text.
	Query string

	Bindings map[string]rdf.Term
	Rows     []NodeID
	Ordinal  *int
}

// Arena owns every node of a record.
type Arena struct {
	nodes []*Node
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores n, assigns its ID and returns it.
func (a *Arena) Add(n Node) NodeID {
	n.ID = NodeID(len(a.nodes) + 1)
	a.nodes = append(a.nodes, &n)
	return n.ID
}

// Node returns the node with the given ID.
func (a *Arena) Node(id NodeID) (*Node, error) {
	if id <= 0 || int(id) > len(a.nodes) {
		return nil, fmt.Errorf("node %d not in arena", id)
	}
	return a.nodes[id-1], nil
}

// Len returns the number of nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Record is one declared specification before resolution.
type Record struct {
	URI   string
	Given []NodeID
	When  []NodeID
	Then  []NodeID
	Arena *Arena

	// Source is the file the record was loaded from. Relative payload
	// paths resolve against its directory unless a base directory is set.
	Source string
}

// Nodes returns the node IDs attached to role.
func (r *Record) Nodes(role Role) []NodeID {
	switch role {
	case RoleGiven:
		return r.Given
	case RoleWhen:
		return r.When
	case RoleThen:
		return r.Then
	}
	return nil
}

// Descriptor names a configured backend instance.
type Descriptor struct {
	Name   string            `yaml:"name" json:"name"`
	Type   string            `yaml:"type" json:"type"`
	Config map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

// Label returns the instance name, falling back to the type tag.
func (d Descriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Type
}
