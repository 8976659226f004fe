package spec

import "fmt"

// Role is the BDD role a source node plays in a record.
type Role string

const (
	RoleGiven Role = "given"
	RoleWhen  Role = "when"
	RoleThen  Role = "then"
)

// Roles lists every role in resolution order.
var Roles = []Role{RoleGiven, RoleWhen, RoleThen}

// Kind is a declared source-node type tag.
type Kind string

const (
	// Graph payloads.
	KindStatementsDataset Kind = "StatementsDataset"
	KindFileDataset       Kind = "FileDataset"
	KindHTTPDataset       Kind = "HttpDataset"
	KindEmptyGraph        Kind = "EmptyGraph"
	KindInheritedDataset  Kind = "InheritedDataset"

	// Query payloads.
	KindTextSparqlSource Kind = "TextSparqlSource"
	KindFileSparqlSource Kind = "FileSparqlSource"
	KindHTTPSparqlSource Kind = "HttpSparqlSource"

	// Table payloads.
	KindTableDataset Kind = "TableDataset"
	KindEmptyTable   Kind = "EmptyTable"
	KindFileTable    Kind = "FileTable"
)

// IsTable reports whether k produces a table expectation.
func (k Kind) IsTable() bool {
	switch k {
	case KindTableDataset, KindEmptyTable, KindFileTable:
		return true
	}
	return false
}

// QueryKind classifies the operation of a when component.
type QueryKind int

const (
	QuerySelect QueryKind = iota + 1
	QueryConstruct
	QueryUpdate
)

func (q QueryKind) String() string {
	switch q {
	case QuerySelect:
		return "select"
	case QueryConstruct:
		return "construct"
	case QueryUpdate:
		return "update"
	default:
		return fmt.Sprintf("QueryKind(%d)", int(q))
	}
}

// ParseQueryKind maps "select", "construct" and "update" to a QueryKind.
func ParseQueryKind(s string) (QueryKind, error) {
	switch s {
	case "select":
		return QuerySelect, nil
	case "construct":
		return QueryConstruct, nil
	case "update":
		return QueryUpdate, nil
	}
	return 0, fmt.Errorf("unknown query kind %q", s)
}
