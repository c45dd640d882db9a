package graph

import (
	"fmt"
	"strings"
)

// NodeKind represents the kind of entity in the code graph.
type NodeKind string

const (
	NodeModule   NodeKind = "Module"
	NodeClass    NodeKind = "Class"
	NodeFunction NodeKind = "Function"
	NodeExternal NodeKind = "External"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeModule, NodeClass, NodeFunction, NodeExternal:
		return true
	}
	return false
}

// Table returns the query-surface table name for this kind
// (modules/classes/functions/external). Table names are part of the persisted
// contract and must stay additive-only.
func (k NodeKind) Table() string {
	switch k {
	case NodeModule:
		return "modules"
	case NodeClass:
		return "classes"
	case NodeFunction:
		return "functions"
	case NodeExternal:
		return "external"
	}
	return ""
}

// KindForTable is the inverse of NodeKind.Table.
func KindForTable(table string) (NodeKind, bool) {
	switch table {
	case "modules":
		return NodeModule, true
	case "classes":
		return NodeClass, true
	case "functions":
		return NodeFunction, true
	case "external":
		return NodeExternal, true
	}
	return "", false
}

// EdgeKind represents a typed relationship between two nodes.
type EdgeKind string

const (
	EdgeImports  EdgeKind = "Imports"
	EdgeInherits EdgeKind = "Inherits"
	EdgeContains EdgeKind = "Contains"
	EdgeCalls    EdgeKind = "Calls"
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeImports, EdgeInherits, EdgeContains, EdgeCalls:
		return true
	}
	return false
}

// AllEdgeKinds lists every edge kind in a fixed order.
func AllEdgeKinds() []EdgeKind {
	return []EdgeKind{EdgeImports, EdgeInherits, EdgeContains, EdgeCalls}
}

// ParseEdgeKind maps a user-supplied kind name (any case) to an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	for _, k := range AllEdgeKinds() {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

// Node represents a module, class, function, or external symbol.
type Node struct {
	ID            string            `json:"id"`
	Kind          NodeKind          `json:"kind"`
	Name          string            `json:"name"`
	QualifiedName string            `json:"qualified_name,omitempty"`
	FilePath      string            `json:"file_path,omitempty"`
	LineStart     int               `json:"line_start,omitempty"`
	LineEnd       int               `json:"line_end,omitempty"`
	Complexity    int               `json:"complexity,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Edge represents a directed, typed relationship between two nodes.
type Edge struct {
	ID         string            `json:"id"`
	Kind       EdgeKind          `json:"kind"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphStats holds aggregate statistics about the code graph.
type GraphStats struct {
	NodeCount   int64              `json:"node_count"`
	EdgeCount   int64              `json:"edge_count"`
	NodesByKind map[NodeKind]int64 `json:"nodes_by_kind"`
	EdgesByKind map[EdgeKind]int64 `json:"edges_by_kind"`
}

// Node id prefixes. Ids are computed from kind, file path, and name so that
// re-extracting unchanged source reproduces the same id, which makes
// incremental rebuilds idempotent and lets edges reference not-yet-inserted
// targets.
const (
	idPrefixModule   = "mod:"
	idPrefixClass    = "cls:"
	idPrefixFunction = "fn:"
	idPrefixExternal = "ext:"
)

// NewNodeID computes the deterministic id for a node of the given kind.
// Module ids use only the file path; class and function ids append the name;
// external ids carry the qualified name alone.
func NewNodeID(kind NodeKind, filePath, name string) string {
	switch kind {
	case NodeModule:
		return idPrefixModule + filePath
	case NodeClass:
		return idPrefixClass + filePath + ":" + name
	case NodeFunction:
		return idPrefixFunction + filePath + ":" + name
	case NodeExternal:
		return idPrefixExternal + name
	}
	return ""
}

// NewExternalID computes the id for an out-of-codebase symbol.
func NewExternalID(qualifiedName string) string {
	return idPrefixExternal + qualifiedName
}

// ParseNodeID splits an id into its kind and remainder. ok is false when the
// string does not follow the id grammar.
func ParseNodeID(id string) (kind NodeKind, rest string, ok bool) {
	switch {
	case strings.HasPrefix(id, idPrefixModule):
		return NodeModule, id[len(idPrefixModule):], true
	case strings.HasPrefix(id, idPrefixClass):
		return NodeClass, id[len(idPrefixClass):], true
	case strings.HasPrefix(id, idPrefixFunction):
		return NodeFunction, id[len(idPrefixFunction):], true
	case strings.HasPrefix(id, idPrefixExternal):
		return NodeExternal, id[len(idPrefixExternal):], true
	}
	return "", "", false
}

// NewEdgeID computes a deterministic edge id from the (source, target, kind)
// triple. Two edges with the same triple collapse to the same id, which is how
// the uniqueness invariant is enforced structurally.
func NewEdgeID(kind EdgeKind, sourceID, targetID string) string {
	return fmt.Sprintf("%s|%s|%s", kind, sourceID, targetID)
}
