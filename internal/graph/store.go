package graph

import "context"

// Store is the interface for code graph persistence. Mutating operations are
// transactional per call: either the whole batch commits or none of it does.
// Reads run against a point-in-time snapshot and never observe a half-written
// file.
type Store interface {
	// UpsertNodes inserts or replaces the given nodes in one transaction.
	UpsertNodes(ctx context.Context, nodes []*Node) error

	// UpsertEdges inserts or replaces the given edges in one transaction.
	// Edge endpoints referencing unknown ids auto-create External nodes when
	// the endpoint follows the external id grammar.
	UpsertEdges(ctx context.Context, edges []*Edge) error

	// ReplaceFile atomically swaps the graph contents for filePath: every node
	// with that file path and every edge touching those nodes is deleted, then
	// the fresh set is inserted, all in one transaction. External nodes left
	// without any referencing edge are garbage-collected.
	ReplaceFile(ctx context.Context, filePath string, nodes []*Node, edges []*Edge) error

	// DeleteFile removes all nodes for filePath along with their edges.
	DeleteFile(ctx context.Context, filePath string) error

	// GetNode retrieves a single node by id. A miss returns ErrNotFound.
	GetNode(ctx context.Context, id string) (*Node, error)

	// FindByName returns all nodes with the exact (case-sensitive) name.
	FindByName(ctx context.Context, name string) ([]*Node, error)

	// FindByQualifiedName returns all nodes with the exact qualified name.
	FindByQualifiedName(ctx context.Context, qname string) ([]*Node, error)

	// ScanNodes iterates nodes, optionally restricted to one kind (empty kind
	// scans everything). Return false from fn to stop.
	ScanNodes(ctx context.Context, kind NodeKind, fn func(*Node) bool) error

	// ScanEdges iterates all edges. Return false from fn to stop.
	ScanEdges(ctx context.Context, fn func(*Edge) bool) error

	// EdgesFrom returns edges whose source is nodeID, optionally restricted to
	// one kind (empty kind returns all).
	EdgesFrom(ctx context.Context, nodeID string, kind EdgeKind) ([]*Edge, error)

	// EdgesTo returns edges whose target is nodeID, optionally restricted to
	// one kind.
	EdgesTo(ctx context.Context, nodeID string, kind EdgeKind) ([]*Edge, error)

	// Dump returns the version counter together with every node and edge,
	// all read from one point-in-time snapshot. Callers that materialize the
	// whole graph (the algorithm engine, export) use it so the version label
	// and the contents cannot straddle two commits.
	Dump(ctx context.Context) (uint64, []*Node, []*Edge, error)

	// Stats returns aggregate statistics about the graph.
	Stats(ctx context.Context) (*GraphStats, error)

	// Version returns a counter that increases on every committed mutation
	// batch. The algorithm engine keys its snapshots on it.
	Version(ctx context.Context) (uint64, error)

	// Close releases resources held by the store.
	Close() error
}
