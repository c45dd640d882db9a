package engine

import (
	"context"
	"sync"

	"codegraph/internal/graph"
)

// Engine serves algorithm queries against the freshest store snapshot. A
// snapshot is rebuilt only when the store's version counter has moved, so
// repeated queries between mutations share one immutable view and a query
// never observes a graph version straddling two snapshots.
type Engine struct {
	store graph.Store

	mu   sync.Mutex
	snap *Snapshot
}

// New creates an Engine over the given store.
func New(store graph.Store) *Engine {
	return &Engine{store: store}
}

// Snapshot returns a view of the store at its current version, rebuilding
// the cached snapshot if the store has changed since the last call. The
// rebuild reads version, nodes, and edges through a single Dump call so the
// three cannot come from different commits, no matter what a concurrent
// writer does between them.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	version, err := e.store.Version(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil && e.snap.version == version {
		return e.snap, nil
	}

	v, nodes, edges, err := e.store.Dump(ctx)
	if err != nil {
		return nil, err
	}

	e.snap = NewSnapshot(v, nodes, edges)
	return e.snap, nil
}

// Impact returns the forward-reachable set from id. See Snapshot.Impact.
func (e *Engine) Impact(ctx context.Context, id string, kinds []graph.EdgeKind) ([]string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Impact(id, kinds), nil
}

// Ancestors returns the backward-reachable set from id.
func (e *Engine) Ancestors(ctx context.Context, id string, kinds []graph.EdgeKind) ([]string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ancestors(id, kinds), nil
}

// FindCycles returns all cycles (SCCs of size > 1) under the kind filter.
func (e *Engine) FindCycles(ctx context.Context, kinds []graph.EdgeKind) ([][]string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.FindCycles(kinds), nil
}

// ShortestPath returns an unweighted shortest path, or nil when unreachable.
func (e *Engine) ShortestPath(ctx context.Context, from, to string, kinds []graph.EdgeKind) ([]string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ShortestPath(from, to, kinds), nil
}

// Neighbors returns nodes within depth hops of id.
func (e *Engine) Neighbors(ctx context.Context, id string, dir Direction, depth int, kinds []graph.EdgeKind) ([]string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Neighbors(id, dir, depth, kinds), nil
}
