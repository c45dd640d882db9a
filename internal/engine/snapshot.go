// Package engine implements in-memory graph algorithms over a point-in-time
// snapshot of the store: reachability, cycle detection, shortest paths, and
// bounded neighborhood queries, each filterable by edge kind.
package engine

import (
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"codegraph/internal/graph"
)

// Direction selects the traversal direction for neighborhood queries.
type Direction int

const (
	Forward Direction = iota
	Backward
	Both
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Both:
		return "both"
	}
	return "unknown"
}

// projectionCacheSize bounds how many kind-filtered adjacency projections a
// snapshot keeps around. Four edge kinds give at most 16 distinct filters, so
// the bound exists only to keep the type honest.
const projectionCacheSize = 16

// Snapshot is an immutable view of the graph at one store version. Node ids
// are mapped to dense indexes in sorted order, which is what makes every
// result reproducible across calls.
type Snapshot struct {
	version uint64
	ids     []string         // sorted; position = dense index
	index   map[string]int32 // id -> dense index

	// Per-kind adjacency, dense indexes sorted ascending.
	out map[graph.EdgeKind][][]int32
	in  map[graph.EdgeKind][][]int32

	projections *lru.Cache[string, *projection]
}

// projection is the merged adjacency for one edge-kind filter.
type projection struct {
	out [][]int32
	in  [][]int32
}

// NewSnapshot builds a snapshot from a full node/edge set. Edges whose
// endpoints are not in nodes are dropped; the store's referential invariant
// makes that a non-event in practice.
func NewSnapshot(version uint64, nodes []*graph.Node, edges []*graph.Edge) *Snapshot {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	index := make(map[string]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}

	s := &Snapshot{
		version: version,
		ids:     ids,
		index:   index,
		out:     make(map[graph.EdgeKind][][]int32),
		in:      make(map[graph.EdgeKind][][]int32),
	}
	s.projections, _ = lru.New[string, *projection](projectionCacheSize)

	for _, e := range edges {
		src, ok := index[e.SourceID]
		if !ok {
			continue
		}
		dst, ok := index[e.TargetID]
		if !ok {
			continue
		}
		if s.out[e.Kind] == nil {
			s.out[e.Kind] = make([][]int32, len(ids))
			s.in[e.Kind] = make([][]int32, len(ids))
		}
		s.out[e.Kind][src] = append(s.out[e.Kind][src], dst)
		s.in[e.Kind][dst] = append(s.in[e.Kind][dst], src)
	}
	for _, adj := range s.out {
		sortAdjacency(adj)
	}
	for _, adj := range s.in {
		sortAdjacency(adj)
	}
	return s
}

func sortAdjacency(adj [][]int32) {
	for i := range adj {
		sort.Slice(adj[i], func(a, b int) bool { return adj[i][a] < adj[i][b] })
		adj[i] = dedupSorted(adj[i])
	}
}

func dedupSorted(xs []int32) []int32 {
	if len(xs) < 2 {
		return xs
	}
	w := 1
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[i-1] {
			xs[w] = xs[i]
			w++
		}
	}
	return xs[:w]
}

// Version returns the store version this snapshot was built from.
func (s *Snapshot) Version() uint64 { return s.version }

// NodeCount returns the number of nodes in the snapshot.
func (s *Snapshot) NodeCount() int { return len(s.ids) }

// normalizeKinds returns the requested kinds in canonical order, or every
// kind when the filter is empty.
func normalizeKinds(kinds []graph.EdgeKind) []graph.EdgeKind {
	if len(kinds) == 0 {
		return graph.AllEdgeKinds()
	}
	seen := make(map[graph.EdgeKind]struct{}, len(kinds))
	var norm []graph.EdgeKind
	for _, k := range graph.AllEdgeKinds() {
		for _, want := range kinds {
			if k == want {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					norm = append(norm, k)
				}
				break
			}
		}
	}
	return norm
}

func kindsKey(kinds []graph.EdgeKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// project merges the per-kind adjacency for one kind filter, with the merged
// neighbor lists sorted and deduplicated. Projections are cached per filter.
func (s *Snapshot) project(kinds []graph.EdgeKind) *projection {
	kinds = normalizeKinds(kinds)
	key := kindsKey(kinds)
	if p, ok := s.projections.Get(key); ok {
		return p
	}

	p := &projection{
		out: make([][]int32, len(s.ids)),
		in:  make([][]int32, len(s.ids)),
	}
	for _, k := range kinds {
		if adj := s.out[k]; adj != nil {
			for i, nbrs := range adj {
				p.out[i] = append(p.out[i], nbrs...)
			}
		}
		if adj := s.in[k]; adj != nil {
			for i, nbrs := range adj {
				p.in[i] = append(p.in[i], nbrs...)
			}
		}
	}
	sortAdjacency(p.out)
	sortAdjacency(p.in)

	s.projections.Add(key, p)
	return p
}

// Impact returns every node reachable by following edges forward from id,
// the node itself excluded. Missing ids yield an empty result.
func (s *Snapshot) Impact(id string, kinds []graph.EdgeKind) []string {
	return s.reach(id, kinds, false)
}

// Ancestors returns every node reachable backward from id (what it depends
// on), the node itself excluded.
func (s *Snapshot) Ancestors(id string, kinds []graph.EdgeKind) []string {
	return s.reach(id, kinds, true)
}

func (s *Snapshot) reach(id string, kinds []graph.EdgeKind, backward bool) []string {
	start, ok := s.index[id]
	if !ok {
		return nil
	}
	p := s.project(kinds)
	adj := p.out
	if backward {
		adj = p.in
	}

	visited := make(map[int32]struct{})
	queue := []int32{start}
	visited[start] = struct{}{}
	var result []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nbr := range adj[cur] {
			if _, seen := visited[nbr]; seen {
				continue
			}
			visited[nbr] = struct{}{}
			result = append(result, s.ids[nbr])
			queue = append(queue, nbr)
		}
	}
	sort.Strings(result)
	return result
}

// Neighbors returns nodes within depth hops of id in the given direction.
// depth < 1 is treated as 1.
func (s *Snapshot) Neighbors(id string, dir Direction, depth int, kinds []graph.EdgeKind) []string {
	start, ok := s.index[id]
	if !ok {
		return nil
	}
	if depth < 1 {
		depth = 1
	}
	p := s.project(kinds)

	visited := map[int32]struct{}{start: {}}
	frontier := []int32{start}
	var result []string
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []int32
		for _, cur := range frontier {
			var nbrs []int32
			switch dir {
			case Forward:
				nbrs = p.out[cur]
			case Backward:
				nbrs = p.in[cur]
			case Both:
				nbrs = append(append([]int32{}, p.out[cur]...), p.in[cur]...)
			}
			for _, nbr := range nbrs {
				if _, seen := visited[nbr]; seen {
					continue
				}
				visited[nbr] = struct{}{}
				result = append(result, s.ids[nbr])
				next = append(next, nbr)
			}
		}
		frontier = next
	}
	sort.Strings(result)
	return result
}

// ShortestPath returns an unweighted shortest path from one node to another,
// both endpoints included, or nil when unreachable. Neighbor expansion runs
// in ascending id order, so repeated calls on an unchanged graph return the
// identical sequence.
func (s *Snapshot) ShortestPath(from, to string, kinds []graph.EdgeKind) []string {
	src, ok := s.index[from]
	if !ok {
		return nil
	}
	dst, ok := s.index[to]
	if !ok {
		return nil
	}
	if src == dst {
		return []string{from}
	}
	p := s.project(kinds)

	prev := make(map[int32]int32)
	visited := map[int32]struct{}{src: {}}
	queue := []int32{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nbr := range p.out[cur] {
			if _, seen := visited[nbr]; seen {
				continue
			}
			visited[nbr] = struct{}{}
			prev[nbr] = cur
			if nbr == dst {
				return s.buildPath(prev, src, dst)
			}
			queue = append(queue, nbr)
		}
	}
	return nil
}

func (s *Snapshot) buildPath(prev map[int32]int32, src, dst int32) []string {
	var rev []int32
	for cur := dst; ; cur = prev[cur] {
		rev = append(rev, cur)
		if cur == src {
			break
		}
	}
	path := make([]string, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = s.ids[n]
	}
	return path
}
