package engine

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"codegraph/internal/graph"
)

// FindCycles returns every strongly connected component of size > 1 in the
// graph restricted to the requested edge kinds, via Tarjan's algorithm. Each
// cycle is an ordered node sequence beginning at its smallest node id; when
// the component admits a single walk through all members the sequence follows
// the edges, otherwise members are listed in id order. Cycles are sorted by
// their leading id.
func (s *Snapshot) FindCycles(kinds []graph.EdgeKind) [][]string {
	p := s.project(kinds)

	g := simple.NewDirectedGraph()
	for i := range s.ids {
		g.AddNode(simple.Node(int64(i)))
	}
	for from, nbrs := range p.out {
		for _, to := range nbrs {
			if int32(from) == to {
				continue // self loops are not size>1 components
			}
			g.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(int64(to))})
		}
	}

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		members := make([]int32, len(scc))
		for i, n := range scc {
			members[i] = int32(n.ID())
		}
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		cycles = append(cycles, s.orderCycle(members, p))
	}
	sort.Slice(cycles, func(a, b int) bool { return cycles[a][0] < cycles[b][0] })
	return cycles
}

// orderCycle walks the component from its smallest member following edges to
// unvisited members, neighbors in ascending order. A component that no single
// walk covers falls back to id order; either way the result is deterministic.
func (s *Snapshot) orderCycle(members []int32, p *projection) []string {
	inSCC := make(map[int32]struct{}, len(members))
	for _, m := range members {
		inSCC[m] = struct{}{}
	}

	walk := []int32{members[0]}
	visited := map[int32]struct{}{members[0]: {}}
	cur := members[0]
	for len(walk) < len(members) {
		advanced := false
		for _, nbr := range p.out[cur] {
			if _, in := inSCC[nbr]; !in {
				continue
			}
			if _, seen := visited[nbr]; seen {
				continue
			}
			walk = append(walk, nbr)
			visited[nbr] = struct{}{}
			cur = nbr
			advanced = true
			break
		}
		if !advanced {
			walk = members
			break
		}
	}

	cycle := make([]string, len(walk))
	for i, m := range walk {
		cycle[i] = s.ids[m]
	}
	return cycle
}
