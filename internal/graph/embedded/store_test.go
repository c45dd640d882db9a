package embedded

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"codegraph/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fnNode(path, name string, complexity int) *graph.Node {
	return &graph.Node{
		ID:            graph.NewNodeID(graph.NodeFunction, path, name),
		Kind:          graph.NodeFunction,
		Name:          name,
		QualifiedName: path + "." + name,
		FilePath:      path,
		LineStart:     1,
		LineEnd:       10,
		Complexity:    complexity,
	}
}

func callsEdge(src, dst *graph.Node) *graph.Edge {
	return &graph.Edge{
		ID:       graph.NewEdgeID(graph.EdgeCalls, src.ID, dst.ID),
		Kind:     graph.EdgeCalls,
		SourceID: src.ID,
		TargetID: dst.ID,
	}
}

func TestUpsertGetNode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := fnNode("main.py", "run", 3)
	node.Properties = map[string]string{"async": "true"}

	if err := s.UpsertNodes(ctx, []*graph.Node{node}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}

	got, err := s.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Name != "run" {
		t.Errorf("Name = %q, want %q", got.Name, "run")
	}
	if got.Kind != graph.NodeFunction {
		t.Errorf("Kind = %q, want %q", got.Kind, graph.NodeFunction)
	}
	if got.QualifiedName != "main.py.run" {
		t.Errorf("QualifiedName = %q", got.QualifiedName)
	}
	if got.Complexity != 3 {
		t.Errorf("Complexity = %d, want 3", got.Complexity)
	}
	if v := got.Properties["async"]; v != "true" {
		t.Errorf("Properties[async] = %q, want %q", v, "true")
	}
}

func TestGetNodeMiss(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode(context.Background(), "fn:nope.py:missing")
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("GetNode miss = %v, want ErrNotFound", err)
	}
}

func TestFindByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := fnNode("a.py", "handler", 1)
	b := fnNode("b.py", "handler", 2)
	c := fnNode("c.py", "other", 1)
	if err := s.UpsertNodes(ctx, []*graph.Node{a, b, c}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}

	nodes, err := s.FindByName(ctx, "handler")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("FindByName returned %d nodes, want 2", len(nodes))
	}

	nodes, err = s.FindByQualifiedName(ctx, "b.py.handler")
	if err != nil {
		t.Fatalf("FindByQualifiedName: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != b.ID {
		t.Errorf("FindByQualifiedName = %v, want [%s]", nodes, b.ID)
	}
}

func TestEdgesFromTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fnNode("a.py", "f", 1)
	g := fnNode("b.py", "g", 1)
	if err := s.UpsertNodes(ctx, []*graph.Node{f, g}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}
	if err := s.UpsertEdges(ctx, []*graph.Edge{callsEdge(f, g)}); err != nil {
		t.Fatalf("UpsertEdges: %v", err)
	}

	out, err := s.EdgesFrom(ctx, f.ID, graph.EdgeCalls)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(out) != 1 || out[0].TargetID != g.ID {
		t.Errorf("EdgesFrom = %v", out)
	}

	in, err := s.EdgesTo(ctx, g.ID, graph.EdgeCalls)
	if err != nil {
		t.Fatalf("EdgesTo: %v", err)
	}
	if len(in) != 1 || in[0].SourceID != f.ID {
		t.Errorf("EdgesTo = %v", in)
	}

	// Kind filter excludes non-matching edges.
	none, err := s.EdgesFrom(ctx, f.ID, graph.EdgeImports)
	if err != nil {
		t.Fatalf("EdgesFrom imports: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("EdgesFrom(Imports) = %v, want empty", none)
	}
}

func TestDuplicateEdgeCollapses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fnNode("a.py", "f", 1)
	g := fnNode("b.py", "g", 1)
	if err := s.UpsertNodes(ctx, []*graph.Node{f, g}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}
	e := callsEdge(f, g)
	if err := s.UpsertEdges(ctx, []*graph.Edge{e, callsEdge(f, g)}); err != nil {
		t.Fatalf("UpsertEdges: %v", err)
	}

	out, err := s.EdgesFrom(ctx, f.ID, graph.EdgeCalls)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("duplicate (source, target, kind) stored %d edges, want 1", len(out))
	}
}

func TestExternalAutoCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fnNode("a.py", "f", 1)
	if err := s.UpsertNodes(ctx, []*graph.Node{f}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}
	extID := graph.NewExternalID("os.path.join")
	e := &graph.Edge{
		ID:       graph.NewEdgeID(graph.EdgeCalls, f.ID, extID),
		Kind:     graph.EdgeCalls,
		SourceID: f.ID,
		TargetID: extID,
	}
	if err := s.UpsertEdges(ctx, []*graph.Edge{e}); err != nil {
		t.Fatalf("UpsertEdges: %v", err)
	}

	ext, err := s.GetNode(ctx, extID)
	if err != nil {
		t.Fatalf("GetNode external: %v", err)
	}
	if ext.Kind != graph.NodeExternal {
		t.Errorf("Kind = %q, want External", ext.Kind)
	}
	if ext.Name != "join" {
		t.Errorf("Name = %q, want %q", ext.Name, "join")
	}
	if ext.QualifiedName != "os.path.join" {
		t.Errorf("QualifiedName = %q", ext.QualifiedName)
	}
}

func TestReplaceFileSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	oldA := fnNode("a.py", "old", 1)
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{oldA}, nil); err != nil {
		t.Fatalf("ReplaceFile initial: %v", err)
	}

	newA := fnNode("a.py", "new", 2)
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{newA}, nil); err != nil {
		t.Fatalf("ReplaceFile swap: %v", err)
	}

	if _, err := s.GetNode(ctx, oldA.ID); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("old node still present after swap: %v", err)
	}
	if _, err := s.GetNode(ctx, newA.ID); err != nil {
		t.Errorf("new node missing after swap: %v", err)
	}

	// Name index for the old node must be gone too.
	nodes, err := s.FindByName(ctx, "old")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("stale name index entries: %v", nodes)
	}
}

func TestReplaceFileConcurrentReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	oldSet := []*graph.Node{fnNode("f.py", "old1", 1), fnNode("f.py", "old2", 2)}
	newSet := []*graph.Node{fnNode("f.py", "new1", 1)}

	if err := s.ReplaceFile(ctx, "f.py", oldSet, nil); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	base, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	const swaps = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < swaps; i++ {
			state := newSet
			if i%2 == 1 {
				state = oldSet
			}
			if err := s.ReplaceFile(ctx, "f.py", state, nil); err != nil {
				t.Errorf("ReplaceFile: %v", err)
				return
			}
		}
	}()

	// Every read must observe exactly the old set or exactly the new set,
	// and the version read alongside must agree with which one.
	for {
		select {
		case <-done:
			return
		default:
		}
		version, nodes, _, err := s.Dump(ctx)
		if err != nil {
			t.Fatalf("Dump: %v", err)
		}
		var names []string
		for _, n := range nodes {
			names = append(names, n.Name)
		}
		sort.Strings(names)
		got := strings.Join(names, ",")
		wantOld := (version-base)%2 == 0
		switch {
		case wantOld && got == "old1,old2":
		case !wantOld && got == "new1":
		default:
			t.Fatalf("version %d observed nodes %q", version, got)
		}
	}
}

func TestReplaceFileIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	build := func() ([]*graph.Node, []*graph.Edge) {
		f := fnNode("a.py", "f", 1)
		g := fnNode("a.py", "g", 1)
		return []*graph.Node{f, g}, []*graph.Edge{callsEdge(f, g)}
	}

	n1, e1 := build()
	if err := s.ReplaceFile(ctx, "a.py", n1, e1); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	first := collectIDs(t, s)

	n2, e2 := build()
	if err := s.ReplaceFile(ctx, "a.py", n2, e2); err != nil {
		t.Fatalf("ReplaceFile again: %v", err)
	}
	second := collectIDs(t, s)

	if len(first) != len(second) {
		t.Fatalf("id set size changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("id set changed at %d: %q -> %q", i, first[i], second[i])
		}
	}
}

func collectIDs(t *testing.T, s *Store) []string {
	t.Helper()
	var ids []string
	err := s.ScanNodes(context.Background(), "", func(n *graph.Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	if err != nil {
		t.Fatalf("ScanNodes: %v", err)
	}
	err = s.ScanEdges(context.Background(), func(e *graph.Edge) bool {
		ids = append(ids, e.ID)
		return true
	})
	if err != nil {
		t.Fatalf("ScanEdges: %v", err)
	}
	sort.Strings(ids)
	return ids
}

func TestDeleteFileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fnNode("a.py", "f", 1)
	g := fnNode("b.py", "g", 1)
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{f}, nil); err != nil {
		t.Fatalf("ReplaceFile a: %v", err)
	}
	if err := s.ReplaceFile(ctx, "b.py", []*graph.Node{g}, []*graph.Edge{callsEdge(g, f)}); err != nil {
		t.Fatalf("ReplaceFile b: %v", err)
	}

	if err := s.DeleteFile(ctx, "a.py"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	if _, err := s.GetNode(ctx, f.ID); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("deleted node still present: %v", err)
	}
	// The edge pointing at the deleted node must be gone.
	out, err := s.EdgesFrom(ctx, g.ID, graph.EdgeCalls)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("dangling edge survived delete: %v", out)
	}
}

func TestExternalGC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fnNode("a.py", "f", 1)
	extID := graph.NewExternalID("os.path.join")
	e := &graph.Edge{
		ID:       graph.NewEdgeID(graph.EdgeCalls, f.ID, extID),
		Kind:     graph.EdgeCalls,
		SourceID: f.ID,
		TargetID: extID,
	}
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{f}, []*graph.Edge{e}); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if _, err := s.GetNode(ctx, extID); err != nil {
		t.Fatalf("external not created: %v", err)
	}

	// Rebuild a.py without the call: the external loses its last reference.
	f2 := fnNode("a.py", "f", 1)
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{f2}, nil); err != nil {
		t.Fatalf("ReplaceFile without edge: %v", err)
	}
	if _, err := s.GetNode(ctx, extID); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("unreferenced external survived GC: %v", err)
	}
}

func TestVersionAdvances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v0, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if err := s.UpsertNodes(ctx, []*graph.Node{fnNode("a.py", "f", 1)}); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}
	v1, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v1 <= v0 {
		t.Errorf("version did not advance: %d -> %d", v0, v1)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mod := &graph.Node{
		ID:       graph.NewNodeID(graph.NodeModule, "a.py", ""),
		Kind:     graph.NodeModule,
		Name:     "a",
		FilePath: "a.py",
	}
	f := fnNode("a.py", "f", 1)
	contains := &graph.Edge{
		ID:       graph.NewEdgeID(graph.EdgeContains, mod.ID, f.ID),
		Kind:     graph.EdgeContains,
		SourceID: mod.ID,
		TargetID: f.ID,
	}
	if err := s.ReplaceFile(ctx, "a.py", []*graph.Node{mod, f}, []*graph.Edge{contains}); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NodeCount != 2 {
		t.Errorf("NodeCount = %d, want 2", stats.NodeCount)
	}
	if stats.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, want 1", stats.EdgeCount)
	}
	if stats.NodesByKind[graph.NodeFunction] != 1 {
		t.Errorf("NodesByKind[Function] = %d, want 1", stats.NodesByKind[graph.NodeFunction])
	}
	if stats.EdgesByKind[graph.EdgeContains] != 1 {
		t.Errorf("EdgesByKind[Contains] = %d, want 1", stats.EdgesByKind[graph.EdgeContains])
	}
}
