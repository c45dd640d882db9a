package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"codegraph/internal/graph"
	"codegraph/internal/graph/embedded"
)

func newTestApplier(t *testing.T) (*Applier, graph.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := embedded.Open(filepath.Join(dir, "graph"), embedded.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	a, err := NewApplier(store, filepath.Join(dir, "ingest-state.json"))
	if err != nil {
		t.Fatalf("new applier: %v", err)
	}
	return a, store
}

func authBatch() *Batch {
	return &Batch{
		FilePath: "pkg/auth.py",
		Nodes: []*graph.Node{
			{Kind: graph.NodeModule, Name: "auth", QualifiedName: "pkg.auth", LineStart: 1, LineEnd: 50},
			{Kind: graph.NodeFunction, Name: "login", QualifiedName: "pkg.auth.login", LineStart: 10, LineEnd: 30, Complexity: 4},
		},
		Edges: []*graph.Edge{
			{Kind: graph.EdgeContains, SourceID: "mod:pkg/auth.py", TargetID: "fn:pkg/auth.py:login"},
			{Kind: graph.EdgeCalls, SourceID: "fn:pkg/auth.py:login", TargetID: "ext:hashlib.sha256"},
		},
	}
}

func TestApplyStampsIDsAndStores(t *testing.T) {
	a, store := newTestApplier(t)
	ctx := context.Background()

	applied, err := a.Apply(ctx, authBatch())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("first apply must touch the store")
	}

	n, err := store.GetNode(ctx, "fn:pkg/auth.py:login")
	if err != nil {
		t.Fatalf("get stamped node: %v", err)
	}
	if n.FilePath != "pkg/auth.py" {
		t.Fatalf("file path = %q", n.FilePath)
	}
	// The external endpoint was auto-created from the dangling edge.
	if _, err := store.GetNode(ctx, "ext:hashlib.sha256"); err != nil {
		t.Fatalf("external endpoint: %v", err)
	}
}

func TestApplyIdenticalBatchIsNoOp(t *testing.T) {
	a, store := newTestApplier(t)
	ctx := context.Background()

	if _, err := a.Apply(ctx, authBatch()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	v1, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}

	applied, err := a.Apply(ctx, authBatch())
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if applied {
		t.Fatal("identical batch must be skipped")
	}
	v2, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v2 != v1 {
		t.Fatalf("store version moved %d -> %d on a no-op batch", v1, v2)
	}
}

func TestApplyDigestIgnoresEmissionOrder(t *testing.T) {
	a, _ := newTestApplier(t)
	ctx := context.Background()

	if _, err := a.Apply(ctx, authBatch()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	b := authBatch()
	b.Nodes[0], b.Nodes[1] = b.Nodes[1], b.Nodes[0]
	b.Edges[0], b.Edges[1] = b.Edges[1], b.Edges[0]
	applied, err := a.Apply(ctx, b)
	if err != nil {
		t.Fatalf("apply reordered: %v", err)
	}
	if applied {
		t.Fatal("reordered but identical batch must be skipped")
	}
}

func TestApplyChangedBatchReplaces(t *testing.T) {
	a, store := newTestApplier(t)
	ctx := context.Background()

	if _, err := a.Apply(ctx, authBatch()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	b := authBatch()
	b.Nodes[1].Name = "login_v2"
	b.Nodes[1].QualifiedName = "pkg.auth.login_v2"
	b.Edges = b.Edges[:0]
	applied, err := a.Apply(ctx, b)
	if err != nil {
		t.Fatalf("apply changed: %v", err)
	}
	if !applied {
		t.Fatal("changed batch must be applied")
	}
	if _, err := store.GetNode(ctx, "fn:pkg/auth.py:login"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("old function should be gone, got %v", err)
	}
	if _, err := store.GetNode(ctx, "fn:pkg/auth.py:login_v2"); err != nil {
		t.Fatalf("new function: %v", err)
	}
}

func TestRemoveDropsFileAndDigest(t *testing.T) {
	a, store := newTestApplier(t)
	ctx := context.Background()

	if _, err := a.Apply(ctx, authBatch()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := a.Remove(ctx, "pkg/auth.py"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.GetNode(ctx, "mod:pkg/auth.py"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("module should be gone, got %v", err)
	}

	// The same batch is applicable again after removal.
	applied, err := a.Apply(ctx, authBatch())
	if err != nil {
		t.Fatalf("re-apply after remove: %v", err)
	}
	if !applied {
		t.Fatal("digest must be forgotten on remove")
	}
}

func TestApplyRejectsBadBatches(t *testing.T) {
	a, _ := newTestApplier(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		batch *Batch
	}{
		{"empty file path", &Batch{}},
		{"bad node kind", &Batch{FilePath: "a.py", Nodes: []*graph.Node{{Kind: "gadget", Name: "x"}}}},
		{"external node in batch", &Batch{FilePath: "a.py", Nodes: []*graph.Node{{Kind: graph.NodeExternal, Name: "os"}}}},
		{"foreign file path", &Batch{FilePath: "a.py", Nodes: []*graph.Node{{Kind: graph.NodeFunction, Name: "f", FilePath: "b.py"}}}},
		{"bad edge kind", &Batch{FilePath: "a.py", Edges: []*graph.Edge{{Kind: "flies", SourceID: "fn:a.py:f", TargetID: "fn:a.py:g"}}}},
		{"malformed endpoint", &Batch{FilePath: "a.py", Edges: []*graph.Edge{{Kind: graph.EdgeCalls, SourceID: "nope", TargetID: "fn:a.py:g"}}}},
	}
	for _, tc := range cases {
		if _, err := a.Apply(ctx, tc.batch); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := &State{}
	s.SetDigest("a.py", "abc")
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Digest("a.py") != "abc" {
		t.Fatalf("digest = %q", loaded.Digest("a.py"))
	}
	missing, err := LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil || missing.Digest("a.py") != "" {
		t.Fatalf("missing state: %v %+v", err, missing)
	}
}
