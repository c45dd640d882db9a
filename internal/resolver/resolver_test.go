package resolver

import (
	"context"
	"testing"

	"codegraph/internal/graph"
	"codegraph/internal/graph/embedded"
)

func newTestResolver(t *testing.T) (*Resolver, *embedded.Store) {
	t.Helper()
	s, err := embedded.Open(t.TempDir(), embedded.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func seed(t *testing.T, s *embedded.Store, nodes ...*graph.Node) {
	t.Helper()
	if err := s.UpsertNodes(context.Background(), nodes); err != nil {
		t.Fatalf("UpsertNodes: %v", err)
	}
}

func fn(path, name, qname string, line int) *graph.Node {
	return &graph.Node{
		ID:            graph.NewNodeID(graph.NodeFunction, path, name),
		Kind:          graph.NodeFunction,
		Name:          name,
		QualifiedName: qname,
		FilePath:      path,
		LineStart:     line,
	}
}

func TestResolveByID(t *testing.T) {
	r, s := newTestResolver(t)
	node := fn("a.py", "login", "a.login", 5)
	seed(t, s, node)

	out, err := r.Resolve(context.Background(), node.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}
	if out.Node().ID != node.ID {
		t.Errorf("resolved %s, want %s", out.Node().ID, node.ID)
	}
}

func TestResolveByQualifiedName(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s,
		fn("a.py", "login", "a.login", 5),
		fn("b.py", "login", "b.login", 9),
	)

	out, err := r.Resolve(context.Background(), "b.login")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}
	if out.Node().FilePath != "b.py" {
		t.Errorf("resolved node in %s, want b.py", out.Node().FilePath)
	}
}

func TestResolveAmbiguousOrdering(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s,
		fn("z.py", "handler", "z.handler", 1),
		fn("a.py", "handler", "a.handler", 30),
		fn("a.py", "handler2", "a.handler2", 2),
	)

	out, err := r.Resolve(context.Background(), "handler")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Ambiguous {
		t.Fatalf("Kind = %s, want ambiguous", out.Kind)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("Matches = %d, want 2", len(out.Matches))
	}
	// Ordered by (file path, line start): a.py before z.py.
	if out.Matches[0].FilePath != "a.py" || out.Matches[1].FilePath != "z.py" {
		t.Errorf("match order = [%s, %s], want [a.py, z.py]",
			out.Matches[0].FilePath, out.Matches[1].FilePath)
	}
}

// An exact name match must win over a case-insensitive one even though the
// scan-based rung would find the other node first.
func TestExactBeatsCaseInsensitive(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s,
		fn("a.py", "Handler", "a.Handler", 1),
		fn("b.py", "handler", "b.handler", 1),
	)

	out, err := r.Resolve(context.Background(), "handler")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}
	if out.Node().Name != "handler" {
		t.Errorf("resolved %q, want exact-case %q", out.Node().Name, "handler")
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s, fn("a.py", "Handler", "a.Handler", 1))

	out, err := r.Resolve(context.Background(), "handler")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}
	if out.Node().Name != "Handler" {
		t.Errorf("resolved %q", out.Node().Name)
	}
}

func TestResolveQualifiedSuffix(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s, fn("pkg/auth.py", "login", "pkg.auth.login", 1))

	out, err := r.Resolve(context.Background(), "auth.login")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}

	// A suffix that crosses a component boundary must not match.
	out, err = r.Resolve(context.Background(), "th.login")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != NotFound {
		t.Errorf("partial-component suffix resolved to %v", out.Matches)
	}
}

func TestResolveNotFound(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s, fn("a.py", "login", "a.login", 1))

	out, err := r.Resolve(context.Background(), "does_not_exist")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != NotFound {
		t.Errorf("Kind = %s, want not found", out.Kind)
	}
	if out.Node() != nil {
		t.Errorf("Node() = %v, want nil", out.Node())
	}
}

func TestResolveCacheInvalidation(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()
	seed(t, s, fn("a.py", "login", "a.login", 1))

	out, err := r.Resolve(ctx, "login")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}

	// Adding a second node with the same name must flip the cached outcome.
	seed(t, s, fn("b.py", "login", "b.login", 1))
	out, err = r.Resolve(ctx, "login")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != Ambiguous {
		t.Errorf("Kind after mutation = %s, want ambiguous", out.Kind)
	}
}

func TestResolveInNarrowsAmbiguityToScope(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s,
		fn("a.py", "handler", "a.handler", 3),
		fn("b.py", "handler", "b.handler", 7),
	)

	out, err := r.ResolveIn(context.Background(), "handler", "b.py")
	if err != nil {
		t.Fatalf("ResolveIn: %v", err)
	}
	if out.Kind != Unique {
		t.Fatalf("Kind = %s, want unique", out.Kind)
	}
	if out.Node().FilePath != "b.py" {
		t.Errorf("resolved in %s, want b.py", out.Node().FilePath)
	}
}

func TestResolveInKeepsMatchesOutsideEmptyScope(t *testing.T) {
	r, s := newTestResolver(t)
	seed(t, s,
		fn("a.py", "handler", "a.handler", 3),
		fn("b.py", "handler", "b.handler", 7),
	)

	out, err := r.ResolveIn(context.Background(), "handler", "c.py")
	if err != nil {
		t.Fatalf("ResolveIn: %v", err)
	}
	if out.Kind != Ambiguous || len(out.Matches) != 2 {
		t.Fatalf("got %s with %d matches, want both kept", out.Kind, len(out.Matches))
	}
}
