package graph

import "testing"

func TestNewNodeID(t *testing.T) {
	tests := []struct {
		kind NodeKind
		path string
		name string
		want string
	}{
		{NodeModule, "pkg/auth.py", "", "mod:pkg/auth.py"},
		{NodeClass, "pkg/auth.py", "Session", "cls:pkg/auth.py:Session"},
		{NodeFunction, "pkg/auth.py", "login", "fn:pkg/auth.py:login"},
		{NodeExternal, "", "os.path.join", "ext:os.path.join"},
	}
	for _, tt := range tests {
		if got := NewNodeID(tt.kind, tt.path, tt.name); got != tt.want {
			t.Errorf("NewNodeID(%s, %q, %q) = %q, want %q", tt.kind, tt.path, tt.name, got, tt.want)
		}
	}
}

func TestNewNodeIDDeterministic(t *testing.T) {
	a := NewNodeID(NodeFunction, "main.py", "run")
	b := NewNodeID(NodeFunction, "main.py", "run")
	if a != b {
		t.Errorf("ids differ for identical inputs: %q vs %q", a, b)
	}
}

func TestParseNodeID(t *testing.T) {
	kind, rest, ok := ParseNodeID("cls:pkg/auth.py:Session")
	if !ok {
		t.Fatal("ParseNodeID: ok = false")
	}
	if kind != NodeClass {
		t.Errorf("kind = %s, want %s", kind, NodeClass)
	}
	if rest != "pkg/auth.py:Session" {
		t.Errorf("rest = %q", rest)
	}

	if _, _, ok := ParseNodeID("Session"); ok {
		t.Error("bare name parsed as node id")
	}
	if _, _, ok := ParseNodeID("unknown:foo"); ok {
		t.Error("unknown prefix parsed as node id")
	}
}

func TestNewEdgeIDCollapsesDuplicates(t *testing.T) {
	a := NewEdgeID(EdgeCalls, "fn:a.py:f", "fn:b.py:g")
	b := NewEdgeID(EdgeCalls, "fn:a.py:f", "fn:b.py:g")
	if a != b {
		t.Errorf("duplicate (source, target, kind) produced distinct ids: %q vs %q", a, b)
	}
	c := NewEdgeID(EdgeImports, "fn:a.py:f", "fn:b.py:g")
	if a == c {
		t.Error("different kinds produced the same edge id")
	}
}

func TestKindForTable(t *testing.T) {
	for _, k := range []NodeKind{NodeModule, NodeClass, NodeFunction, NodeExternal} {
		got, ok := KindForTable(k.Table())
		if !ok || got != k {
			t.Errorf("KindForTable(%q) = %s, %v", k.Table(), got, ok)
		}
	}
	if _, ok := KindForTable("edges"); ok {
		t.Error("edges is not a node table")
	}
}

func TestParseEdgeKind(t *testing.T) {
	if k, ok := ParseEdgeKind("calls"); !ok || k != EdgeCalls {
		t.Errorf("ParseEdgeKind(calls) = %s, %v", k, ok)
	}
	if _, ok := ParseEdgeKind("Owns"); ok {
		t.Error("unknown kind accepted")
	}
}
