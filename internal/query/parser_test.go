package query

import (
	"errors"
	"reflect"
	"testing"

	"codegraph/internal/graph"
)

func TestParseSelectStar(t *testing.T) {
	q, err := Parse(`SELECT * FROM functions`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel, ok := q.(*SelectQuery)
	if !ok {
		t.Fatalf("got %T, want *SelectQuery", q)
	}
	if !sel.Star || sel.Table != "functions" || sel.Limit != -1 {
		t.Fatalf("unexpected query: %+v", sel)
	}
}

func TestParseSelectColumns(t *testing.T) {
	q, err := Parse(`select name, complexity from functions where complexity > 10 order by complexity desc limit 5`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel := q.(*SelectQuery)
	if !reflect.DeepEqual(sel.Columns, []string{"name", "complexity"}) {
		t.Fatalf("columns = %v", sel.Columns)
	}
	if len(sel.Where) != 1 {
		t.Fatalf("want 1 conjunct, got %d", len(sel.Where))
	}
	w := sel.Where[0]
	if w.Column != "complexity" || w.Op != OpGt || !w.Value.IsNum || w.Value.Num != 10 {
		t.Fatalf("where = %+v", w)
	}
	if sel.OrderBy != "complexity" || !sel.Desc || sel.Limit != 5 {
		t.Fatalf("order/limit = %+v", sel)
	}
}

func TestParseWhereConjunction(t *testing.T) {
	q, err := Parse(`SELECT * FROM classes WHERE file_path LIKE "auth%" AND name != "Base" AND properties.abstract = "true"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel := q.(*SelectQuery)
	if len(sel.Where) != 3 {
		t.Fatalf("want 3 conjuncts, got %d", len(sel.Where))
	}
	if sel.Where[0].Op != OpLike || sel.Where[0].Value.Str != "auth%" {
		t.Fatalf("like = %+v", sel.Where[0])
	}
	if sel.Where[2].Column != "properties.abstract" {
		t.Fatalf("property column = %q", sel.Where[2].Column)
	}
}

func TestParseFindCalling(t *testing.T) {
	q, err := Parse(`FIND functions CALLING pkg.auth.login`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := q.(*FindCallingQuery)
	if fc.Table != "functions" || fc.Target != "pkg.auth.login" {
		t.Fatalf("got %+v", fc)
	}
}

func TestParseFindCyclesWithKinds(t *testing.T) {
	q, err := Parse(`FIND CYCLES FOR imports, calls`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fcy := q.(*FindCyclesQuery)
	want := []graph.EdgeKind{graph.EdgeImports, graph.EdgeCalls}
	if !reflect.DeepEqual(fcy.Kinds, want) {
		t.Fatalf("kinds = %v", fcy.Kinds)
	}
}

func TestParseFindDecorator(t *testing.T) {
	q, err := Parse(`FIND functions WITH DECORATOR "lru_cache"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fd := q.(*FindDecoratorQuery)
	if fd.Table != "functions" || fd.Decorator != "lru_cache" {
		t.Fatalf("got %+v", fd)
	}
}

func TestParseShow(t *testing.T) {
	q, err := Parse(`SHOW dependents OF "fn:pkg/auth.py:login" DEPTH 2`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sh := q.(*ShowQuery)
	if !sh.Dependents || sh.Target != "fn:pkg/auth.py:login" || sh.Depth != 2 {
		t.Fatalf("got %+v", sh)
	}
}

func TestParsePath(t *testing.T) {
	q, err := Parse(`PATH FROM fn:a.py:f TO fn:b.py:g MAX DEPTH 4`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pq := q.(*PathQuery)
	if pq.From != "fn:a.py:f" || pq.To != "fn:b.py:g" || pq.MaxDepth != 4 {
		t.Fatalf("got %+v", pq)
	}
}

func TestParseAnalyze(t *testing.T) {
	q, err := Parse(`ANALYZE complexity FOR mod:pkg/auth.py`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	an := q.(*AnalyzeQuery)
	if an.Target != "mod:pkg/auth.py" {
		t.Fatalf("got %+v", an)
	}

	q, err = Parse(`ANALYZE complexity`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.(*AnalyzeQuery).Target != "" {
		t.Fatal("want empty target")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		``,
		`SELECT`,
		`SELECT * FROM widgets`,
		`SELECT name FROM functions WHERE`,
		`SELECT name FROM functions WHERE name`,
		`SELECT * FROM functions LIMIT nope`,
		`FIND CYCLES FOR flies`,
		`FIND functions`,
		`SHOW stuff OF x`,
		`PATH FROM a`,
		`SELECT * FROM functions garbage`,
		`SELECT * FROM functions WHERE name = "unterminated`,
	}
	for _, in := range cases {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q): expected error", in)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q): error %v is not a *SyntaxError", in, err)
		}
	}
}

func TestParseCaseInsensitiveKeywords(t *testing.T) {
	if _, err := Parse(`sElEcT * fRoM modules oRdEr bY name AsC`); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestLexUnicodeIdentifier(t *testing.T) {
	l := newLexer("paquete.café.módulo")
	tok, err := l.next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if tok.Type != TokenIdent || tok.Text != "paquete.café.módulo" {
		t.Fatalf("got token %+v, want one identifier", tok)
	}
	if tok, err = l.next(); err != nil || tok.Type != TokenEOF {
		t.Fatalf("got %+v, %v, want EOF", tok, err)
	}
}

func TestParseUnicodeTarget(t *testing.T) {
	q, err := Parse(`FIND functions CALLING pkg.café.login`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := q.(*FindCallingQuery)
	if fc.Target != "pkg.café.login" {
		t.Fatalf("got target %q", fc.Target)
	}
}
