// Package exec plans and runs parsed queries against the store, the
// algorithm engine, and the name resolver.
package exec

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"codegraph/internal/engine"
	"codegraph/internal/graph"
	"codegraph/internal/query"
	"codegraph/internal/resolver"
)

// Result is the uniform answer shape for every query form. User-level
// failures (syntax, unresolvable targets) populate Error with zero rows so
// that "no rows" and "failed" are never conflated; storage failures are
// returned as Go errors instead.
type Result struct {
	Columns   []string       `json:"columns"`
	Rows      [][]any        `json:"rows"`
	RowCount  int            `json:"row_count"`
	ElapsedMs float64        `json:"elapsed_ms"`
	Error     string         `json:"error,omitempty"`
	Summary   map[string]any `json:"summary,omitempty"`
}

// Executor runs queries. DefaultLimit caps SELECT results when the query
// carries no LIMIT clause; zero means unlimited.
type Executor struct {
	store        graph.Store
	engine       *engine.Engine
	resolver     *resolver.Resolver
	defaultLimit int
}

func New(store graph.Store, eng *engine.Engine, res *resolver.Resolver, defaultLimit int) *Executor {
	return &Executor{store: store, engine: eng, resolver: res, defaultLimit: defaultLimit}
}

// Execute parses and runs one query. The returned error is reserved for
// storage-level failures; anything the user can fix lands in Result.Error.
func (x *Executor) Execute(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	q, err := query.Parse(input)
	if err != nil {
		return finish(&Result{Error: err.Error()}, start), nil
	}

	var res *Result
	switch q := q.(type) {
	case *query.SelectQuery:
		res, err = x.runSelect(ctx, q)
	case *query.FindCallingQuery:
		res, err = x.runFindCalling(ctx, q)
	case *query.FindCyclesQuery:
		res, err = x.runFindCycles(ctx, q)
	case *query.FindDecoratorQuery:
		res, err = x.runFindDecorator(ctx, q)
	case *query.ShowQuery:
		res, err = x.runShow(ctx, q)
	case *query.PathQuery:
		res, err = x.runPath(ctx, q)
	case *query.AnalyzeQuery:
		res, err = x.runAnalyze(ctx, q)
	default:
		return nil, fmt.Errorf("exec: unhandled query form %T", q)
	}
	if err != nil {
		return nil, err
	}
	return finish(res, start), nil
}

func finish(res *Result, start time.Time) *Result {
	res.RowCount = len(res.Rows)
	res.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
	return res
}

func errResult(format string, args ...any) *Result {
	return &Result{Error: fmt.Sprintf(format, args...)}
}

// nodeRow projects a node onto the given columns.
func nodeRow(n *graph.Node, cols []string) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = columnValue(n, c)
	}
	return row
}

func columnValue(n *graph.Node, col string) any {
	switch col {
	case "id":
		return n.ID
	case "kind":
		return string(n.Kind)
	case "name":
		return n.Name
	case "qualified_name":
		return n.QualifiedName
	case "file_path":
		return n.FilePath
	case "line_start":
		return n.LineStart
	case "line_end":
		return n.LineEnd
	case "complexity":
		return n.Complexity
	}
	if key, ok := strings.CutPrefix(col, "properties."); ok {
		return n.Properties[key]
	}
	return nil
}

func validColumn(col string) bool {
	if strings.HasPrefix(col, "properties.") {
		return len(col) > len("properties.")
	}
	for _, c := range query.SchemaColumns {
		if c == col {
			return true
		}
	}
	return false
}

func numericColumn(col string) bool {
	switch col {
	case "line_start", "line_end", "complexity":
		return true
	}
	return false
}

func (x *Executor) runSelect(ctx context.Context, q *query.SelectQuery) (*Result, error) {
	cols := q.Columns
	if q.Star {
		cols = query.SchemaColumns
	}
	for _, c := range cols {
		if !validColumn(c) {
			return errResult("unknown column %q", c), nil
		}
	}
	if q.OrderBy != "" && !validColumn(q.OrderBy) {
		return errResult("unknown column %q in ORDER BY", q.OrderBy), nil
	}

	pred, err := compilePredicate(q.Where)
	if err != nil {
		return &Result{Columns: cols, Error: err.Error()}, nil
	}

	kind, _ := query.TableKind(q.Table)
	var nodes []*graph.Node
	scanErr := x.store.ScanNodes(ctx, kind, func(n *graph.Node) bool {
		if pred(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	if scanErr != nil {
		return nil, fmt.Errorf("select scan: %w", scanErr)
	}

	orderNodes(nodes, q.OrderBy, q.Desc)

	limit := q.Limit
	if limit < 0 {
		limit = x.defaultLimit
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}

	res := &Result{Columns: cols, Rows: make([][]any, 0, len(nodes))}
	for _, n := range nodes {
		res.Rows = append(res.Rows, nodeRow(n, cols))
	}
	return res, nil
}

// orderNodes sorts by the requested column with id as the tie-break, so
// result order is stable across runs. No ORDER BY sorts by id.
func orderNodes(nodes []*graph.Node, col string, desc bool) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if col != "" {
			if c := compareValues(columnValue(a, col), columnValue(b, col)); c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return a.ID < b.ID
	})
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case int:
		bv, _ := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	}
	return 0
}

// compilePredicate turns the ANDed WHERE conjuncts into a single matcher.
// LIKE patterns use SQL wildcards (% and _) and are compiled once.
func compilePredicate(where []query.Comparison) (func(*graph.Node) bool, error) {
	if len(where) == 0 {
		return func(*graph.Node) bool { return true }, nil
	}
	type matcher func(*graph.Node) bool
	matchers := make([]matcher, 0, len(where))
	for _, cmp := range where {
		if !validColumn(cmp.Column) {
			return nil, fmt.Errorf("unknown column %q in WHERE", cmp.Column)
		}
		m, err := compileComparison(cmp)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return func(n *graph.Node) bool {
		for _, m := range matchers {
			if !m(n) {
				return false
			}
		}
		return true
	}, nil
}

func compileComparison(cmp query.Comparison) (func(*graph.Node) bool, error) {
	col := cmp.Column
	switch cmp.Op {
	case query.OpLike:
		if cmp.Value.IsNum {
			return nil, fmt.Errorf("LIKE requires a string pattern on %q", col)
		}
		re, err := compileLike(cmp.Value.Str)
		if err != nil {
			return nil, err
		}
		return func(n *graph.Node) bool {
			s, _ := columnValue(n, col).(string)
			return re.MatchString(s)
		}, nil
	case query.OpLt, query.OpLte, query.OpGt, query.OpGte:
		if !numericColumn(col) {
			return nil, fmt.Errorf("operator %s requires a numeric column, got %q", cmp.Op, col)
		}
		if !cmp.Value.IsNum {
			return nil, fmt.Errorf("operator %s on %q requires a numeric literal", cmp.Op, col)
		}
		want := cmp.Value.Num
		op := cmp.Op
		return func(n *graph.Node) bool {
			v, ok := columnValue(n, col).(int)
			if !ok {
				return false
			}
			f := float64(v)
			switch op {
			case query.OpLt:
				return f < want
			case query.OpLte:
				return f <= want
			case query.OpGt:
				return f > want
			default:
				return f >= want
			}
		}, nil
	case query.OpEq, query.OpNeq:
		neq := cmp.Op == query.OpNeq
		if numericColumn(col) && cmp.Value.IsNum {
			want := int(cmp.Value.Num)
			return func(n *graph.Node) bool {
				v, _ := columnValue(n, col).(int)
				return (v == want) != neq
			}, nil
		}
		want := cmp.Value.Str
		return func(n *graph.Node) bool {
			v := fmt.Sprint(columnValue(n, col))
			return (v == want) != neq
		}, nil
	}
	return nil, fmt.Errorf("unsupported operator %s", cmp.Op)
}

func compileLike(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("malformed LIKE pattern %q: %w", pattern, err)
	}
	return re, nil
}

// resolveTarget resolves a node reference for the graph-native forms. An
// ambiguous reference proceeds with the deterministic best match.
func (x *Executor) resolveTarget(ctx context.Context, target string) (*graph.Node, string, error) {
	out, err := x.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %q: %w", target, err)
	}
	if out.Kind == resolver.NotFound {
		return nil, fmt.Sprintf("cannot resolve %q: no matching node", target), nil
	}
	return out.Node(), "", nil
}

func (x *Executor) runFindCalling(ctx context.Context, q *query.FindCallingQuery) (*Result, error) {
	target, failure, err := x.resolveTarget(ctx, q.Target)
	if err != nil {
		return nil, err
	}
	if target == nil {
		// An unresolved target is an error, not an unfiltered table.
		return &Result{Columns: query.SchemaColumns, Error: failure}, nil
	}

	callers, err := x.store.EdgesTo(ctx, target.ID, graph.EdgeCalls)
	if err != nil {
		return nil, fmt.Errorf("callers of %s: %w", target.ID, err)
	}
	kind, _ := query.TableKind(q.Table)
	seen := make(map[string]bool)
	var nodes []*graph.Node
	for _, e := range callers {
		if seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		n, err := x.store.GetNode(ctx, e.SourceID)
		if err != nil {
			return nil, fmt.Errorf("caller %s: %w", e.SourceID, err)
		}
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	orderNodes(nodes, "", false)

	res := &Result{Columns: query.SchemaColumns}
	for _, n := range nodes {
		res.Rows = append(res.Rows, nodeRow(n, query.SchemaColumns))
	}
	return res, nil
}

func (x *Executor) runFindCycles(ctx context.Context, q *query.FindCyclesQuery) (*Result, error) {
	cycles, err := x.engine.FindCycles(ctx, q.Kinds)
	if err != nil {
		return nil, fmt.Errorf("find cycles: %w", err)
	}
	res := &Result{Columns: []string{"cycle", "length", "nodes"}}
	for i, c := range cycles {
		res.Rows = append(res.Rows, []any{i + 1, len(c), strings.Join(c, " -> ")})
	}
	return res, nil
}

func (x *Executor) runFindDecorator(ctx context.Context, q *query.FindDecoratorQuery) (*Result, error) {
	kind, _ := query.TableKind(q.Table)
	var nodes []*graph.Node
	err := x.store.ScanNodes(ctx, kind, func(n *graph.Node) bool {
		if hasDecorator(n, q.Decorator) {
			nodes = append(nodes, n)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("decorator scan: %w", err)
	}
	orderNodes(nodes, "", false)

	res := &Result{Columns: query.SchemaColumns}
	for _, n := range nodes {
		res.Rows = append(res.Rows, nodeRow(n, query.SchemaColumns))
	}
	return res, nil
}

// hasDecorator checks the comma-separated properties["decorators"] list.
func hasDecorator(n *graph.Node, name string) bool {
	raw, ok := n.Properties["decorators"]
	if !ok {
		return false
	}
	for _, d := range strings.Split(raw, ",") {
		if strings.TrimSpace(d) == name {
			return true
		}
	}
	return false
}

func (x *Executor) runShow(ctx context.Context, q *query.ShowQuery) (*Result, error) {
	target, failure, err := x.resolveTarget(ctx, q.Target)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return &Result{Columns: query.SchemaColumns, Error: failure}, nil
	}

	var ids []string
	switch {
	case q.Depth > 0:
		dir := engine.Forward
		if q.Dependents {
			dir = engine.Backward
		}
		ids, err = x.engine.Neighbors(ctx, target.ID, dir, q.Depth, nil)
	case q.Dependents:
		ids, err = x.engine.Ancestors(ctx, target.ID, nil)
	default:
		ids, err = x.engine.Impact(ctx, target.ID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("traverse from %s: %w", target.ID, err)
	}
	return x.rowsForIDs(ctx, ids)
}

func (x *Executor) rowsForIDs(ctx context.Context, ids []string) (*Result, error) {
	res := &Result{Columns: query.SchemaColumns}
	for _, id := range ids {
		n, err := x.store.GetNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		res.Rows = append(res.Rows, nodeRow(n, query.SchemaColumns))
	}
	return res, nil
}

func (x *Executor) runPath(ctx context.Context, q *query.PathQuery) (*Result, error) {
	from, failure, err := x.resolveTarget(ctx, q.From)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return &Result{Columns: pathColumns, Error: failure}, nil
	}
	to, failure, err := x.resolveTarget(ctx, q.To)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return &Result{Columns: pathColumns, Error: failure}, nil
	}

	path, err := x.engine.ShortestPath(ctx, from.ID, to.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("path %s -> %s: %w", from.ID, to.ID, err)
	}
	if path == nil || (q.MaxDepth > 0 && len(path)-1 > q.MaxDepth) {
		return &Result{Columns: pathColumns}, nil
	}

	res := &Result{Columns: pathColumns}
	for i, id := range path {
		n, err := x.store.GetNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		res.Rows = append(res.Rows, []any{i, n.ID, n.Name, n.FilePath})
	}
	return res, nil
}

var pathColumns = []string{"step", "id", "name", "file_path"}

var analyzeColumns = []string{"name", "qualified_name", "file_path", "complexity"}

const analyzeTopN = 25

func (x *Executor) runAnalyze(ctx context.Context, q *query.AnalyzeQuery) (*Result, error) {
	var scope func(*graph.Node) bool
	if q.Target != "" {
		target, failure, err := x.resolveTarget(ctx, q.Target)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return &Result{Columns: analyzeColumns, Error: failure}, nil
		}
		switch target.Kind {
		case graph.NodeFunction:
			id := target.ID
			scope = func(n *graph.Node) bool { return n.ID == id }
		default:
			// A module or class target scopes the analysis to its file.
			fp := target.FilePath
			scope = func(n *graph.Node) bool { return n.FilePath == fp }
		}
	} else {
		scope = func(*graph.Node) bool { return true }
	}

	var fns []*graph.Node
	count, total, max := 0, 0, 0
	err := x.store.ScanNodes(ctx, graph.NodeFunction, func(n *graph.Node) bool {
		if !scope(n) {
			return true
		}
		count++
		total += n.Complexity
		if n.Complexity > max {
			max = n.Complexity
		}
		fns = append(fns, n)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("complexity scan: %w", err)
	}

	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Complexity != fns[j].Complexity {
			return fns[i].Complexity > fns[j].Complexity
		}
		return fns[i].ID < fns[j].ID
	})
	if len(fns) > analyzeTopN {
		fns = fns[:analyzeTopN]
	}

	res := &Result{Columns: analyzeColumns}
	for _, n := range fns {
		res.Rows = append(res.Rows, []any{n.Name, n.QualifiedName, n.FilePath, n.Complexity})
	}
	res.Summary = map[string]any{
		"functions":        count,
		"total_complexity": total,
		"max_complexity":   max,
	}
	if count > 0 {
		res.Summary["avg_complexity"] = float64(total) / float64(count)
	}
	return res, nil
}
