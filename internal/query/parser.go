package query

import (
	"strconv"
	"strings"

	"codegraph/internal/graph"
)

// Tables addressable from a query, mapped to node kinds.
var tableKinds = map[string]graph.NodeKind{
	"modules":   graph.NodeModule,
	"classes":   graph.NodeClass,
	"functions": graph.NodeFunction,
	"external":  graph.NodeExternal,
}

// TableKind maps a query table name to its node kind.
func TableKind(table string) (graph.NodeKind, bool) {
	k, ok := tableKinds[table]
	return k, ok
}

// SchemaColumns is the fixed column set every table exposes; SELECT *
// expands to exactly this order.
var SchemaColumns = []string{
	"id", "kind", "name", "qualified_name",
	"file_path", "line_start", "line_end", "complexity",
}

type parser struct {
	lex  *lexer
	tok  Token // current
	peek Token
	err  error
}

// Parse parses a single query. Keywords are case-insensitive; table and
// column names are lowercased. Any malformed input yields a *SyntaxError.
func Parse(input string) (Query, error) {
	p := &parser{lex: newLexer(input)}
	p.advance()
	p.advance()
	if p.err != nil {
		return nil, p.err
	}

	var q Query
	var err error
	switch p.keyword() {
	case "SELECT":
		q, err = p.parseSelect()
	case "FIND":
		q, err = p.parseFind()
	case "SHOW":
		q, err = p.parseShow()
	case "PATH":
		q, err = p.parsePath()
	case "ANALYZE":
		q, err = p.parseAnalyze()
	default:
		return nil, syntaxErr(p.tok, "expected SELECT, FIND, SHOW, PATH, or ANALYZE")
	}
	if err != nil {
		return nil, err
	}
	if p.tok.Type != TokenEOF {
		return nil, syntaxErr(p.tok, "unexpected trailing input")
	}
	return q, nil
}

func (p *parser) advance() {
	p.tok = p.peek
	if p.err != nil {
		return
	}
	next, err := p.lex.next()
	if err != nil {
		p.err = err
		p.peek = Token{Type: TokenEOF, Pos: p.lex.pos}
		return
	}
	p.peek = next
}

// keyword returns the current token uppercased when it is an identifier,
// for case-insensitive keyword matching.
func (p *parser) keyword() string {
	if p.tok.Type != TokenIdent {
		return ""
	}
	return strings.ToUpper(p.tok.Text)
}

func (p *parser) accept(kw string) bool {
	if p.keyword() == kw {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kw string) error {
	if !p.accept(kw) {
		return syntaxErr(p.tok, "expected "+kw)
	}
	return p.err
}

func (p *parser) parseTable() (string, error) {
	if p.tok.Type != TokenIdent {
		return "", syntaxErr(p.tok, "expected a table name")
	}
	table := strings.ToLower(p.tok.Text)
	if _, ok := tableKinds[table]; !ok {
		return "", syntaxErr(p.tok, "unknown table (expected modules, classes, functions, or external)")
	}
	p.advance()
	return table, p.err
}

// parseTarget consumes a node reference: a bare identifier (id, name, or
// qualified name) or a quoted string.
func (p *parser) parseTarget() (string, error) {
	switch p.tok.Type {
	case TokenIdent, TokenString:
		t := p.tok.Text
		p.advance()
		return t, p.err
	}
	return "", syntaxErr(p.tok, "expected a node reference")
}

func (p *parser) parseInt(what string) (int, error) {
	if p.tok.Type != TokenNumber {
		return 0, syntaxErr(p.tok, "expected a number for "+what)
	}
	n, err := strconv.Atoi(p.tok.Text)
	if err != nil || n < 0 {
		return 0, syntaxErr(p.tok, what+" must be a non-negative integer")
	}
	p.advance()
	return n, p.err
}

func (p *parser) parseSelect() (*SelectQuery, error) {
	p.advance() // SELECT
	q := &SelectQuery{Limit: -1}

	if p.tok.Type == TokenStar {
		q.Star = true
		p.advance()
	} else {
		for {
			if p.tok.Type != TokenIdent {
				return nil, syntaxErr(p.tok, "expected a column name")
			}
			q.Columns = append(q.Columns, strings.ToLower(p.tok.Text))
			p.advance()
			if p.tok.Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	q.Table = table

	if p.accept("WHERE") {
		q.Where, err = p.parseWhere()
		if err != nil {
			return nil, err
		}
	}
	if p.accept("ORDER") {
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		if p.tok.Type != TokenIdent {
			return nil, syntaxErr(p.tok, "expected a column name after ORDER BY")
		}
		q.OrderBy = strings.ToLower(p.tok.Text)
		p.advance()
		if p.accept("DESC") {
			q.Desc = true
		} else {
			p.accept("ASC")
		}
	}
	if p.accept("LIMIT") {
		n, err := p.parseInt("LIMIT")
		if err != nil {
			return nil, err
		}
		q.Limit = n
	}
	return q, p.err
}

func (p *parser) parseWhere() ([]Comparison, error) {
	var conj []Comparison
	for {
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		conj = append(conj, cmp)
		if !p.accept("AND") {
			break
		}
	}
	return conj, p.err
}

func (p *parser) parseComparison() (Comparison, error) {
	if p.tok.Type != TokenIdent {
		return Comparison{}, syntaxErr(p.tok, "expected a column name")
	}
	col := strings.ToLower(p.tok.Text)
	p.advance()

	var op CompareOp
	switch {
	case p.tok.Type == TokenOp:
		op = CompareOp(p.tok.Text)
		p.advance()
	case p.keyword() == "LIKE":
		op = OpLike
		p.advance()
	default:
		return Comparison{}, syntaxErr(p.tok, "expected a comparison operator")
	}

	var val Value
	switch p.tok.Type {
	case TokenString, TokenIdent:
		val = Value{Str: p.tok.Text}
	case TokenNumber:
		n, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return Comparison{}, syntaxErr(p.tok, "malformed number")
		}
		val = Value{Num: n, IsNum: true, Str: p.tok.Text}
	default:
		return Comparison{}, syntaxErr(p.tok, "expected a literal value")
	}
	p.advance()
	return Comparison{Column: col, Op: op, Value: val}, p.err
}

func (p *parser) parseFind() (Query, error) {
	p.advance() // FIND

	if p.accept("CYCLES") {
		q := &FindCyclesQuery{}
		if p.accept("FOR") {
			for {
				if p.tok.Type != TokenIdent {
					return nil, syntaxErr(p.tok, "expected an edge kind")
				}
				kind, ok := graph.ParseEdgeKind(p.tok.Text)
				if !ok {
					return nil, syntaxErr(p.tok, "unknown edge kind")
				}
				q.Kinds = append(q.Kinds, kind)
				p.advance()
				if p.tok.Type != TokenComma {
					break
				}
				p.advance()
			}
		}
		return q, p.err
	}

	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	switch p.keyword() {
	case "CALLING":
		p.advance()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &FindCallingQuery{Table: table, Target: target}, p.err
	case "WITH":
		p.advance()
		if err := p.expect("DECORATOR"); err != nil {
			return nil, err
		}
		if p.tok.Type != TokenString && p.tok.Type != TokenIdent {
			return nil, syntaxErr(p.tok, "expected a decorator name")
		}
		dec := p.tok.Text
		p.advance()
		return &FindDecoratorQuery{Table: table, Decorator: dec}, p.err
	}
	return nil, syntaxErr(p.tok, "expected CALLING or WITH DECORATOR")
}

func (p *parser) parseShow() (*ShowQuery, error) {
	p.advance() // SHOW
	q := &ShowQuery{}
	switch p.keyword() {
	case "DEPENDENCIES":
	case "DEPENDENTS":
		q.Dependents = true
	default:
		return nil, syntaxErr(p.tok, "expected dependencies or dependents")
	}
	p.advance()
	if err := p.expect("OF"); err != nil {
		return nil, err
	}
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	q.Target = target
	if p.accept("DEPTH") {
		q.Depth, err = p.parseInt("DEPTH")
		if err != nil {
			return nil, err
		}
	}
	return q, p.err
}

func (p *parser) parsePath() (*PathQuery, error) {
	p.advance() // PATH
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	if err := p.expect("TO"); err != nil {
		return nil, err
	}
	to, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	q := &PathQuery{From: from, To: to}
	if p.accept("MAX") {
		if err := p.expect("DEPTH"); err != nil {
			return nil, err
		}
		q.MaxDepth, err = p.parseInt("MAX DEPTH")
		if err != nil {
			return nil, err
		}
	}
	return q, p.err
}

func (p *parser) parseAnalyze() (*AnalyzeQuery, error) {
	p.advance() // ANALYZE
	if strings.ToLower(p.tok.Text) != "complexity" || p.tok.Type != TokenIdent {
		return nil, syntaxErr(p.tok, "expected complexity")
	}
	p.advance()
	q := &AnalyzeQuery{}
	if p.accept("FOR") {
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		q.Target = target
	}
	return q, p.err
}
