package query

import "codegraph/internal/graph"

// Query is the tagged union of parsed query forms.
type Query interface {
	queryNode()
}

// CompareOp is a WHERE clause comparison operator.
type CompareOp string

const (
	OpEq   CompareOp = "="
	OpNeq  CompareOp = "!="
	OpLt   CompareOp = "<"
	OpLte  CompareOp = "<="
	OpGt   CompareOp = ">"
	OpGte  CompareOp = ">="
	OpLike CompareOp = "LIKE"
)

// Value is a literal operand: either a string or a number.
type Value struct {
	Str   string
	Num   float64
	IsNum bool
}

// Comparison is one column-operator-literal test. Column may be a schema
// column or a properties.<key> reference.
type Comparison struct {
	Column string
	Op     CompareOp
	Value  Value
}

// SelectQuery is SELECT cols FROM table [WHERE ...] [ORDER BY ...] [LIMIT n].
// Conjuncts are ANDed. Limit is -1 when absent.
type SelectQuery struct {
	Columns []string // empty when Star
	Star    bool
	Table   string
	Where   []Comparison
	OrderBy string
	Desc    bool
	Limit   int
}

// FindCallingQuery is FIND <table> CALLING <target>.
type FindCallingQuery struct {
	Table  string
	Target string
}

// FindCyclesQuery is FIND CYCLES [FOR <kinds>]. Empty Kinds means all.
type FindCyclesQuery struct {
	Kinds []graph.EdgeKind
}

// FindDecoratorQuery is FIND <table> WITH DECORATOR "<name>".
type FindDecoratorQuery struct {
	Table     string
	Decorator string
}

// ShowQuery is SHOW dependencies|dependents OF <target> [DEPTH n].
// Depth 0 means unbounded reachability.
type ShowQuery struct {
	Dependents bool
	Target     string
	Depth      int
}

// PathQuery is PATH FROM <a> TO <b> [MAX DEPTH n]. MaxDepth 0 means unbounded.
type PathQuery struct {
	From     string
	To       string
	MaxDepth int
}

// AnalyzeQuery is ANALYZE complexity [FOR <target>].
type AnalyzeQuery struct {
	Target string // empty means whole graph
}

func (*SelectQuery) queryNode()        {}
func (*FindCallingQuery) queryNode()   {}
func (*FindCyclesQuery) queryNode()    {}
func (*FindDecoratorQuery) queryNode() {}
func (*ShowQuery) queryNode()          {}
func (*PathQuery) queryNode()          {}
func (*AnalyzeQuery) queryNode()       {}
