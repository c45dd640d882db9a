// Package resolver maps user-supplied identifiers (bare names, qualified
// names, or full node ids) to concrete graph node identities.
package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"codegraph/internal/graph"
)

// OutcomeKind classifies a resolution result.
type OutcomeKind int

const (
	Unique OutcomeKind = iota
	Ambiguous
	NotFound
)

// String returns the string representation of an OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	case NotFound:
		return "not found"
	}
	return "unknown"
}

// Outcome is a structured resolution result. Ambiguity is not an error:
// Matches is ordered by (file path, line start, id) so the first element is a
// stable best guess callers may choose to use.
type Outcome struct {
	Kind    OutcomeKind
	Matches []*graph.Node
}

// Node returns the single or best-guess match, or nil for NotFound.
func (o Outcome) Node() *graph.Node {
	if len(o.Matches) == 0 {
		return nil
	}
	return o.Matches[0]
}

// DefaultCacheSize bounds the resolution cache. Interactive tooling resolves
// the same handful of targets repeatedly between graph changes.
const DefaultCacheSize = 512

type cacheEntry struct {
	version uint64
	outcome Outcome
}

// Resolver resolves identifier strings against a store. Results are cached
// per store version; any mutation invalidates them implicitly.
type Resolver struct {
	store graph.Store
	cache *lru.Cache[string, cacheEntry]
}

// New creates a Resolver over the given store.
func New(store graph.Store) *Resolver {
	return NewSized(store, DefaultCacheSize)
}

// NewSized creates a Resolver with an explicit cache capacity.
func NewSized(store graph.Store, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Resolver{store: store, cache: cache}
}

// Resolve runs the resolution ladder, first rung with hits wins:
//
//  1. literal node id that exists
//  2. exact qualified name
//  3. exact name, case-sensitive
//  4. exact name, case-insensitive
//  5. suffix of qualified name
//
// Exact rungs always beat fuzzy ones: a case-insensitive or suffix candidate
// is never returned when an exact match exists, regardless of discovery
// order.
func (r *Resolver) Resolve(ctx context.Context, query string) (Outcome, error) {
	return r.ResolveIn(ctx, query, "")
}

// ResolveIn resolves like Resolve, but when scopePath is non-empty an
// ambiguous outcome is narrowed to matches in that file first. Matches
// outside the scope are kept only when the scope holds none.
func (r *Resolver) ResolveIn(ctx context.Context, query, scopePath string) (Outcome, error) {
	version, err := r.store.Version(ctx)
	if err != nil {
		return Outcome{Kind: NotFound}, err
	}
	key := scopePath + "\x00" + query
	if entry, ok := r.cache.Get(key); ok && entry.version == version {
		return entry.outcome, nil
	}

	outcome, err := r.resolve(ctx, query)
	if err != nil {
		return Outcome{Kind: NotFound}, err
	}
	if scopePath != "" && outcome.Kind == Ambiguous {
		outcome = narrowToScope(outcome, scopePath)
	}
	r.cache.Add(key, cacheEntry{version: version, outcome: outcome})
	return outcome, nil
}

func narrowToScope(o Outcome, scopePath string) Outcome {
	var scoped []*graph.Node
	for _, n := range o.Matches {
		if n.FilePath == scopePath {
			scoped = append(scoped, n)
		}
	}
	if len(scoped) == 0 {
		return o
	}
	return outcomeFor(scoped)
}

func (r *Resolver) resolve(ctx context.Context, query string) (Outcome, error) {
	// Rung 1: the query is already a node id.
	if _, _, ok := graph.ParseNodeID(query); ok {
		node, err := r.store.GetNode(ctx, query)
		if err == nil {
			return Outcome{Kind: Unique, Matches: []*graph.Node{node}}, nil
		}
		if !errors.Is(err, graph.ErrNotFound) {
			return Outcome{}, err
		}
		// An id-shaped string that doesn't exist falls through: it may
		// still be a qualified name that happens to contain a colon.
	}

	// Rung 2: exact qualified name.
	nodes, err := r.store.FindByQualifiedName(ctx, query)
	if err != nil {
		return Outcome{}, err
	}
	if len(nodes) > 0 {
		return outcomeFor(nodes), nil
	}

	// Rung 3: exact name, case-sensitive.
	nodes, err = r.store.FindByName(ctx, query)
	if err != nil {
		return Outcome{}, err
	}
	if len(nodes) > 0 {
		return outcomeFor(nodes), nil
	}

	// Rungs 4 and 5 require a scan. One pass collects both so an exact-
	// insensitive hit still wins over a suffix hit found earlier in the scan.
	var insensitive, suffix []*graph.Node
	err = r.store.ScanNodes(ctx, "", func(n *graph.Node) bool {
		if strings.EqualFold(n.Name, query) {
			insensitive = append(insensitive, n)
		} else if n.QualifiedName != "" && hasDottedSuffix(n.QualifiedName, query) {
			suffix = append(suffix, n)
		}
		return true
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(insensitive) > 0 {
		return outcomeFor(insensitive), nil
	}
	if len(suffix) > 0 {
		return outcomeFor(suffix), nil
	}

	return Outcome{Kind: NotFound}, nil
}

// hasDottedSuffix reports whether qname ends with query at a component
// boundary, so "auth.login" matches "pkg.auth.login" but not "oauth.login".
func hasDottedSuffix(qname, query string) bool {
	if !strings.HasSuffix(qname, query) {
		return false
	}
	if len(qname) == len(query) {
		return true
	}
	return qname[len(qname)-len(query)-1] == '.'
}

func outcomeFor(nodes []*graph.Node) Outcome {
	sortMatches(nodes)
	if len(nodes) == 1 {
		return Outcome{Kind: Unique, Matches: nodes}
	}
	return Outcome{Kind: Ambiguous, Matches: nodes}
}

func sortMatches(nodes []*graph.Node) {
	sort.Slice(nodes, func(a, b int) bool {
		if nodes[a].FilePath != nodes[b].FilePath {
			return nodes[a].FilePath < nodes[b].FilePath
		}
		if nodes[a].LineStart != nodes[b].LineStart {
			return nodes[a].LineStart < nodes[b].LineStart
		}
		return nodes[a].ID < nodes[b].ID
	})
}
