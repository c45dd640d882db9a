// Package embedded implements graph.Store on BadgerDB. Badger's value log is
// the store's write-ahead segment; its transactions give readers snapshot
// isolation, which is what makes the per-file swap atomic.
package embedded

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"codegraph/internal/graph"
	"codegraph/internal/lock"
)

// Key prefixes for the BadgerDB key scheme.
const (
	prefixNode           = "n:"
	prefixEdge           = "e:"
	prefixIdxKind        = "idx:kind:"
	prefixIdxFile        = "idx:file:"
	prefixIdxName        = "idx:name:"
	prefixIdxQName       = "idx:qname:"
	prefixIdxEdge        = "idx:edge:"
	prefixIdxReverseEdge = "idx:redge:"

	keySchemaVersion = "meta:schema"
	keyGraphVersion  = "meta:version"
)

// schemaVersion is bumped only for additive layout changes. Opening a store
// written by a newer schema fails rather than corrupting it.
const schemaVersion = 1

// Store implements graph.Store using BadgerDB.
type Store struct {
	db        *badger.DB
	writeLock *lock.WriteLock
	readOnly  bool
}

// Options configures opening a store.
type Options struct {
	// ReadOnly skips write-lock acquisition. Mutating calls fail.
	ReadOnly bool
}

// Open opens (or creates) a badger-backed graph store at dbPath. A writable
// open acquires the single-writer lock first; if another process holds it,
// the error is graph.ErrLockConflict and the caller decides whether to retry
// or fall back to read-only.
func Open(dbPath string, opts Options) (*Store, error) {
	var wl *lock.WriteLock
	if !opts.ReadOnly {
		var err error
		wl, err = lock.Acquire(dbPath)
		if err != nil {
			return nil, err
		}
	}

	bopts := badger.DefaultOptions(dbPath)
	bopts.Logger = nil // suppress badger logs
	bopts.ReadOnly = opts.ReadOnly
	db, err := badger.Open(bopts)
	if err != nil {
		if wl != nil {
			_ = wl.Release()
		}
		return nil, graph.NewStorageError("open", err)
	}

	s := &Store{db: db, writeLock: wl, readOnly: opts.ReadOnly}
	if !opts.ReadOnly {
		if err := s.ensureSchema(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// ensureSchema records the schema version on first open and rejects stores
// written by a newer layout.
func (s *Store) ensureSchema() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte{schemaVersion})
		}
		if err != nil {
			return graph.NewStorageError("read schema version", err)
		}
		return item.Value(func(val []byte) error {
			if len(val) == 1 && val[0] <= schemaVersion {
				return nil
			}
			return fmt.Errorf("store schema version %v is newer than supported %d", val, schemaVersion)
		})
	})
}

// --- key functions ---

func nodeKey(id string) []byte { return []byte(prefixNode + id) }
func edgeKey(id string) []byte { return []byte(prefixEdge + id) }

func indexKindKey(kind graph.NodeKind, id string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s", prefixIdxKind, kind, id))
}

func indexFileKey(filePath, id string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s", prefixIdxFile, filePath, id))
}

func indexNameKey(name, id string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s", prefixIdxName, name, id))
}

func indexQNameKey(qname, id string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s", prefixIdxQName, qname, id))
}

func indexEdgeKey(sourceID string, kind graph.EdgeKind, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s\x00%s", prefixIdxEdge, sourceID, kind, edgeID))
}

func indexReverseEdgeKey(targetID string, kind graph.EdgeKind, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%s\x00%s", prefixIdxReverseEdge, targetID, kind, edgeID))
}

// --- writes ---

func (s *Store) checkWritable() error {
	if s.readOnly {
		return graph.NewStorageError("write", errors.New("store opened read-only"))
	}
	return nil
}

func (s *Store) UpsertNodes(_ context.Context, nodes []*graph.Node) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, n := range nodes {
			if err := putNodeInTxn(txn, n); err != nil {
				return err
			}
		}
		return bumpVersion(txn)
	})
	if err != nil {
		return graph.NewStorageError("upsert nodes", err)
	}
	return nil
}

func (s *Store) UpsertEdges(_ context.Context, edges []*graph.Edge) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range edges {
			if err := ensureEndpoints(txn, e); err != nil {
				return err
			}
			if err := putEdgeInTxn(txn, e); err != nil {
				return err
			}
		}
		return bumpVersion(txn)
	})
	if err != nil {
		return graph.NewStorageError("upsert edges", err)
	}
	return nil
}

// ReplaceFile performs the atomic per-file swap: delete everything for
// filePath, insert the fresh set, auto-create externals for dangling edge
// endpoints, and collect externals nothing references anymore — all in a
// single badger transaction so readers see either the old or the new state.
func (s *Store) ReplaceFile(_ context.Context, filePath string, nodes []*graph.Node, edges []*graph.Edge) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		touched, err := deleteFileInTxn(txn, filePath)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if err := putNodeInTxn(txn, n); err != nil {
				return err
			}
		}
		for _, e := range edges {
			if err := ensureEndpoints(txn, e); err != nil {
				return err
			}
			if err := putEdgeInTxn(txn, e); err != nil {
				return err
			}
		}
		if err := collectExternals(txn, touched); err != nil {
			return err
		}
		return bumpVersion(txn)
	})
	if err != nil {
		return graph.NewStorageError("replace file "+filePath, err)
	}
	return nil
}

func (s *Store) DeleteFile(_ context.Context, filePath string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		touched, err := deleteFileInTxn(txn, filePath)
		if err != nil {
			return err
		}
		if err := collectExternals(txn, touched); err != nil {
			return err
		}
		return bumpVersion(txn)
	})
	if err != nil {
		return graph.NewStorageError("delete file "+filePath, err)
	}
	return nil
}

// putNodeInTxn writes a node and its index entries, cleaning stale index
// entries when the node already exists with different attributes.
func putNodeInTxn(txn *badger.Txn, node *graph.Node) error {
	old, err := getNodeInTxn(txn, node.ID)
	if err == nil {
		if old.Kind != node.Kind {
			_ = txn.Delete(indexKindKey(old.Kind, old.ID))
		}
		if old.FilePath != node.FilePath && old.FilePath != "" {
			_ = txn.Delete(indexFileKey(old.FilePath, old.ID))
		}
		if old.Name != node.Name && old.Name != "" {
			_ = txn.Delete(indexNameKey(old.Name, old.ID))
		}
		if old.QualifiedName != node.QualifiedName && old.QualifiedName != "" {
			_ = txn.Delete(indexQNameKey(old.QualifiedName, old.ID))
		}
	} else if !errors.Is(err, graph.ErrNotFound) {
		return err
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	if err := txn.Set(indexKindKey(node.Kind, node.ID), nil); err != nil {
		return err
	}
	if node.FilePath != "" {
		if err := txn.Set(indexFileKey(node.FilePath, node.ID), nil); err != nil {
			return err
		}
	}
	if node.Name != "" {
		if err := txn.Set(indexNameKey(node.Name, node.ID), nil); err != nil {
			return err
		}
	}
	if node.QualifiedName != "" {
		if err := txn.Set(indexQNameKey(node.QualifiedName, node.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func putEdgeInTxn(txn *badger.Txn, edge *graph.Edge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	if err := txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := txn.Set(indexEdgeKey(edge.SourceID, edge.Kind, edge.ID), nil); err != nil {
		return err
	}
	return txn.Set(indexReverseEdgeKey(edge.TargetID, edge.Kind, edge.ID), nil)
}

// ensureEndpoints auto-creates an External node for an edge endpoint that
// does not exist yet and follows the external id grammar. Non-external
// dangling endpoints are left alone; the same file's node batch may still
// contain them.
func ensureEndpoints(txn *badger.Txn, edge *graph.Edge) error {
	for _, id := range []string{edge.SourceID, edge.TargetID} {
		kind, rest, ok := graph.ParseNodeID(id)
		if !ok || kind != graph.NodeExternal {
			continue
		}
		_, err := getNodeInTxn(txn, id)
		if errors.Is(err, graph.ErrNotFound) {
			name := rest
			if i := strings.LastIndex(rest, "."); i >= 0 && i < len(rest)-1 {
				name = rest[i+1:]
			}
			ext := &graph.Node{
				ID:            id,
				Kind:          graph.NodeExternal,
				Name:          name,
				QualifiedName: rest,
			}
			if err := putNodeInTxn(txn, ext); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

// deleteFileInTxn removes every node for filePath and every edge touching
// those nodes. It returns the ids of external nodes that lost an edge, so the
// caller can garbage-collect them after the new state is written.
func deleteFileInTxn(txn *badger.Txn, filePath string) (touchedExternals map[string]struct{}, err error) {
	touchedExternals = make(map[string]struct{})
	prefix := []byte(prefixIdxFile + filePath + "\x00")
	ids, err := scanIndexSuffixes(txn, prefix)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := deleteNodeInTxn(txn, id, touchedExternals); err != nil {
			return nil, err
		}
	}
	return touchedExternals, nil
}

// deleteNodeInTxn removes a node, its indexes, and all edges touching it.
func deleteNodeInTxn(txn *badger.Txn, id string, touchedExternals map[string]struct{}) error {
	node, err := getNodeInTxn(txn, id)
	if errors.Is(err, graph.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Forward edges (this node as source).
	edgeIDs, err := scanIndexSuffixes(txn, []byte(prefixIdxEdge+id+"\x00"))
	if err != nil {
		return err
	}
	// Reverse edges (this node as target).
	redgeIDs, err := scanIndexSuffixes(txn, []byte(prefixIdxReverseEdge+id+"\x00"))
	if err != nil {
		return err
	}
	for _, eid := range append(edgeIDs, redgeIDs...) {
		if err := deleteEdgeInTxn(txn, eid, touchedExternals); err != nil {
			return err
		}
	}

	_ = txn.Delete(indexKindKey(node.Kind, id))
	if node.FilePath != "" {
		_ = txn.Delete(indexFileKey(node.FilePath, id))
	}
	if node.Name != "" {
		_ = txn.Delete(indexNameKey(node.Name, id))
	}
	if node.QualifiedName != "" {
		_ = txn.Delete(indexQNameKey(node.QualifiedName, id))
	}
	return txn.Delete(nodeKey(id))
}

func deleteEdgeInTxn(txn *badger.Txn, id string, touchedExternals map[string]struct{}) error {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var edge graph.Edge
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &edge) }); err != nil {
		return fmt.Errorf("unmarshal edge %s: %w", id, err)
	}
	for _, nid := range []string{edge.SourceID, edge.TargetID} {
		if kind, _, ok := graph.ParseNodeID(nid); ok && kind == graph.NodeExternal {
			touchedExternals[nid] = struct{}{}
		}
	}
	_ = txn.Delete(indexEdgeKey(edge.SourceID, edge.Kind, edge.ID))
	_ = txn.Delete(indexReverseEdgeKey(edge.TargetID, edge.Kind, edge.ID))
	return txn.Delete(edgeKey(id))
}

// collectExternals removes External nodes from ids that no remaining edge
// references.
func collectExternals(txn *badger.Txn, ids map[string]struct{}) error {
	for id := range ids {
		fwd, err := scanIndexSuffixes(txn, []byte(prefixIdxEdge+id+"\x00"))
		if err != nil {
			return err
		}
		if len(fwd) > 0 {
			continue
		}
		rev, err := scanIndexSuffixes(txn, []byte(prefixIdxReverseEdge+id+"\x00"))
		if err != nil {
			return err
		}
		if len(rev) > 0 {
			continue
		}
		if err := deleteNodeInTxn(txn, id, map[string]struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

// bumpVersion increments the monotonic graph version counter.
func bumpVersion(txn *badger.Txn) error {
	var v uint64
	item, err := txn.Get([]byte(keyGraphVersion))
	if err == nil {
		_ = item.Value(func(val []byte) error {
			if len(val) == 8 {
				v = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v+1)
	return txn.Set([]byte(keyGraphVersion), buf)
}

// --- reads ---

func (s *Store) GetNode(_ context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := getNodeInTxn(txn, id)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, graph.ErrNotFound
		}
		return nil, graph.NewStorageError("get node "+id, err)
	}
	return node, nil
}

func getNodeInTxn(txn *badger.Txn, id string) (*graph.Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, graph.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node graph.Node
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &node) }); err != nil {
		return nil, fmt.Errorf("unmarshal node %s: %w", id, err)
	}
	return &node, nil
}

func (s *Store) FindByName(_ context.Context, name string) ([]*graph.Node, error) {
	return s.findByIndex(prefixIdxName + name + "\x00")
}

func (s *Store) FindByQualifiedName(_ context.Context, qname string) ([]*graph.Node, error) {
	return s.findByIndex(prefixIdxQName + qname + "\x00")
}

func (s *Store) findByIndex(prefix string) ([]*graph.Node, error) {
	var results []*graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIndexSuffixes(txn, []byte(prefix))
		if err != nil {
			return err
		}
		for _, id := range ids {
			n, err := getNodeInTxn(txn, id)
			if errors.Is(err, graph.ErrNotFound) {
				continue // index entry for deleted node; skip
			}
			if err != nil {
				return err
			}
			results = append(results, n)
		}
		return nil
	})
	if err != nil {
		return nil, graph.NewStorageError("find by index", err)
	}
	return results, nil
}

func (s *Store) ScanNodes(_ context.Context, kind graph.NodeKind, fn func(*graph.Node) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		if kind == "" {
			return scanAllNodes(txn, fn)
		}
		ids, err := scanIndexSuffixes(txn, []byte(fmt.Sprintf("%s%s\x00", prefixIdxKind, kind)))
		if err != nil {
			return err
		}
		for _, id := range ids {
			n, err := getNodeInTxn(txn, id)
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !fn(n) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return graph.NewStorageError("scan nodes", err)
	}
	return nil
}

func scanAllNodes(txn *badger.Txn, fn func(*graph.Node) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		var node graph.Node
		err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &node) })
		if err != nil {
			return err
		}
		if !fn(&node) {
			break
		}
	}
	return nil
}

func (s *Store) ScanEdges(_ context.Context, fn func(*graph.Edge) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		return scanAllEdges(txn, fn)
	})
	if err != nil {
		return graph.NewStorageError("scan edges", err)
	}
	return nil
}

func scanAllEdges(txn *badger.Txn, fn func(*graph.Edge) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefixEdge)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		var edge graph.Edge
		err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &edge) })
		if err != nil {
			return err
		}
		if !fn(&edge) {
			break
		}
	}
	return nil
}

// Dump reads the version counter, all nodes, and all edges inside a single
// read transaction, so the three always describe the same committed graph
// version even while a writer is swapping files.
func (s *Store) Dump(_ context.Context) (uint64, []*graph.Node, []*graph.Edge, error) {
	var (
		version uint64
		nodes   []*graph.Node
		edges   []*graph.Edge
	)
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := readVersionInTxn(txn)
		if err != nil {
			return err
		}
		version = v
		if err := scanAllNodes(txn, func(n *graph.Node) bool {
			nodes = append(nodes, n)
			return true
		}); err != nil {
			return err
		}
		return scanAllEdges(txn, func(e *graph.Edge) bool {
			edges = append(edges, e)
			return true
		})
	})
	if err != nil {
		return 0, nil, nil, graph.NewStorageError("dump", err)
	}
	return version, nodes, edges, nil
}

func (s *Store) EdgesFrom(_ context.Context, nodeID string, kind graph.EdgeKind) ([]*graph.Edge, error) {
	return s.edgesByIndex(prefixIdxEdge, nodeID, kind)
}

func (s *Store) EdgesTo(_ context.Context, nodeID string, kind graph.EdgeKind) ([]*graph.Edge, error) {
	return s.edgesByIndex(prefixIdxReverseEdge, nodeID, kind)
}

func (s *Store) edgesByIndex(idxPrefix, nodeID string, kind graph.EdgeKind) ([]*graph.Edge, error) {
	prefix := idxPrefix + nodeID + "\x00"
	if kind != "" {
		prefix += string(kind) + "\x00"
	}
	var results []*graph.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIndexSuffixes(txn, []byte(prefix))
		if err != nil {
			return err
		}
		for _, eid := range ids {
			item, err := txn.Get(edgeKey(eid))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var edge graph.Edge
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &edge) }); err != nil {
				return err
			}
			results = append(results, &edge)
		}
		return nil
	})
	if err != nil {
		return nil, graph.NewStorageError("edges for "+nodeID, err)
	}
	return results, nil
}

func (s *Store) Stats(_ context.Context) (*graph.GraphStats, error) {
	stats := &graph.GraphStats{
		NodesByKind: make(map[graph.NodeKind]int64),
		EdgesByKind: make(map[graph.EdgeKind]int64),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanAllNodes(txn, func(n *graph.Node) bool {
			stats.NodeCount++
			stats.NodesByKind[n.Kind]++
			return true
		}); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefixEdge)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			var edge graph.Edge
			err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &edge) })
			if err != nil {
				continue
			}
			stats.EdgeCount++
			stats.EdgesByKind[edge.Kind]++
		}
		return nil
	})
	if err != nil {
		return nil, graph.NewStorageError("stats", err)
	}
	return stats, nil
}

func (s *Store) Version(_ context.Context) (uint64, error) {
	var v uint64
	err := s.db.View(func(txn *badger.Txn) error {
		ver, err := readVersionInTxn(txn)
		if err != nil {
			return err
		}
		v = ver
		return nil
	})
	if err != nil {
		return 0, graph.NewStorageError("version", err)
	}
	return v, nil
}

func readVersionInTxn(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keyGraphVersion))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			v = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return v, err
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.writeLock != nil {
		if lerr := s.writeLock.Release(); lerr != nil && err == nil {
			err = lerr
		}
		s.writeLock = nil
	}
	return err
}

// scanIndexSuffixes scans all keys with the given prefix and extracts the
// trailing id segment after the final NUL separator. NUL is the separator
// because node ids, file paths, and qualified names may contain colons.
func scanIndexSuffixes(txn *badger.Txn, prefix []byte) ([]string, error) {
	var ids []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		if idx := strings.LastIndexByte(key, '\x00'); idx >= 0 && idx < len(key)-1 {
			ids = append(ids, key[idx+1:])
		}
	}
	return ids, nil
}
