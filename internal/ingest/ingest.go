// Package ingest applies extractor-produced fact batches to the graph store.
// Extractors run out of process and emit one JSON batch per analyzed source
// file; the applier validates each batch, stamps deterministic ids, and
// routes it through an atomic per-file swap.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"codegraph/internal/graph"
)

// Batch is the wire form of one file's extracted facts. A batch with Deleted
// set is a tombstone: the source file is gone and its facts should be removed.
type Batch struct {
	FilePath string        `json:"file_path"`
	Deleted  bool          `json:"deleted,omitempty"`
	Nodes    []*graph.Node `json:"nodes,omitempty"`
	Edges    []*graph.Edge `json:"edges,omitempty"`
}

// Applier validates batches and applies them to the store, skipping batches
// whose content digest matches the last applied one for the same file.
type Applier struct {
	store     graph.Store
	statePath string
	state     *State
}

// NewApplier loads the ingest state sidecar at statePath. A missing sidecar
// starts empty.
func NewApplier(store graph.Store, statePath string) (*Applier, error) {
	state, err := LoadState(statePath)
	if err != nil {
		return nil, err
	}
	return &Applier{store: store, statePath: statePath, state: state}, nil
}

// ParseBatch decodes one JSON batch.
func ParseBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &b, nil
}

// Apply validates and applies one batch. It reports whether the store was
// touched: a batch identical to the last applied one for the same file is
// skipped so node identities (and anything keyed on them) stay stable.
func (a *Applier) Apply(ctx context.Context, b *Batch) (bool, error) {
	if err := a.normalize(b); err != nil {
		return false, err
	}

	digest, err := batchDigest(b)
	if err != nil {
		return false, err
	}
	if a.state.Digest(b.FilePath) == digest {
		return false, nil
	}

	if err := a.store.ReplaceFile(ctx, b.FilePath, b.Nodes, b.Edges); err != nil {
		return false, fmt.Errorf("apply %s: %w", b.FilePath, err)
	}
	a.state.SetDigest(b.FilePath, digest)
	if err := a.state.Save(a.statePath); err != nil {
		return true, err
	}
	return true, nil
}

// Remove drops all facts for a deleted source file.
func (a *Applier) Remove(ctx context.Context, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("remove: empty file path")
	}
	if err := a.store.DeleteFile(ctx, filePath); err != nil {
		return fmt.Errorf("remove %s: %w", filePath, err)
	}
	a.state.Forget(filePath)
	return a.state.Save(a.statePath)
}

// normalize validates kinds and the id grammar, and stamps deterministic ids
// where the extractor left them blank.
func (a *Applier) normalize(b *Batch) error {
	if b.FilePath == "" {
		return fmt.Errorf("batch: empty file path")
	}
	for _, n := range b.Nodes {
		if !n.Kind.Valid() {
			return fmt.Errorf("batch %s: invalid node kind %q", b.FilePath, n.Kind)
		}
		if n.Kind == graph.NodeExternal {
			return fmt.Errorf("batch %s: external nodes are edge-derived, not batch members", b.FilePath)
		}
		if n.Name == "" && n.Kind != graph.NodeModule {
			return fmt.Errorf("batch %s: node without a name", b.FilePath)
		}
		if n.FilePath == "" {
			n.FilePath = b.FilePath
		}
		if n.FilePath != b.FilePath {
			return fmt.Errorf("batch %s: node %q belongs to %s", b.FilePath, n.Name, n.FilePath)
		}
		if n.ID == "" {
			n.ID = graph.NewNodeID(n.Kind, n.FilePath, n.Name)
		}
		if kind, _, ok := graph.ParseNodeID(n.ID); !ok || kind != n.Kind {
			return fmt.Errorf("batch %s: node id %q does not match kind %q", b.FilePath, n.ID, n.Kind)
		}
	}
	for _, e := range b.Edges {
		if !e.Kind.Valid() {
			return fmt.Errorf("batch %s: invalid edge kind %q", b.FilePath, e.Kind)
		}
		if e.SourceID == "" || e.TargetID == "" {
			return fmt.Errorf("batch %s: edge with empty endpoint", b.FilePath)
		}
		if _, _, ok := graph.ParseNodeID(e.SourceID); !ok {
			return fmt.Errorf("batch %s: malformed edge source %q", b.FilePath, e.SourceID)
		}
		if _, _, ok := graph.ParseNodeID(e.TargetID); !ok {
			return fmt.Errorf("batch %s: malformed edge target %q", b.FilePath, e.TargetID)
		}
		if e.ID == "" {
			e.ID = graph.NewEdgeID(e.Kind, e.SourceID, e.TargetID)
		}
	}
	return nil
}

// batchDigest hashes a canonical encoding of the normalized batch: nodes and
// edges sorted by id so extractor emission order does not affect the digest.
func batchDigest(b *Batch) (string, error) {
	canon := Batch{
		FilePath: b.FilePath,
		Nodes:    append([]*graph.Node(nil), b.Nodes...),
		Edges:    append([]*graph.Edge(nil), b.Edges...),
	}
	sort.Slice(canon.Nodes, func(i, j int) bool { return canon.Nodes[i].ID < canon.Nodes[j].ID })
	sort.Slice(canon.Edges, func(i, j int) bool { return canon.Edges[i].ID < canon.Edges[j].ID })
	data, err := json.Marshal(&canon)
	if err != nil {
		return "", fmt.Errorf("digest batch: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
