package embedded

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"codegraph/internal/graph"
)

// exportRecord is the JSON-lines format for export/import. Table is one of
// the persisted table names (modules/classes/functions/external/edges); the
// set is additive-only across store versions, since exporters and embedding
// indexers depend on it.
type exportRecord struct {
	Table string          `json:"table"`
	Data  json.RawMessage `json:"data"`
}

// Export writes all nodes and edges to w in JSON-lines format, nodes grouped
// under their kind's table name and edges under "edges". The whole graph is
// read through one Dump call so the output is a single committed version.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	_, nodes, edges, err := s.Dump(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	enc := json.NewEncoder(w)
	for _, node := range nodes {
		data, err := json.Marshal(node)
		if err != nil {
			continue // skip bad nodes
		}
		_ = enc.Encode(exportRecord{Table: node.Kind.Table(), Data: data})
	}
	for _, edge := range edges {
		data, err := json.Marshal(edge)
		if err != nil {
			continue
		}
		_ = enc.Encode(exportRecord{Table: "edges", Data: data})
	}
	return nil
}

// Import reads JSON-lines from r, clears the store, and inserts all records.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return graph.NewStorageError("clear store", err)
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	// Increase buffer for potentially large lines.
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	var nodes []*graph.Node
	var edges []*graph.Edge
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec exportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}

		if rec.Table == "edges" {
			var edge graph.Edge
			if err := json.Unmarshal(rec.Data, &edge); err != nil {
				return fmt.Errorf("unmarshal edge: %w", err)
			}
			edges = append(edges, &edge)
			continue
		}
		if _, ok := graph.KindForTable(rec.Table); !ok {
			return fmt.Errorf("unknown table: %q", rec.Table)
		}
		var node graph.Node
		if err := json.Unmarshal(rec.Data, &node); err != nil {
			return fmt.Errorf("unmarshal node: %w", err)
		}
		nodes = append(nodes, &node)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Nodes first so edges never dangle mid-import.
	if err := s.UpsertNodes(ctx, nodes); err != nil {
		return fmt.Errorf("import nodes: %w", err)
	}
	if err := s.UpsertEdges(ctx, edges); err != nil {
		return fmt.Errorf("import edges: %w", err)
	}
	return nil
}
