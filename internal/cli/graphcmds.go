package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"codegraph/internal/engine"
	"codegraph/internal/graph"
	"codegraph/internal/resolver"
)

// session bundles the read-side components the graph commands share.
type session struct {
	store    graph.Store
	engine   *engine.Engine
	resolver *resolver.Resolver
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg, false)
	if err != nil {
		return nil, err
	}
	return &session{
		store:    store,
		engine:   engine.New(store),
		resolver: resolver.NewSized(store, cfg.Resolver.CacheSize),
	}, nil
}

func (s *session) Close() error { return s.store.Close() }

// resolveUnique resolves a node reference, reporting ambiguity on stderr and
// proceeding with the deterministic best match.
func (s *session) resolveUnique(ctx context.Context, errOut io.Writer, ref string) (*graph.Node, error) {
	out, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, err)
	}
	switch out.Kind {
	case resolver.NotFound:
		return nil, fmt.Errorf("cannot resolve %q: no matching node", ref)
	case resolver.Ambiguous:
		fmt.Fprintf(errOut, "Warning: %q matches %d nodes; using %s\n", ref, len(out.Matches), out.Node().ID)
	}
	return out.Node(), nil
}

func (s *session) printNodes(ctx context.Context, w io.Writer, ids []string) error {
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		n, err := s.store.GetNode(ctx, id)
		if err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		loc := n.FilePath
		if n.LineStart > 0 {
			loc = fmt.Sprintf("%s:%d", n.FilePath, n.LineStart)
		}
		rows = append(rows, []any{n.ID, string(n.Kind), n.Name, loc})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	renderTable(w, []string{"id", "kind", "name", "location"}, rows)
	fmt.Fprintf(w, "\n%d result(s)\n", len(rows))
	return nil
}

func parseKindsFlag(kinds []string) ([]graph.EdgeKind, error) {
	var out []graph.EdgeKind
	for _, k := range kinds {
		kind, ok := graph.ParseEdgeKind(k)
		if !ok {
			return nil, fmt.Errorf("unknown edge kind %q (expected one of %v)", k, graph.AllEdgeKinds())
		}
		out = append(out, kind)
	}
	return out, nil
}

func newImpactCmd() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "impact <node>",
		Short: "List everything reachable from a node",
		Long: `List every node transitively reachable from the given node by
following edges forward: everything it directly or indirectly uses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			kinds, err := parseKindsFlag(edgeKinds)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, err := s.resolveUnique(ctx, cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			ids, err := s.engine.Impact(ctx, n.ID, kinds)
			if err != nil {
				return fmt.Errorf("impact of %s: %w", n.ID, err)
			}
			return s.printNodes(ctx, cmd.OutOrStdout(), ids)
		},
	}

	cmd.Flags().StringSliceVar(&edgeKinds, "edge", nil, "restrict to edge kinds (imports, inherits, contains, calls)")

	return cmd
}

func newDepsCmd() *cobra.Command {
	var (
		edgeKinds []string
		reverse   bool
		depth     int
	)

	cmd := &cobra.Command{
		Use:   "deps <node>",
		Short: "List a node's dependencies or dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			kinds, err := parseKindsFlag(edgeKinds)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, err := s.resolveUnique(ctx, cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}

			var ids []string
			switch {
			case depth > 0:
				dir := engine.Forward
				if reverse {
					dir = engine.Backward
				}
				ids, err = s.engine.Neighbors(ctx, n.ID, dir, depth, kinds)
			case reverse:
				ids, err = s.engine.Ancestors(ctx, n.ID, kinds)
			default:
				ids, err = s.engine.Impact(ctx, n.ID, kinds)
			}
			if err != nil {
				return fmt.Errorf("dependencies of %s: %w", n.ID, err)
			}
			return s.printNodes(ctx, cmd.OutOrStdout(), ids)
		},
	}

	cmd.Flags().StringSliceVar(&edgeKinds, "edge", nil, "restrict to edge kinds (imports, inherits, contains, calls)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "list dependents instead of dependencies")
	cmd.Flags().IntVar(&depth, "depth", 0, "limit traversal depth (0 = unbounded)")

	return cmd
}

func newCyclesCmd() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Find dependency cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			kinds, err := parseKindsFlag(edgeKinds)
			if err != nil {
				return err
			}
			cycles, err := s.engine.FindCycles(cmd.Context(), kinds)
			if err != nil {
				return fmt.Errorf("find cycles: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintln(out, "No cycles found.")
				return nil
			}
			for i, c := range cycles {
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Cycle %d (%d nodes):", i+1, len(c))))
				for _, id := range c {
					fmt.Fprintf(out, "  %s\n", id)
				}
			}
			fmt.Fprintf(out, "\n%d cycle(s)\n", len(cycles))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&edgeKinds, "edge", nil, "restrict to edge kinds (imports, inherits, contains, calls)")

	return cmd
}

func newPathCmd() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Find the shortest path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			kinds, err := parseKindsFlag(edgeKinds)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			from, err := s.resolveUnique(ctx, cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			to, err := s.resolveUnique(ctx, cmd.ErrOrStderr(), args[1])
			if err != nil {
				return err
			}

			path, err := s.engine.ShortestPath(ctx, from.ID, to.ID, kinds)
			if err != nil {
				return fmt.Errorf("path %s -> %s: %w", from.ID, to.ID, err)
			}
			out := cmd.OutOrStdout()
			if path == nil {
				fmt.Fprintf(out, "No path from %s to %s.\n", from.ID, to.ID)
				return nil
			}
			for i, id := range path {
				if i > 0 {
					fmt.Fprintln(out, faintStyle.Render("    |"))
				}
				fmt.Fprintf(out, "%3d  %s\n", i, id)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&edgeKinds, "edge", nil, "restrict to edge kinds (imports, inherits, contains, calls)")

	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a name to graph nodes",
		Long: `Resolve a reference to graph nodes. Resolution tries, in order:
exact node id, exact qualified name, exact name, case-insensitive name,
and dotted suffix of a qualified name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			out, err := s.resolver.Resolve(ctx, args[0])
			if err != nil {
				return fmt.Errorf("resolve %q: %w", args[0], err)
			}
			w := cmd.OutOrStdout()
			switch out.Kind {
			case resolver.NotFound:
				fmt.Fprintf(w, "No node matches %q.\n", args[0])
				return nil
			case resolver.Ambiguous:
				fmt.Fprintf(w, "%q is ambiguous (%d matches):\n\n", args[0], len(out.Matches))
			}
			ids := make([]string, 0, len(out.Matches))
			for _, m := range out.Matches {
				ids = append(ids, m.ID)
			}
			return s.printNodes(ctx, w, ids)
		},
	}
	return cmd
}
