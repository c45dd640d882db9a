package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"codegraph/internal/graph"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}
			version, err := store.Version(ctx)
			if err != nil {
				return fmt.Errorf("get version: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Code Graph Status"))
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Total nodes: %d\n", stats.NodeCount)
			fmt.Fprintf(out, "  Total edges: %d\n", stats.EdgeCount)
			fmt.Fprintf(out, "  Version:     %d\n\n", version)

			if len(stats.NodesByKind) > 0 {
				fmt.Fprintf(out, "  Nodes by kind:\n")
				for _, k := range sortedNodeKinds(stats.NodesByKind) {
					fmt.Fprintf(out, "    %-20s %d\n", k, stats.NodesByKind[k])
				}
				fmt.Fprintln(out)
			}
			if len(stats.EdgesByKind) > 0 {
				fmt.Fprintf(out, "  Edges by kind:\n")
				for _, k := range sortedEdgeKinds(stats.EdgesByKind) {
					fmt.Fprintf(out, "    %-20s %d\n", k, stats.EdgesByKind[k])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	return cmd
}

func sortedNodeKinds(m map[graph.NodeKind]int64) []graph.NodeKind {
	keys := make([]graph.NodeKind, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedEdgeKinds(m map[graph.EdgeKind]int64) []graph.EdgeKind {
	keys := make([]graph.EdgeKind, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
