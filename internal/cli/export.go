package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codegraph/internal/graph/embedded"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export or import the graph as JSON lines",
		Long: `Export the full graph as JSON lines, one record per node or edge,
tagged with its table. The format round-trips through 'export import'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := embedded.Open(cfg.Store.Path, embedded.Options{ReadOnly: true})
			if err != nil {
				return fmt.Errorf("open graph store: %w", err)
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := store.Export(cmd.Context(), w); err != nil {
				return fmt.Errorf("export graph: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported graph to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.AddCommand(newImportCmd())

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the graph with a previously exported dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := embedded.Open(cfg.Store.Path, embedded.Options{})
			if err != nil {
				return fmt.Errorf("open graph store: %w", err)
			}
			defer store.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			if err := store.Import(cmd.Context(), f); err != nil {
				return fmt.Errorf("import graph: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported graph from %s\n", args[0])
			return nil
		},
	}
}
