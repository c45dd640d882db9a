package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a .codegraph.yaml config file",
		Long: `Initialize a codegraph project in the current directory.

Creates a .codegraph.yaml config file with defaults, plus the store and
spool directories it points at.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			configPath := filepath.Join(cwd, config.DefaultConfigFile+"."+config.DefaultConfigType)
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists; project is already initialized", configPath)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load defaults: %w", err)
			}
			if err := config.WriteConfig(cfg, configPath); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", configPath)

			for _, dir := range []string{cfg.Store.Path, cfg.Spool.Dir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
				fmt.Fprintf(out, "Created %s/\n", dir)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  1. Point your extractors at the spool directory")
			fmt.Fprintf(out, "     (%s)\n", cfg.Spool.Dir)
			fmt.Fprintln(out, "  2. Run 'codegraph watch' to apply batches as they arrive,")
			fmt.Fprintln(out, "     or 'codegraph ingest' for a one-shot drain")
			fmt.Fprintln(out, "  3. Query with 'codegraph query'")
			return nil
		},
	}
}
