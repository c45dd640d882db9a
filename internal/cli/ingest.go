package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/ingest"
	"codegraph/internal/spool"
)

// ingestStateFile is the sidecar tracking applied batch digests, kept next
// to the store so it travels with the database.
const ingestStateFile = "ingest-state.json"

func newSpooler(cfg *config.Config, store graph.Store) (*spool.Spooler, error) {
	applier, err := ingest.NewApplier(store, filepath.Join(cfg.Store.Path, ingestStateFile))
	if err != nil {
		return nil, fmt.Errorf("load ingest state: %w", err)
	}
	s, err := spool.New(spool.Config{Dir: cfg.Spool.Dir, Excludes: cfg.Spool.Exclude}, applier)
	if err != nil {
		return nil, err
	}
	if verbose {
		s.Logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	return s, nil
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Drain extractor batches from the spool directory",
		Long: `Apply every batch file currently in the spool directory to the
graph store, then exit. Consumed batch files are deleted; malformed ones are
left in place and reported with --verbose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, true)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := newSpooler(cfg, store)
			if err != nil {
				return err
			}
			n, err := s.DrainOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("drain spool: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d batch(es).\n", n)
			return nil
		},
	}
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the spool directory and apply batches continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, true)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := newSpooler(cfg, store)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if verbose {
				s.OnApply = func(filePath string, applied bool) {
					if applied {
						fmt.Fprintf(out, "applied %s\n", filePath)
					} else {
						fmt.Fprintf(out, "skipped %s (unchanged)\n", filePath)
					}
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(out, "\nShutting down...")
				cancel()
			}()

			fmt.Fprintf(out, "Watching %s...\n", cfg.Spool.Dir)
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	return cmd
}
