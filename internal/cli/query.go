package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codegraph/internal/engine"
	"codegraph/internal/query/exec"
	"codegraph/internal/resolver"
)

func newQueryCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "query <query text>",
		Short: "Run a structural query against the graph",
		Long: `Run a structural query against the graph.

Examples:
  codegraph query 'SELECT name, complexity FROM functions WHERE complexity > 10 ORDER BY complexity DESC'
  codegraph query 'FIND functions CALLING pkg.auth.login'
  codegraph query 'FIND CYCLES FOR imports'
  codegraph query 'SHOW dependents OF login DEPTH 2'
  codegraph query 'PATH FROM cli.main TO db.connect'
  codegraph query 'ANALYZE complexity'`,
		Args: cobra.MinimumNArgs(1),
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

			x := exec.New(store, engine.New(store), resolver.NewSized(store, cfg.Resolver.CacheSize), cfg.Query.DefaultLimit)
			res, err := x.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("execute query: %w", err)
			}
			return renderResult(cmd.OutOrStdout(), res, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the result as JSON")

	return cmd
}
