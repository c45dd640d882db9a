// Package cli implements the command-line interface for codegraph.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "codegraph - Queryable knowledge graph of code structure",
	Long: `codegraph maintains a persistent graph of code structure facts
(modules, classes, functions and the relationships between them) fed by
out-of-process extractors, and answers structural questions about it.

Commands:
  init       Initialize a .codegraph.yaml config file
  ingest     Drain extractor batches from the spool directory
  watch      Watch the spool directory and apply batches continuously
  query      Run a structural query against the graph
  impact     List everything reachable from a node
  deps       List a node's dependencies or dependents
  cycles     Find dependency cycles
  path       Find the shortest path between two nodes
  resolve    Resolve a name to graph nodes
  stats      Show graph statistics
  export     Export or import the graph as JSON lines`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codegraph.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	bindFlag := func(key, flag string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
	bindFlag("config_file", "config")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newImpactCmd())
	rootCmd.AddCommand(newDepsCmd())
	rootCmd.AddCommand(newCyclesCmd())
	rootCmd.AddCommand(newPathCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}
