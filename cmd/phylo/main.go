package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/phylo/am"
	"github.com/teranos/phylo/cmd/phylo/commands"
	"github.com/teranos/phylo/logger"
)

var rootCmd = &cobra.Command{
	Use:   "phylo",
	Short: "phylo - phylogeny cache and taxonomy server",
	Long: `phylo - phylogeny cache and taxonomy server.

phylo keeps a taxonomic concept tree in SQLite, serves ancestor, descendant
and sibling queries from an in-memory cache that rebuilds when the store
changes, and exposes it over HTTP.

Available commands:
  am       - Manage phylo configuration ("I am")
  db       - Migrate, seed and inspect the concept database
  server   - Start the HTTP API
  up       - Print the lineage from the root to a concept
  down     - Print the subtree below a concept
  siblings - List a concept's siblings
  taxa     - List every name below a concept
  version  - Show build information

Examples:
  phylo db seed taxa.yaml     # Import a YAML concept tree
  phylo down Chordata         # Print the Chordata subtree
  phylo server --port 8088    # Serve the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if verbosity == 0 && cmd.Name() == "server" {
			verbosity = logger.VerbosityInfo
		}
		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.UpCmd)
	rootCmd.AddCommand(commands.DownCmd)
	rootCmd.AddCommand(commands.SiblingsCmd)
	rootCmd.AddCommand(commands.TaxaCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
