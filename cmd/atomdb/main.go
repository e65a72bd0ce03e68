package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/atomdb/cmd/atomdb/commands"
	"github.com/teranos/atomdb/logger"
)

var rootCmd = &cobra.Command{
	Use:   "atomdb",
	Short: "atomdb - content-addressed hypergraph atom space",
	Long: `atomdb stores nodes and links as content-addressed atoms and answers
pattern queries over them.

Available commands:
  am       - Manage atomdb configuration ("I am")
  load     - Load knowledge-base YAML files
  query    - Run a pattern query
  traverse - Walk the graph from an atom
  count    - Count stored atoms
  clear    - Delete every atom
  serve    - Serve a backend over HTTP

Examples:
  atomdb am show
  atomdb query --load animals.yaml '[{"link": "Inheritance", "targets": [{"variable": "A"}, {"variable": "B"}]}]'
  atomdb serve --backend docstore`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
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
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Read configuration from this TOML file only")
	rootCmd.PersistentFlags().StringVar(&commands.BackendKind, "backend", "", "Override backend.kind: memory, docstore, remote")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.LoadCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.TraverseCmd)
	rootCmd.AddCommand(commands.CountCmd)
	rootCmd.AddCommand(commands.ClearCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
