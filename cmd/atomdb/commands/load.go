package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/atomdb/am"
	"github.com/teranos/atomdb/ix"
	"github.com/teranos/atomdb/logger"
)

// LoadCmd ingests knowledge-base files
var LoadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Load knowledge-base YAML files",
	Long: `Load knowledge-base YAML files into the configured backend.

Each file lists nodes, links (targets may nest further links) and field
indexes to create. Loading is idempotent: atoms that already exist are left
as they are.

Examples:
  atomdb load --backend docstore animals.yaml
  atomdb load --dry-run kb/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

var (
	loadDryRun bool
	loadFormat string
)

func init() {
	LoadCmd.Flags().BoolVar(&loadDryRun, "dry-run", false, "Check the files without writing")
	LoadCmd.Flags().StringVar(&loadFormat, "format", FormatText, "Output format: text, json")
}

func runLoad(cmd *cobra.Command, args []string) error {
	if err := checkFormat(loadFormat); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend.Kind == am.BackendMemory || cfg.Backend.Kind == "" {
		logger.Logger.Warnw("Loading into the memory backend; atoms are discarded when the command exits")
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	p := ix.NewProcessor(b, loadDryRun, logger.Logger.Named("ix"))
	out := cmd.OutOrStdout()
	for _, path := range args {
		res, err := p.LoadFile(ctx, path)
		if err != nil {
			return err
		}
		if loadFormat == FormatJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s: %d nodes, %d links (%s); store now holds %d atoms\n",
			path, res.NodesAdded, res.LinksAdded, res.Message, res.After.Total())
	}
	return nil
}
