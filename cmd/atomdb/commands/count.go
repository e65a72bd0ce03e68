package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CountCmd prints atom counts
var CountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count the stored nodes and links",
	RunE:  runCount,
}

var countFormat string

func init() {
	CountCmd.Flags().StringVar(&countFormat, "format", FormatText, "Output format: text, json")
}

func runCount(cmd *cobra.Command, args []string) error {
	if err := checkFormat(countFormat); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	c, err := b.CountAtoms(cmd.Context())
	if err != nil {
		return err
	}
	if countFormat == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), c)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "nodes: %d\nlinks: %d\ntotal: %d\n", c.Nodes, c.Links, c.Total())
	return nil
}
