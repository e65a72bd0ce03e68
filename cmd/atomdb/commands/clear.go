package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/atomdb/am"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/logger"
)

// ClearCmd deletes every atom and index
var ClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every atom and index from the backend",
	RunE:  runClear,
}

var clearYes bool

func init() {
	ClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Confirm deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !clearYes && cfg.Backend.Kind != am.BackendMemory && cfg.Backend.Kind != "" {
		return errors.WithHint(
			errors.Newf("refusing to clear the %s backend", cfg.Backend.Kind),
			"pass --yes to confirm",
		)
	}
	b, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	before, err := b.CountAtoms(cmd.Context())
	if err != nil {
		return err
	}
	if err := b.ClearDatabase(cmd.Context()); err != nil {
		return err
	}
	logger.Logger.Infow("Backend cleared", logger.FieldBackend, cfg.Backend.Kind, logger.FieldCount, before.Total())
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d atoms\n", before.Total())
	return nil
}
