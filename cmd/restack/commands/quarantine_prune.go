package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"restack/internal/errors"
	"restack/internal/paths"
	"restack/internal/quarantine"
)

var quarantineKeep int

func init() {
	quarantinePruneCmd.Flags().IntVar(&quarantineKeep, "keep", 5,
		"number of newest batches to keep")
	quarantineCmd.AddCommand(quarantinePruneCmd)
}

var quarantinePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old quarantine batches",
	Long: `Delete quarantine batches beyond a retention count.

This is the only operation that removes quarantined state. The newest
batches are kept; everything older is deleted permanently.`,
	Example: `  # Keep the five newest batches (default)
  restack quarantine prune

  # Keep only the newest batch
  restack quarantine prune --keep 1

  See Also:
    restack quarantine list - See what would be pruned`,
	Args: cobra.NoArgs,
	RunE: runQuarantinePrune,
}

func runQuarantinePrune(cmd *cobra.Command, _ []string) error {
	return runQuarantinePruneWithWriter(cmd.OutOrStdout())
}

func runQuarantinePruneWithWriter(w io.Writer) error {
	if quarantineKeep < 0 {
		return errors.NewUserError(errors.New("--keep must be non-negative"), "")
	}

	mgr := quarantine.NewManager(paths.NewStack(cfg.StackRoot).QuarantineDir())

	batches, err := mgr.List()
	if err != nil {
		if errors.Is(err, quarantine.ErrNoBatchesFound) {
			fmt.Fprintln(w, "No quarantine batches to prune")
			return nil
		}
		return errors.Wrap(err, "listing quarantine batches")
	}

	toRemove := len(batches) - quarantineKeep
	if toRemove <= 0 {
		fmt.Fprintf(w, "Nothing to prune (%d batches, keeping %d)\n",
			len(batches), quarantineKeep)
		return nil
	}

	if err := mgr.Prune(quarantineKeep); err != nil {
		return errors.NewExitError(errors.Wrap(err, "pruning quarantine"), errors.ExitSystem)
	}

	fmt.Fprintf(w, "%s✓ pruned %d batches, kept %d%s\n",
		colorGreen, toRemove, min(quarantineKeep, len(batches)), colorReset)
	return nil
}
