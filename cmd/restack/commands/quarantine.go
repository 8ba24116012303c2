package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(quarantineCmd)
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Manage quarantined prior state",
	Long: `Manage the quarantine batches holding displaced prior state.

A rebuild never deletes existing directories: it moves them into a
timestamped batch under the stack's quarantine directory. Batches
accumulate until an operator prunes them explicitly; the rebuild
itself never removes one.`,
	Example: `  # List quarantine batches
  restack quarantine list

  # Keep the five newest batches, delete the rest
  restack quarantine prune --keep 5

  See Also: restack run, restack backup`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}
