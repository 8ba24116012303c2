package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logsCmd)
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect rebuild run logs",
	Long: `Inspect the immutable JSON logs written by past rebuild runs.

Every run writes exactly one log recording its phases, resolved paths,
per-server validation outcomes, and artifact locations. Logs are never
modified after a run finishes.`,
	Example: `  # List past runs
  restack logs list

  # Show the newest run
  restack logs show

  # Pick a run interactively
  restack logs show   # on a terminal, opens a fuzzy picker

  See Also: restack run, restack validate`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}
