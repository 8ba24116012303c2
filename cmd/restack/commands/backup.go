package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage stack backup archives",
	Long: `Manage the compressed backup archives of stack state.

A backup is created automatically at the start of every rebuild. This
command group creates additional backups manually and lists what
exists.`,
	Example: `  # Create a manual backup
  restack backup create

  # List existing backups
  restack backup list

  See Also: restack run, restack quarantine`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}
