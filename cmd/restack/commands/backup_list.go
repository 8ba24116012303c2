package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"restack/internal/backup"
	"restack/internal/errors"
	"restack/internal/paths"
)

var backupListJSON bool

func init() {
	backupListCmd.Flags().BoolVar(&backupListJSON, "json", false, "Output in JSON format")
	backupCmd.AddCommand(backupListCmd)
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	Long: `List all backup archives in the stack's backups directory.

Backups are shown in chronological order with the most recent first.`,
	Example: `  # List all backups
  restack backup list

  # Output as JSON
  restack backup list --json

  See Also:
    restack backup create - Create a new backup`,
	Args: cobra.NoArgs,
	RunE: runBackupList,
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	return runBackupListWithWriter(cmd.OutOrStdout())
}

func runBackupListWithWriter(w io.Writer) error {
	mgr := backup.NewManager(
		backup.WithBackupDir(paths.NewStack(cfg.StackRoot).BackupsDir()))

	manifests, err := mgr.List()
	if err != nil && !errors.Is(err, backup.ErrNoBackupsFound) {
		return errors.Wrap(err, "listing backups")
	}

	if backupListJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifests)
	}

	if len(manifests) == 0 {
		fmt.Fprintln(w, "No backups available")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Backups are created automatically at the start of every rebuild.")
		fmt.Fprintln(w, "You can also create one manually with: restack backup create")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sID%s\t%sCREATED%s\t%sSIZE%s\t%sSOURCES%s\t%sVERSION%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	for _, m := range manifests {
		fmt.Fprintf(tw, "%s%s%s\t%s\t%s\t%d\t%s\n",
			colorGreen, m.ID, colorReset,
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatBytes(m.SizeBytes),
			len(m.Sources),
			m.ToolVersion)
	}
	return tw.Flush()
}
