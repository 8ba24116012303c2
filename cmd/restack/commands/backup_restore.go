package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"restack/internal/backup"
	"restack/internal/errors"
	"restack/internal/paths"
)

var backupRestoreDest string

func init() {
	backupRestoreCmd.Flags().StringVar(&backupRestoreDest, "dest", "",
		"directory to extract into (default: the stack root)")
	backupCmd.AddCommand(backupRestoreCmd)
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-id]",
	Short: "Restore from a backup",
	Long: `Restore the contents of a backup archive.

If no backup ID is given, the most recent backup is restored. The
archive's hash is verified against its manifest before anything is
written. Contents are extracted into the stack root (or the --dest
directory), overwriting existing files; nothing outside the
destination is touched.`,
	Example: `  # Restore the most recent backup into the stack root
  restack backup restore

  # Restore a specific backup into a scratch directory
  restack backup restore 20260823T101500 --dest /tmp/recovered

  See Also:
    restack backup list   - List available backups
    restack backup create - Create a new backup`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupRestore,
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	return runBackupRestoreWithWriter(cmd.OutOrStdout(), args)
}

func runBackupRestoreWithWriter(w io.Writer, args []string) error {
	mgr := backup.NewManager(
		backup.WithBackupDir(paths.NewStack(cfg.StackRoot).BackupsDir()))

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		manifests, err := mgr.List()
		if err != nil {
			if errors.Is(err, backup.ErrNoBackupsFound) {
				return errors.NewUserError(err, "Create one with: restack backup create")
			}
			return errors.Wrap(err, "listing backups")
		}
		id = manifests[0].ID
		fmt.Fprintf(w, "Using most recent backup: %s\n", id)
	}

	manifest, err := mgr.Get(id)
	if err != nil {
		if errors.Is(err, backup.ErrNoBackupsFound) {
			return errors.NewUserError(err, "List available backups with: restack backup list")
		}
		return errors.Wrapf(err, "getting backup %s", id)
	}

	dest := backupRestoreDest
	if dest == "" {
		dest = cfg.StackRoot
	}

	fmt.Fprintf(w, "Restoring %d sources from backup %s...\n", len(manifest.Sources), id)

	if err := mgr.Restore(id, dest); err != nil {
		return errors.NewExitError(errors.Wrap(err, "restoring backup"), errors.ExitSystem)
	}

	fmt.Fprintf(w, "%s✓ restored backup %s into %s%s\n",
		colorGreen, id, dest, colorReset)

	return nil
}
