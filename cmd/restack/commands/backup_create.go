package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	verinfo "restack/cmd"
	"restack/internal/archive"
	"restack/internal/backup"
	"restack/internal/errors"
	"restack/internal/paths"
)

func init() {
	backupCmd.AddCommand(backupCreateCmd)
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual backup",
	Long: `Create a backup archive of the current stack state.

The archive captures the same state a rebuild would displace: the
installed packages, the package cache, the plugin directories, and the
desktop configuration file. Backups are created automatically at the
start of every rebuild; this command creates one on demand.`,
	Example: `  # Back up the current stack state
  restack backup create

  See Also:
    restack backup list - List available backups
    restack run         - Rebuild (backs up automatically)`,
	Args: cobra.NoArgs,
	RunE: runBackupCreate,
}

func runBackupCreate(cmd *cobra.Command, _ []string) error {
	return runBackupCreateWithWriter(cmd.OutOrStdout())
}

func runBackupCreateWithWriter(w io.Writer) error {
	stack := paths.NewStack(cfg.StackRoot)

	displaceable := stack.Displaceable()
	sources := make([]archive.Source, 0, len(displaceable)+1)
	for _, dir := range displaceable {
		sources = append(sources, archive.Source{Path: dir, Name: filepath.Base(dir)})
	}
	sources = append(sources, archive.Source{
		Path: cfg.DesktopConfig,
		Name: filepath.Base(cfg.DesktopConfig),
	})

	mgr := backup.NewManager(
		backup.WithBackupDir(stack.BackupsDir()),
		backup.WithToolVersion(verinfo.Version))
	manifest, err := mgr.Backup(sources)
	if err != nil {
		return errors.NewExitError(errors.Wrap(err, "creating backup"), errors.ExitSystem)
	}

	fmt.Fprintf(w, "%s✓ created backup %s (%s)%s\n",
		colorGreen, manifest.ID, formatBytes(manifest.SizeBytes), colorReset)
	fmt.Fprintf(w, "  %s%s%s\n", colorGray, mgr.ArchivePath(manifest.ID), colorReset)

	return nil
}
