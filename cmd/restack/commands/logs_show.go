package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"restack/internal/errors"
	"restack/internal/paths"
	"restack/internal/runlog"
)

func init() {
	logsCmd.AddCommand(logsShowCmd)
}

var logsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one rebuild run in full",
	Long: `Show everything one run recorded.

With an id, shows that run. Without one, opens an interactive fuzzy
picker when attached to a terminal, and shows the newest run otherwise.`,
	Example: `  # Show the newest run (or pick interactively on a terminal)
  restack logs show

  # Show a specific run
  restack logs show rebuild-20260823T101500-1a2b3c4d

  See Also:
    restack logs list - List all runs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogsShow,
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	store := runlog.NewStore(paths.NewStack(cfg.StackRoot).LogsDir())

	l, err := pickLog(store, args)
	if err != nil {
		return err
	}
	if l == nil {
		// Picker aborted; nothing to show.
		return nil
	}

	printLogDetail(cmd.OutOrStdout(), l)
	return nil
}

// pickLog resolves which log to show: an explicit id, an interactive
// pick on a TTY, or the newest log.
func pickLog(store *runlog.Store, args []string) (*runlog.Log, error) {
	if len(args) == 1 {
		l, err := store.Load(args[0])
		if err != nil {
			if errors.Is(err, runlog.ErrNoLogsFound) {
				return nil, errors.NewUserError(err, "List available runs with: restack logs list")
			}
			return nil, err
		}
		return l, nil
	}

	logs, err := store.List()
	if err != nil {
		if errors.Is(err, runlog.ErrNoLogsFound) {
			return nil, errors.NewUserError(err, "Every rebuild writes one log. Start with: restack run")
		}
		return nil, err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return logs[0], nil
	}

	idx, err := fuzzyfinder.Find(
		logs,
		func(i int) string {
			return fmt.Sprintf("%s  %s  %s",
				logs[i].StartedAt.Local().Format("2006-01-02 15:04:05"),
				logs[i].Outcome,
				logs[i].ID)
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			l := logs[i]
			passed := 0
			for _, v := range l.Validations {
				if v.OK {
					passed++
				}
			}
			return fmt.Sprintf("Run: %s\nOutcome: %s\nStarted: %s\nPackages: %d\nValidated: %d/%d\n\nStack root:\n%s",
				l.RunID,
				l.Outcome,
				l.StartedAt.Local().Format(time.RFC1123),
				len(l.Packages),
				passed, len(l.Validations),
				l.StackRoot)
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "interactive log selection failed")
	}
	return logs[idx], nil
}

func printLogDetail(w io.Writer, l *runlog.Log) {
	outcomeColor := colorGreen
	if l.Outcome == runlog.OutcomeFailure {
		outcomeColor = colorRed
	}

	fmt.Fprintf(w, "%sRun %s%s\n", colorBold, l.RunID, colorReset)
	fmt.Fprintf(w, "  outcome:   %s%s%s\n", outcomeColor, l.Outcome, colorReset)
	if l.Error != "" {
		fmt.Fprintf(w, "  error:     %s\n", l.Error)
	}
	fmt.Fprintf(w, "  started:   %s\n", l.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(w, "  duration:  %s\n", l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  version:   %s\n", l.ToolVersion)
	fmt.Fprintf(w, "  stack:     %s\n", l.StackRoot)
	fmt.Fprintf(w, "  packages:  %s\n", l.PackagesDir)
	fmt.Fprintf(w, "  desktop:   %s\n", l.DesktopConfig)
	if l.NodeBin != "" {
		fmt.Fprintf(w, "  node:      %s\n", l.NodeBin)
	}

	if l.Backup != nil {
		fmt.Fprintf(w, "\n%sBackup%s\n", colorCyan+colorBold, colorReset)
		fmt.Fprintf(w, "  %s (%s)\n", l.Backup.Archive, formatBytes(l.Backup.SizeBytes))
		fmt.Fprintf(w, "  sha256 %s\n", truncate(l.Backup.SHA256, 24))
	}

	if l.Quarantine != nil {
		fmt.Fprintf(w, "\n%sQuarantine%s\n", colorCyan+colorBold, colorReset)
		fmt.Fprintf(w, "  batch %s\n", l.Quarantine.BatchID)
		for _, m := range l.Quarantine.Moved {
			fmt.Fprintf(w, "  moved %s\n", m)
		}
	}

	if len(l.Packages) > 0 {
		fmt.Fprintf(w, "\n%sPackages%s\n", colorCyan+colorBold, colorReset)
		for _, p := range l.Packages {
			fmt.Fprintf(w, "  %s %s %s(entry %s)%s\n",
				p.Name, p.Version, colorGray, p.EntryPoint, colorReset)
		}
	}

	if l.Merge != nil {
		fmt.Fprintf(w, "\n%sConfiguration%s\n", colorCyan+colorBold, colorReset)
		fmt.Fprintf(w, "  %s\n", l.Merge.Path)
		fmt.Fprintf(w, "  managed: %d servers\n", len(l.Merge.Managed))
		if l.Merge.BackupPath != "" {
			fmt.Fprintf(w, "  prior config backed up to %s\n", l.Merge.BackupPath)
		}
		if l.Merge.Warning != "" {
			fmt.Fprintf(w, "  %s⚠ %s%s\n", colorYellow, l.Merge.Warning, colorReset)
		}
	}

	if len(l.Validations) > 0 {
		fmt.Fprintf(w, "\n%sValidation%s\n", colorCyan+colorBold, colorReset)
		for _, v := range l.Validations {
			if v.OK {
				fmt.Fprintf(w, "  %s✓ %s%s (%d tools, %dms)\n",
					colorGreen, v.Name, colorReset, v.ToolCount, v.DurationMS)
			} else {
				fmt.Fprintf(w, "  %s✗ %s%s %s\n",
					colorRed, v.Name, colorReset, v.Error)
			}
		}
	}

	if l.Snapshot != nil {
		fmt.Fprintf(w, "\n%sSnapshot%s\n", colorCyan+colorBold, colorReset)
		fmt.Fprintf(w, "  %s (%s)\n", l.Snapshot.Archive, formatBytes(l.Snapshot.SizeBytes))
	}
}
