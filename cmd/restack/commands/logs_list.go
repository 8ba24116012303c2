package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"restack/internal/errors"
	"restack/internal/paths"
	"restack/internal/runlog"
)

var logsListJSON bool

func init() {
	logsListCmd.Flags().BoolVar(&logsListJSON, "json", false, "Output in JSON format")
	logsCmd.AddCommand(logsListCmd)
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rebuild run logs",
	Long:  `List all run logs in the stack's logs directory, newest first.`,
	Example: `  # List past runs
  restack logs list

  # Output as JSON
  restack logs list --json

  See Also:
    restack logs show - Show one run in full`,
	Args: cobra.NoArgs,
	RunE: runLogsList,
}

func runLogsList(cmd *cobra.Command, _ []string) error {
	return runLogsListWithWriter(cmd.OutOrStdout())
}

func runLogsListWithWriter(w io.Writer) error {
	store := runlog.NewStore(paths.NewStack(cfg.StackRoot).LogsDir())

	logs, err := store.List()
	if err != nil && !errors.Is(err, runlog.ErrNoLogsFound) {
		return errors.Wrap(err, "listing run logs")
	}

	if logsListJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(logs)
	}

	if len(logs) == 0 {
		fmt.Fprintln(w, "No run logs")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Every rebuild writes one log. Start with: restack run")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sID%s\t%sSTARTED%s\t%sOUTCOME%s\t%sPACKAGES%s\t%sVALIDATED%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	for _, l := range logs {
		outcome := l.Outcome
		oc := colorGreen
		if l.Outcome == runlog.OutcomeFailure {
			oc = colorRed
		}

		passed := 0
		for _, v := range l.Validations {
			if v.OK {
				passed++
			}
		}

		fmt.Fprintf(tw, "%s\t%s\t%s%s%s\t%d\t%d/%d\n",
			l.ID,
			l.StartedAt.Local().Format("2006-01-02 15:04:05"),
			oc, outcome, colorReset,
			len(l.Packages),
			passed, len(l.Validations))
	}
	return tw.Flush()
}
