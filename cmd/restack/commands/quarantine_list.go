package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"restack/internal/errors"
	"restack/internal/paths"
	"restack/internal/quarantine"
)

var quarantineListJSON bool

func init() {
	quarantineListCmd.Flags().BoolVar(&quarantineListJSON, "json", false, "Output in JSON format")
	quarantineCmd.AddCommand(quarantineListCmd)
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantine batches",
	Long: `List all quarantine batches, newest first.

Each batch shows when it was created and which directories it holds.`,
	Example: `  # List quarantine batches
  restack quarantine list

  # Output as JSON
  restack quarantine list --json

  See Also:
    restack quarantine prune - Delete old batches`,
	Args: cobra.NoArgs,
	RunE: runQuarantineList,
}

func runQuarantineList(cmd *cobra.Command, _ []string) error {
	return runQuarantineListWithWriter(cmd.OutOrStdout())
}

func runQuarantineListWithWriter(w io.Writer) error {
	mgr := quarantine.NewManager(paths.NewStack(cfg.StackRoot).QuarantineDir())

	batches, err := mgr.List()
	if err != nil && !errors.Is(err, quarantine.ErrNoBatchesFound) {
		return errors.Wrap(err, "listing quarantine batches")
	}

	if quarantineListJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	}

	if len(batches) == 0 {
		fmt.Fprintln(w, "No quarantine batches")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "A rebuild moves displaced prior state into a quarantine batch")
		fmt.Fprintln(w, "instead of deleting it.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sBATCH%s\t%sCREATED%s\t%sENTRIES%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	for _, b := range batches {
		names := make([]string, 0, len(b.Entries))
		for _, e := range b.Entries {
			names = append(names, e.Name)
		}
		fmt.Fprintf(tw, "%s%s%s\t%s\t%s\n",
			colorGreen, b.ID, colorReset,
			b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(strings.Join(names, ", "), 60))
	}
	return tw.Flush()
}
