package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	verinfo "restack/cmd"
	"restack/internal/desktop"
	"restack/internal/errors"
	"restack/internal/probe"
)

var (
	validateDesktopConfig string
	validateTimeout       time.Duration
)

func init() {
	validateCmd.Flags().StringVar(&validateDesktopConfig, "desktop-config", "",
		"path to the Claude Desktop configuration file")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 0,
		"per-server handshake timeout")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Handshake the currently configured servers",
	Long: `Probe every server in the desktop configuration over stdio.

Each server is spawned directly (no shell) and sent the minimal MCP
session: an initialize request, the initialized notification, and a
tools/list request. A server passes when it answers tools/list before
the timeout.

Unlike the validation phase of 'restack run', this command records no
run log; it only prints per-server results. The configuration file is
not modified.

Exit codes:
  0 - every configured server responded
  1 - at least one server failed its handshake`,
	Example: `  # Validate the configured servers
  restack validate

  # Allow slow servers more time
  restack validate --timeout 30s

  See Also: restack run, restack logs`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	path := cfg.DesktopConfig
	if cmd.Flags().Changed("desktop-config") {
		path = validateDesktopConfig
	}
	timeout := cfg.ProbeTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = validateTimeout
	}

	store := desktop.NewStore(path)
	dcfg, err := store.Load()
	if err != nil {
		if errors.Is(err, desktop.ErrConfigUnreadable) {
			return errors.NewUserError(err, "Fix or remove the desktop config, or rebuild it with: restack run")
		}
		return errors.NewExitError(err, errors.ExitSystem)
	}

	return validateServers(cmd, dcfg, timeout)
}

func validateServers(cmd *cobra.Command, dcfg *desktop.Config, timeout time.Duration) error {
	w := cmd.OutOrStdout()

	if len(dcfg.Servers) == 0 {
		fmt.Fprintln(w, "No servers configured.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Install and configure servers with: restack run")
		return nil
	}

	names := make([]string, 0, len(dcfg.Servers))
	for name := range dcfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	prober := probe.NewProber(
		probe.WithTimeout(timeout),
		probe.WithClientInfo("restack", verinfo.Version),
	)

	failed := 0
	for _, name := range names {
		s := dcfg.Servers[name]
		res := prober.Probe(cmd.Context(), probe.Target{
			Name:    name,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
		})
		printProbeResult(w, res)
		if !res.OK {
			failed++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Validated %d servers: %d passed, %d failed\n",
		len(names), len(names)-failed, failed)

	if failed > 0 {
		return errors.NewUserError(
			errors.Newf("%d of %d servers failed validation", failed, len(names)),
			"Inspect the failing server with -v, or rebuild with: restack run")
	}
	return nil
}

func printProbeResult(w io.Writer, res probe.Result) {
	if res.OK {
		fmt.Fprintf(w, "%s✓ %s%s %s(%d tools, %dms)%s\n",
			colorGreen, res.Name, colorReset, colorGray, res.ToolCount, res.DurationMS, colorReset)
		return
	}

	reason := res.Error
	if res.TimedOut {
		reason = "timed out: " + reason
	}
	fmt.Fprintf(w, "%s✗ %s%s %s\n", colorRed, res.Name, colorReset, reason)
	if res.Stderr != "" {
		fmt.Fprintf(w, "  %sstderr: %s%s\n", colorGray, truncate(res.Stderr, 200), colorReset)
	}
}
