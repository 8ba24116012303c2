package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	verinfo "restack/cmd"
	"restack/internal/errors"
	"restack/internal/logging"
	"restack/internal/packages"
	"restack/internal/paths"
	"restack/internal/rebuild"
	"restack/internal/runlog"
)

var (
	runPackagesDir   string
	runStackRoot     string
	runDesktopConfig string
	runManifest      string
	runTimeout       time.Duration
	runSkipValidate  bool
)

func init() {
	runCmd.Flags().StringVar(&runPackagesDir, "packages", "",
		"directory holding the offline package archives")
	runCmd.Flags().StringVar(&runStackRoot, "stack-root", "",
		"root directory owning all stack state")
	runCmd.Flags().StringVar(&runDesktopConfig, "desktop-config", "",
		"path to the Claude Desktop configuration file")
	runCmd.Flags().StringVar(&runManifest, "manifest", "",
		"stack.toml manifest declaring the package set")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0,
		"per-server validation handshake timeout")
	runCmd.Flags().BoolVar(&runSkipValidate, "skip-validate", false,
		"skip the post-install server probes")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild the stack from offline package archives",
	Long: `Run the full five-phase stack rebuild.

Phases run strictly in order, and every phase completes fully or the
whole run aborts:

  1. Backup & quarantine  - archive current state, move prior installs aside
  2. Directory rebuild    - recreate the fixed stack directory tree
  3. Package install      - extract each archive, resolve its entry point,
                            and generate a stable wrapper script
  4. Configuration merge  - rewrite the managed mcpServers entries while
                            preserving every other key byte-for-byte
  5. Validation & snapshot - handshake each server over stdio, write the
                            run log and a snapshot archive

Validation failures are recorded in the run log but do not fail the
run: by then the configuration is already committed.

Exit codes:
  0 - rebuild succeeded (even with recorded validation failures)
  1 - configuration error (missing or ambiguous archive, bad manifest,
      unresolved entry point, unsupported runtime)
  2 - system error (lock-held quarantine target, archive or write failure)`,
	Example: `  # Rebuild from ./packages with built-in defaults
  restack run

  # Rebuild a specific stack from a manifest
  restack run --manifest stack.toml --stack-root ~/mcp-stack

  # Rebuild without probing the installed servers
  restack run --skip-validate

  See Also: restack doctor, restack validate, restack logs`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	opts, err := buildRunOptions(cmd)
	if err != nil {
		return err
	}

	l, err := rebuild.NewRunner(opts).Run(cmd.Context())
	printRunSummary(cmd.OutOrStdout(), l)
	if err != nil {
		return classifyRunError(err)
	}
	return nil
}

// buildRunOptions merges the effective configuration with any flags the
// caller set explicitly. Flags win; unset flags fall back to config.
func buildRunOptions(cmd *cobra.Command) (rebuild.Options, error) {
	opts := rebuild.Options{
		Stack:             paths.NewStack(cfg.StackRoot),
		PackagesDir:       cfg.PackagesDir,
		DesktopConfigPath: cfg.DesktopConfig,
		NodeBin:           cfg.NodeBin,
		ProbeTimeout:      cfg.ProbeTimeout,
		SkipValidate:      runSkipValidate,
		ToolVersion:       verinfo.Version,
		Logger:            logging.FromContext(cmd.Context()),
	}

	if cmd.Flags().Changed("stack-root") {
		opts.Stack = paths.NewStack(runStackRoot)
	}
	if cmd.Flags().Changed("packages") {
		opts.PackagesDir = runPackagesDir
	}
	if cmd.Flags().Changed("desktop-config") {
		opts.DesktopConfigPath = runDesktopConfig
	}
	if cmd.Flags().Changed("timeout") {
		opts.ProbeTimeout = runTimeout
	}

	manifest := cfg.Manifest
	if cmd.Flags().Changed("manifest") {
		manifest = runManifest
	}

	specs, err := loadSpecs(manifest)
	if err != nil {
		return rebuild.Options{}, err
	}
	opts.Specs = specs

	return opts, nil
}

// loadSpecs reads the package manifest, or falls back to the built-in
// package set when none is configured.
func loadSpecs(manifest string) ([]packages.Spec, error) {
	if manifest == "" {
		return packages.Defaults(), nil
	}
	specs, err := packages.LoadFile(manifest)
	if err != nil {
		return nil, errors.NewUserError(err, "Fix the manifest and re-run, or omit --manifest for the built-in package set")
	}
	return specs, nil
}

// classifyRunError maps a failed run onto the documented exit codes:
// configuration mistakes the operator can fix exit 1, everything else
// (I/O, locks, corrupted writes) exits 2.
func classifyRunError(err error) error {
	switch {
	case errors.Is(err, errors.ErrArchiveNotFound),
		errors.Is(err, errors.ErrArchiveAmbiguous):
		return errors.NewUserError(err, "Place exactly one matching archive per package in the packages directory, then re-run")
	case errors.Is(err, errors.ErrNoEntryPoint):
		return errors.NewUserError(err, "The package archive declares no usable bin, main, or exports entry")
	case errors.Is(err, errors.ErrRuntimeNotFound):
		return errors.NewUserError(err, "Install Node.js 18 or newer, or set node_bin in config.yaml")
	case errors.Is(err, errors.ErrUnsupportedPlatform):
		return errors.NewUserError(err, "Rebuilds are supported on macOS, Linux, and Windows")
	case errors.Is(err, packages.ErrNoPackages),
		errors.Is(err, packages.ErrDuplicateName):
		return errors.NewUserError(err, "Run: restack doctor")
	default:
		return errors.NewExitError(err, errors.ExitSystem)
	}
}

// printRunSummary reports what the run did, whether or not it succeeded.
// The run log carries every phase that completed before a failure.
func printRunSummary(w io.Writer, l *runlog.Log) {
	if l == nil || quiet {
		return
	}

	fmt.Fprintf(w, "%sRun %s%s\n", colorBold, l.RunID, colorReset)

	if l.Backup != nil {
		fmt.Fprintf(w, "%s✓ backup %s (%s)%s\n",
			colorGreen, l.Backup.ID, formatBytes(l.Backup.SizeBytes), colorReset)
	}
	if l.Quarantine != nil {
		fmt.Fprintf(w, "%s✓ quarantined %d prior directories into batch %s%s\n",
			colorGreen, len(l.Quarantine.Moved), l.Quarantine.BatchID, colorReset)
	}
	for _, p := range l.Packages {
		fmt.Fprintf(w, "%s✓ installed %s %s%s %s(entry %s)%s\n",
			colorGreen, p.Name, p.Version, colorReset, colorGray, p.EntryPoint, colorReset)
	}
	if l.Merge != nil {
		fmt.Fprintf(w, "%s✓ desktop config updated%s %s(%d managed servers)%s\n",
			colorGreen, colorReset, colorGray, len(l.Merge.Managed), colorReset)
		if l.Merge.Warning != "" {
			fmt.Fprintf(w, "%s⚠ prior config was unreadable and was replaced (backup kept)%s\n",
				colorYellow, colorReset)
		}
	}
	for _, v := range l.Validations {
		if v.OK {
			fmt.Fprintf(w, "%s✓ %s responded (%d tools, %dms)%s\n",
				colorGreen, v.Name, v.ToolCount, v.DurationMS, colorReset)
		} else {
			fmt.Fprintf(w, "%s✗ %s failed validation: %s%s\n",
				colorYellow, v.Name, v.Error, colorReset)
		}
	}
	if l.Snapshot != nil {
		fmt.Fprintf(w, "%s✓ snapshot %s (%s)%s\n",
			colorGreen, l.Snapshot.Archive, formatBytes(l.Snapshot.SizeBytes), colorReset)
	}

	if l.Outcome == runlog.OutcomeFailure {
		fmt.Fprintf(w, "%s✗ rebuild failed: %s%s\n", colorRed, l.Error, colorReset)
		return
	}
	fmt.Fprintf(w, "\nRebuild complete in %s.\n",
		l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond))
}
