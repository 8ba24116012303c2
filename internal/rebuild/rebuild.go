// Package rebuild orchestrates the full stack rebuild.
//
// A run walks five phases in a fixed order: backup and quarantine,
// directory rebuild, offline package install, desktop config merge, then
// validation and snapshot. Earlier phases never depend on later ones, and
// a failure aborts the run where it stands; whatever was displaced stays
// in quarantine and whatever was backed up stays in the backup archive.
// The run is idempotent end to end: a repeat against an already-rebuilt
// stack walks the identical code path.
package rebuild

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"restack/internal/archive"
	"restack/internal/backup"
	"restack/internal/desktop"
	"restack/internal/errors"
	"restack/internal/logging"
	"restack/internal/packages"
	"restack/internal/paths"
	"restack/internal/probe"
	"restack/internal/quarantine"
	"restack/internal/runlog"
)

// Options configures a rebuild run.
type Options struct {
	// Stack is the directory layout being rebuilt.
	Stack paths.Stack

	// PackagesDir holds the offline package archives.
	PackagesDir string

	// DesktopConfigPath is the Claude Desktop configuration file.
	DesktopConfigPath string

	// Specs lists the packages to install, in install order.
	Specs []packages.Spec

	// NodeBin is the runtime interpreter name or path.
	NodeBin string

	// ProbeTimeout bounds each validation handshake.
	ProbeTimeout time.Duration

	// SkipValidate disables the post-install server probes.
	SkipValidate bool

	// ToolVersion is recorded in the run log and announced to servers.
	ToolVersion string

	// Logger receives progress output. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Runner executes rebuild runs.
type Runner struct {
	opts Options
	log  *slog.Logger
}

// NewRunner creates a Runner for the given options.
func NewRunner(opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Runner{opts: opts, log: log}
}

// Run executes one rebuild. The returned log describes every phase that
// ran, whether or not the run succeeded. Once the run has started
// mutating the stack the log is also written to the stack's logs
// directory; a run rejected in preflight leaves the filesystem untouched.
func (r *Runner) Run(ctx context.Context) (*runlog.Log, error) {
	l := runlog.New(r.opts.ToolVersion)
	l.StackRoot = r.opts.Stack.Root
	l.PackagesDir = r.opts.PackagesDir
	l.DesktopConfig = r.opts.DesktopConfigPath

	r.log.Info("starting stack rebuild",
		"run_id", l.RunID,
		"stack_root", l.StackRoot,
		"packages_dir", l.PackagesDir)

	if err := r.checkOptions(); err != nil {
		l.Finish(err)
		return l, err
	}

	// Resolve everything the run needs before touching the stack, so a
	// bad archive pattern or missing runtime surfaces while the prior
	// install is still intact.
	resolved, nodePath, err := r.preflight(ctx)
	if err != nil {
		l.Finish(err)
		r.log.Error("rebuild rejected in preflight", "error", err)
		return l, err
	}
	l.NodeBin = nodePath

	err = r.execute(ctx, l, resolved, nodePath)
	l.Finish(err)

	store := runlog.NewStore(r.opts.Stack.LogsDir())
	if path, logErr := store.Write(l); logErr != nil {
		r.log.Error("failed to write run log", "error", logErr)
	} else {
		r.log.Info("run log written", "path", path)
	}

	if err != nil {
		r.log.Error("rebuild failed", "error", err)
		return l, err
	}
	r.log.Info("rebuild complete",
		"packages", len(l.Packages),
		"duration", l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond))
	return l, nil
}

// execute runs the five phases against a stack the preflight has already
// cleared for rebuild.
func (r *Runner) execute(ctx context.Context, l *runlog.Log, resolved []packages.Resolved, nodePath string) error {
	if err := r.backupAndQuarantine(l); err != nil {
		return err
	}
	if err := r.opts.Stack.Ensure(); err != nil {
		return err
	}
	installed, err := r.installAll(ctx, l, resolved)
	if err != nil {
		return err
	}
	if err := r.mergeConfig(l, nodePath, installed); err != nil {
		return err
	}
	r.validate(ctx, l, nodePath, installed)
	r.snapshot(l)
	return nil
}

func (r *Runner) checkOptions() error {
	switch {
	case r.opts.Stack.Root == "":
		return errors.New("stack root not set")
	case r.opts.PackagesDir == "":
		return errors.New("packages directory not set")
	case r.opts.DesktopConfigPath == "":
		return errors.New("desktop config path not set")
	case len(r.opts.Specs) == 0:
		return packages.ErrNoPackages
	}
	return nil
}

func (r *Runner) preflight(ctx context.Context) ([]packages.Resolved, string, error) {
	if err := checkPlatform(); err != nil {
		return nil, "", err
	}
	if err := packages.Validate(r.opts.Specs); err != nil {
		return nil, "", err
	}
	resolved, err := packages.ResolveArchives(r.opts.PackagesDir, r.opts.Specs)
	if err != nil {
		return nil, "", err
	}
	nodePath, nodeVersion, err := resolveNode(ctx, r.opts.NodeBin, r.log)
	if err != nil {
		return nil, "", err
	}
	r.log.Info("preflight ok",
		"packages", len(resolved),
		"node", nodePath,
		"node_version", nodeVersion)
	return resolved, nodePath, nil
}

// backupAndQuarantine archives the current install, verifies the archive
// landed, then moves the prior directories aside. Nothing is ever deleted:
// a rename that fails (a file lock held by a running server, say) aborts
// the run with the already-moved entries recorded in the batch sidecar.
func (r *Runner) backupAndQuarantine(l *runlog.Log) error {
	displaceable := r.opts.Stack.Displaceable()

	sources := make([]archive.Source, 0, len(displaceable)+1)
	for _, dir := range displaceable {
		sources = append(sources, archive.Source{Path: dir, Name: filepath.Base(dir)})
	}
	sources = append(sources, archive.Source{
		Path: r.opts.DesktopConfigPath,
		Name: filepath.Base(r.opts.DesktopConfigPath),
	})

	mgr := backup.NewManager(
		backup.WithBackupDir(r.opts.Stack.BackupsDir()),
		backup.WithToolVersion(r.opts.ToolVersion))
	manifest, err := mgr.Backup(sources)
	if err != nil {
		return err
	}
	l.Backup = &runlog.BackupRecord{
		ID:        manifest.ID,
		Archive:   manifest.Archive,
		SizeBytes: manifest.SizeBytes,
		SHA256:    manifest.SHA256,
	}
	r.log.Info("backup created",
		"id", manifest.ID,
		"size_bytes", manifest.SizeBytes)

	batch, err := quarantine.NewManager(r.opts.Stack.QuarantineDir()).Displace(displaceable)
	if err != nil {
		return err
	}
	if batch == nil {
		r.log.Info("nothing to quarantine")
		return nil
	}

	moved := make([]string, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		moved = append(moved, e.OriginalPath)
	}
	l.Quarantine = &runlog.QuarantineRecord{BatchID: batch.ID, Dir: batch.Dir, Moved: moved}
	r.log.Info("prior directories quarantined",
		"batch", batch.ID,
		"entries", len(batch.Entries))
	return nil
}

func (r *Runner) installAll(ctx context.Context, l *runlog.Log, resolved []packages.Resolved) ([]*packages.Installed, error) {
	inst := packages.NewInstaller(r.opts.Stack.Packages())
	installed := make([]*packages.Installed, 0, len(resolved))
	for _, res := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := inst.Install(res)
		if err != nil {
			return nil, err
		}
		l.Packages = append(l.Packages, runlog.PackageRecord{
			Name:       out.Name,
			Version:    out.Version,
			Archive:    out.ArchivePath,
			EntryPoint: out.EntryPoint,
			Wrapper:    out.WrapperPath,
		})
		installed = append(installed, out)
		r.log.Info("package installed",
			"name", out.Name,
			"version", out.Version,
			"entry", out.EntryPoint)
	}
	return installed, nil
}

func (r *Runner) mergeConfig(l *runlog.Log, nodePath string, installed []*packages.Installed) error {
	store := desktop.NewStore(r.opts.DesktopConfigPath)

	var warning string
	prior, err := store.Load()
	if err != nil {
		if !errors.Is(err, desktop.ErrConfigUnreadable) {
			return err
		}
		// A mangled config belongs to the operator; the pre-write backup
		// preserves its bytes while the merge starts from empty.
		warning = err.Error()
		r.log.Warn("desktop config unreadable, merging into empty config",
			"path", store.Path(),
			"error", err)
		prior = desktop.NewConfig()
	}

	managed := make([]*desktop.Server, 0, len(installed))
	names := make([]string, 0, len(installed))
	for _, pkg := range installed {
		managed = append(managed, desktop.NewServer(pkg.Name, nodePath, pkg.WrapperPath, pkg.Args, pkg.Env))
		names = append(names, pkg.Name)
	}

	backupPath, err := store.Save(desktop.Merge(prior, managed))
	if err != nil {
		return err
	}
	l.Merge = &runlog.MergeRecord{
		Path:       store.Path(),
		BackupPath: backupPath,
		Managed:    names,
		Warning:    warning,
	}
	r.log.Info("desktop config updated",
		"path", store.Path(),
		"servers", len(names))
	return nil
}

// validate probes each installed server, one at a time. A failed probe is
// a finding for the run log, not a reason to abort: the rebuild itself
// already succeeded.
func (r *Runner) validate(ctx context.Context, l *runlog.Log, nodePath string, installed []*packages.Installed) {
	if r.opts.SkipValidate {
		r.log.Info("server validation skipped")
		return
	}

	prober := probe.NewProber(
		probe.WithTimeout(r.opts.ProbeTimeout),
		probe.WithClientInfo(paths.AppName, r.opts.ToolVersion),
	)
	for _, pkg := range installed {
		target := probe.Target{
			Name:    pkg.Name,
			Command: nodePath,
			Args:    append([]string{pkg.WrapperPath}, pkg.Args...),
			Env:     pkg.Env,
		}
		res := prober.Probe(ctx, target)
		l.Validations = append(l.Validations, res)
		if res.OK {
			r.log.Info("server validated",
				"name", res.Name,
				"tools", res.ToolCount,
				"duration_ms", res.DurationMS)
		} else {
			r.log.Warn("server validation failed",
				"name", res.Name,
				"error", res.Error,
				"timed_out", res.TimedOut)
		}
	}
}

// snapshot archives the rebuilt stack root. The snapshots directory itself
// is excluded; a snapshot containing its predecessors would grow without
// bound. Snapshot failures degrade the run log, not the run.
func (r *Runner) snapshot(l *runlog.Log) {
	entries, err := os.ReadDir(r.opts.Stack.Root)
	if err != nil {
		r.log.Warn("skipping snapshot", "error", err)
		return
	}
	sources := make([]archive.Source, 0, len(entries))
	for _, e := range entries {
		if e.Name() == paths.DirSnapshots {
			continue
		}
		sources = append(sources, archive.Source{
			Path: filepath.Join(r.opts.Stack.Root, e.Name()),
			Name: e.Name(),
		})
	}

	short := l.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	dest := filepath.Join(r.opts.Stack.SnapshotsDir(),
		"snapshot-"+l.StartedAt.UTC().Format("20060102T150405")+"-"+short+".tar.gz")
	if err := archive.Create(dest, sources); err != nil {
		r.log.Warn("skipping snapshot", "error", err)
		return
	}
	info, err := os.Stat(dest)
	if err != nil {
		r.log.Warn("snapshot written but unreadable", "path", dest, "error", err)
		return
	}
	l.Snapshot = &runlog.SnapshotRecord{Archive: dest, SizeBytes: info.Size()}
	r.log.Info("snapshot written", "path", dest, "size_bytes", info.Size())
}
