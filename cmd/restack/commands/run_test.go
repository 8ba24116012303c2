package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restack/internal/errors"
	"restack/internal/packages"
	"restack/internal/probe"
	"restack/internal/runlog"
)

func TestRunCommand_Metadata(t *testing.T) {
	if runCmd.Use != "run" {
		t.Errorf("Use = %q, want %q", runCmd.Use, "run")
	}
	if runCmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	for _, flag := range []string{"packages", "stack-root", "desktop-config", "manifest", "timeout", "skip-validate"} {
		if runCmd.Flags().Lookup(flag) == nil {
			t.Errorf("--%s flag should be defined", flag)
		}
	}
}

func TestClassifyRunError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "missing archive is a user error",
			err:      errors.Wrap(errors.ErrArchiveNotFound, "package \"memory\""),
			wantCode: errors.ExitUser,
		},
		{
			name:     "ambiguous archive is a user error",
			err:      errors.Wrap(errors.ErrArchiveAmbiguous, "package \"memory\""),
			wantCode: errors.ExitUser,
		},
		{
			name:     "missing entry point is a user error",
			err:      errors.Wrap(errors.ErrNoEntryPoint, "package \"memory\""),
			wantCode: errors.ExitUser,
		},
		{
			name:     "missing runtime is a user error",
			err:      errors.Wrap(errors.ErrRuntimeNotFound, "node"),
			wantCode: errors.ExitUser,
		},
		{
			name:     "unsupported platform is a user error",
			err:      errors.Wrap(errors.ErrUnsupportedPlatform, "plan9/386"),
			wantCode: errors.ExitUser,
		},
		{
			name:     "empty manifest is a user error",
			err:      packages.ErrNoPackages,
			wantCode: errors.ExitUser,
		},
		{
			name:     "duplicate package is a user error",
			err:      errors.Wrap(packages.ErrDuplicateName, "\"memory\""),
			wantCode: errors.ExitUser,
		},
		{
			name:     "anything else is a system error",
			err:      errors.New("tar write failed"),
			wantCode: errors.ExitSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyRunError(tt.err)

			var exitErr *errors.ExitError
			require.True(t, errors.As(got, &exitErr), "classifyRunError should return an ExitError")
			assert.Equal(t, tt.wantCode, exitErr.Code)
			assert.True(t, errors.Is(got, tt.err) || errors.Is(exitErr.Err, tt.err),
				"classified error should preserve the cause")
		})
	}
}

func TestLoadSpecs(t *testing.T) {
	t.Run("no manifest uses built-in set", func(t *testing.T) {
		specs, err := loadSpecs("")
		require.NoError(t, err)
		assert.Equal(t, packages.Defaults(), specs)
	})

	t.Run("valid manifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stack.toml")
		manifest := `[[packages]]
name = "filesystem"
archive = "server-filesystem-*.tgz"

[[packages]]
name = "github"
archive = "server-github-*.tgz"
env = { GITHUB_TOKEN = "placeholder" }
`
		require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

		specs, err := loadSpecs(path)
		require.NoError(t, err)
		require.Len(t, specs, 2)
		assert.Equal(t, "github", specs[1].Name)
	})

	t.Run("broken manifest is a user error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stack.toml")
		require.NoError(t, os.WriteFile(path, []byte("[[packages\n"), 0644))

		_, err := loadSpecs(path)
		require.Error(t, err)

		var exitErr *errors.ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, errors.ExitUser, exitErr.Code)
	})
}

func TestPrintRunSummary(t *testing.T) {
	started := time.Date(2026, 8, 23, 10, 15, 0, 0, time.UTC)

	t.Run("successful run", func(t *testing.T) {
		l := &runlog.Log{
			RunID:      "1a2b3c4d-0000-0000-0000-000000000000",
			StartedAt:  started,
			FinishedAt: started.Add(3 * time.Second),
			Outcome:    runlog.OutcomeSuccess,
			Backup:     &runlog.BackupRecord{ID: "backup-20260823T101500", SizeBytes: 2048},
			Quarantine: &runlog.QuarantineRecord{BatchID: "batch-20260823T101500", Moved: []string{"servers"}},
			Packages: []runlog.PackageRecord{
				{Name: "filesystem", Version: "1.2.3", EntryPoint: "dist/index.js"},
			},
			Merge: &runlog.MergeRecord{Path: "claude_desktop_config.json", Managed: []string{"filesystem"}},
			Snapshot: &runlog.SnapshotRecord{
				Archive: "snapshot-20260823T101503.tar.gz", SizeBytes: 4096,
			},
		}

		var buf bytes.Buffer
		printRunSummary(&buf, l)
		out := buf.String()

		for _, want := range []string{
			"backup backup-20260823T101500",
			"quarantined 1 prior directories",
			"installed filesystem 1.2.3",
			"desktop config updated",
			"snapshot snapshot-20260823T101503.tar.gz",
			"Rebuild complete in 3s",
		} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("failed run shows the error", func(t *testing.T) {
		l := &runlog.Log{
			RunID:      "deadbeef-0000-0000-0000-000000000000",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Outcome:    runlog.OutcomeFailure,
			Error:      "package \"memory\": nothing matches \"server-memory-*.tgz\"",
		}

		var buf bytes.Buffer
		printRunSummary(&buf, l)

		assert.Contains(t, buf.String(), "rebuild failed")
		assert.NotContains(t, buf.String(), "Rebuild complete")
	})

	t.Run("nil log prints nothing", func(t *testing.T) {
		var buf bytes.Buffer
		printRunSummary(&buf, nil)
		assert.Empty(t, buf.String())
	})

	t.Run("validation failure is reported but not fatal", func(t *testing.T) {
		l := &runlog.Log{
			RunID:      "cafebabe-0000-0000-0000-000000000000",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Outcome:    runlog.OutcomeSuccess,
		}
		l.Validations = []probe.Result{
			{Name: "memory", OK: false, Error: "handshake timed out", TimedOut: true},
			{Name: "filesystem", OK: true, ToolCount: 11, DurationMS: 120},
		}

		var buf bytes.Buffer
		printRunSummary(&buf, l)
		out := buf.String()

		assert.Contains(t, out, "memory failed validation")
		assert.Contains(t, out, "filesystem responded")
		assert.Contains(t, out, "Rebuild complete")
	})
}

func TestPrintRunSummary_QuietSuppressesOutput(t *testing.T) {
	quiet = true
	defer func() { quiet = false }()

	var buf bytes.Buffer
	printRunSummary(&buf, &runlog.Log{RunID: "x", Outcome: runlog.OutcomeSuccess})
	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("quiet mode should print nothing, got %q", buf.String())
	}
}
