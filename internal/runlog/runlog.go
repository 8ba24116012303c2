// Package runlog persists the structured record of each rebuild run.
//
// One JSON document per run lands in the stack's logs directory. The
// document accumulates as the run progresses, so a log written after a
// fatal error still shows every phase that completed before it.
package runlog

import (
	"time"

	"github.com/google/uuid"

	"restack/internal/probe"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Log is the full record of a single rebuild run.
type Log struct {
	RunID       string    `json:"run_id"`
	ToolVersion string    `json:"tool_version"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	StackRoot     string `json:"stack_root"`
	PackagesDir   string `json:"packages_dir"`
	DesktopConfig string `json:"desktop_config"`
	NodeBin       string `json:"node_bin,omitempty"`

	Backup      *BackupRecord     `json:"backup,omitempty"`
	Quarantine  *QuarantineRecord `json:"quarantine,omitempty"`
	Packages    []PackageRecord   `json:"packages,omitempty"`
	Merge       *MergeRecord      `json:"merge,omitempty"`
	Validations []probe.Result    `json:"validations,omitempty"`
	Snapshot    *SnapshotRecord   `json:"snapshot,omitempty"`

	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`

	// ID is the log's file stem, set when loading from disk.
	ID string `json:"-"`
}

// BackupRecord points at the pre-run backup archive.
type BackupRecord struct {
	ID        string `json:"id"`
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// QuarantineRecord points at the batch holding the displaced directories.
type QuarantineRecord struct {
	BatchID string   `json:"batch_id"`
	Dir     string   `json:"dir"`
	Moved   []string `json:"moved,omitempty"`
}

// PackageRecord describes one installed package.
type PackageRecord struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Archive    string `json:"archive"`
	EntryPoint string `json:"entry_point"`
	Wrapper    string `json:"wrapper"`
}

// MergeRecord describes the desktop configuration update.
type MergeRecord struct {
	Path       string   `json:"path"`
	BackupPath string   `json:"backup_path,omitempty"`
	Managed    []string `json:"managed"`
	Warning    string   `json:"warning,omitempty"`
}

// SnapshotRecord points at the post-run snapshot archive.
type SnapshotRecord struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// New starts a log for a run beginning now.
func New(toolVersion string) *Log {
	return &Log{
		RunID:       uuid.NewString(),
		ToolVersion: toolVersion,
		StartedAt:   time.Now().UTC(),
	}
}

// Finish stamps the end of the run: a nil error records success, anything
// else records failure with its message.
func (l *Log) Finish(err error) {
	l.FinishedAt = time.Now().UTC()
	if err != nil {
		l.Outcome = OutcomeFailure
		l.Error = err.Error()
		return
	}
	l.Outcome = OutcomeSuccess
}
