package backup

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Manifest format version for forward compatibility.
const ManifestVersion = 1

// Default configuration values.
const (
	// DefaultRetentionCount is the default number of archives to retain.
	DefaultRetentionCount = 5

	// DefaultPrefix is the filename prefix for backup archives.
	DefaultPrefix = "backup"
)

// Sentinel errors for backup operations.
var (
	// ErrNoBackupsFound indicates no archives exist in the backup directory.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrBackupCorrupted indicates archive integrity verification failed.
	// This occurs when the archive's SHA256 hash doesn't match the manifest,
	// or the archive file is missing or empty.
	ErrBackupCorrupted = errors.New("backup corrupted")
)

// Manifest contains metadata about one archive.
// It is stored as a JSON sidecar next to the archive file.
type Manifest struct {
	// Version is the manifest format version for forward compatibility.
	Version int `json:"version"`

	// CreatedAt is when the archive was created.
	CreatedAt time.Time `json:"created_at"`

	// Kind distinguishes archive flavors ("backup", "snapshot").
	Kind string `json:"kind"`

	// Sources lists the original paths that were captured.
	Sources []string `json:"sources"`

	// Archive is the archive filename within the backup directory.
	Archive string `json:"archive"`

	// SizeBytes is the size of the archive file.
	SizeBytes int64 `json:"size_bytes"`

	// SHA256 is the hex-encoded SHA256 hash of the archive file.
	SHA256 string `json:"sha256"`

	// ToolVersion is the version of restack that created this archive.
	ToolVersion string `json:"tool_version"`

	// ID is the archive identifier (timestamp format: 20260123T100712).
	// This field is populated when loading from disk but not stored in JSON.
	ID string `json:"-"`
}
