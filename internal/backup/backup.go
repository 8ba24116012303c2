package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"restack/internal/archive"
	"restack/internal/paths"
	"restack/pkg/fileutil"
)

// Manager handles archive creation, verification, and retention.
type Manager struct {
	rootDir        string
	retentionCount int
	prefix         string
	toolVersion    string
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackupDir sets the root backup directory.
func WithBackupDir(dir string) Option {
	return func(m *Manager) {
		m.rootDir = dir
	}
}

// WithRetentionCount sets the number of archives to retain.
func WithRetentionCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retentionCount = n
		}
	}
}

// WithPrefix sets the archive filename prefix. Backups and stack
// snapshots share the Manager mechanics under different prefixes.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithToolVersion sets the tool version recorded in new manifests.
func WithToolVersion(v string) Option {
	return func(m *Manager) {
		if v != "" {
			m.toolVersion = v
		}
	}
}

// NewManager creates a new backup Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rootDir:        filepath.Join(paths.DefaultStackRoot(), paths.DirBackups),
		retentionCount: DefaultRetentionCount,
		prefix:         DefaultPrefix,
		toolVersion:    "dev",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backup captures the given sources into a single compressed archive.
// Returns the manifest describing the archive, or an error.
//
// The archive is verified on disk (present and non-empty) before the
// manifest is written, so a returned manifest always describes a real,
// non-empty archive. Missing sources are skipped; an archive is created
// even when nothing exists yet.
func (m *Manager) Backup(sources []archive.Source) (*Manifest, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}

	if err := os.MkdirAll(m.rootDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating backup directory")
	}

	id := m.nextID()
	archivePath := m.ArchivePath(id)

	if err := archive.Create(archivePath, sources); err != nil {
		return nil, errors.Wrap(err, "creating archive")
	}

	// Verify the archive landed on disk and is non-empty before anything
	// destructive happens downstream.
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, errors.Wrap(err, "verifying archive")
	}
	if info.Size() == 0 {
		os.Remove(archivePath)
		return nil, errors.Wrapf(ErrBackupCorrupted, "archive %s is empty", filepath.Base(archivePath))
	}

	hash, err := hashFile(archivePath)
	if err != nil {
		return nil, errors.Wrap(err, "hashing archive")
	}

	srcPaths := make([]string, 0, len(sources))
	for _, src := range sources {
		srcPaths = append(srcPaths, src.Path)
	}

	manifest := &Manifest{
		Version:     ManifestVersion,
		CreatedAt:   time.Now().UTC(),
		Kind:        m.prefix,
		Sources:     srcPaths,
		Archive:     filepath.Base(archivePath),
		SizeBytes:   info.Size(),
		SHA256:      hash,
		ToolVersion: m.toolVersion,
		ID:          id,
	}

	if err := fileutil.AtomicWriteJSON(m.manifestPath(id), manifest); err != nil {
		return nil, errors.Wrap(err, "writing manifest")
	}

	return manifest, nil
}

// nextID generates a timestamp-based archive ID, bumping a numeric
// suffix if an archive from the same second already exists.
func (m *Manager) nextID() string {
	base := time.Now().UTC().Format("20060102T150405")
	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(m.ArchivePath(id)); os.IsNotExist(err) {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// Verify recomputes the archive hash and compares it to the manifest.
func (m *Manager) Verify(id string) error {
	manifest, err := m.Get(id)
	if err != nil {
		return err
	}

	hash, err := hashFile(m.ArchivePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(ErrBackupCorrupted, "archive %s missing", manifest.Archive)
		}
		return errors.Wrap(err, "reading archive")
	}
	if hash != manifest.SHA256 {
		return errors.Wrapf(ErrBackupCorrupted, "archive %s hash mismatch", manifest.Archive)
	}

	return nil
}

// Restore extracts an archive into destDir after verifying its integrity.
func (m *Manager) Restore(id, destDir string) error {
	if id == "" {
		return errors.New("backup ID is required")
	}
	if destDir == "" {
		return errors.New("destination directory is required")
	}

	if err := m.Verify(id); err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "creating destination directory")
	}

	if err := archive.Extract(m.ArchivePath(id), destDir, archive.ExtractOptions{}); err != nil {
		return errors.Wrapf(err, "extracting backup %s", id)
	}

	return nil
}

// List returns all available archives, sorted by date (newest first).
func (m *Manager) List() ([]Manifest, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBackupsFound
		}
		return nil, errors.Wrap(err, "reading backup directory")
	}

	manifests := make([]Manifest, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, m.prefix+"-") || !strings.HasSuffix(name, ".json") {
			continue
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, m.prefix+"-"), ".json")
		manifest, err := m.Get(id)
		if err != nil {
			// Skip unreadable manifests
			continue
		}
		manifests = append(manifests, *manifest)
	}

	if len(manifests) == 0 {
		return nil, ErrNoBackupsFound
	}

	// Sort by date, newest first
	slices.SortFunc(manifests, func(a, b Manifest) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})

	return manifests, nil
}

// Prune removes old archives beyond the specified retention count.
// Keeps the most recent 'keep' archives.
func (m *Manager) Prune(keep int) error {
	if keep < 0 {
		return errors.New("keep must be non-negative")
	}

	manifests, err := m.List()
	if err != nil {
		if errors.Is(err, ErrNoBackupsFound) {
			return nil // Nothing to prune
		}
		return err
	}

	// Already sorted newest first, delete everything beyond 'keep'
	for i := keep; i < len(manifests); i++ {
		id := manifests[i].ID
		if err := os.Remove(m.ArchivePath(id)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing archive %s", id)
		}
		if err := os.Remove(m.manifestPath(id)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing manifest %s", id)
		}
	}

	return nil
}

// Get returns the manifest for a specific archive.
func (m *Manager) Get(id string) (*Manifest, error) {
	if id == "" {
		return nil, errors.New("backup ID is required")
	}

	data, err := os.ReadFile(m.manifestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoBackupsFound, "backup %s not found", id)
		}
		return nil, errors.Wrap(err, "reading manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}

	manifest.ID = id
	return &manifest, nil
}

// ArchivePath returns the full path to an archive file.
func (m *Manager) ArchivePath(id string) string {
	return filepath.Join(m.rootDir, m.prefix+"-"+id+".tar.gz")
}

// manifestPath returns the full path to a manifest sidecar.
func (m *Manager) manifestPath(id string) string {
	return filepath.Join(m.rootDir, m.prefix+"-"+id+".json")
}

// hashFile computes the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
