// Package quarantine displaces prior stack state instead of deleting it.
//
// A rebuild never removes existing directories: they are renamed into a
// timestamped batch directory under the quarantine root, where they remain
// until an operator explicitly prunes them. Renames stay on the same
// filesystem (the quarantine root lives inside the stack root), so a
// displacement is atomic and cannot half-copy a tree.
package quarantine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"restack/pkg/fileutil"
)

// ErrNoBatchesFound indicates the quarantine directory holds no batches.
var ErrNoBatchesFound = errors.New("no quarantine batches found")

// sidecarName is the metadata filename inside each batch directory.
const sidecarName = "batch.json"

// Entry records one displaced path within a batch.
type Entry struct {
	// Name is the entry's name inside the batch directory.
	Name string `json:"name"`

	// OriginalPath is where the entry lived before displacement.
	OriginalPath string `json:"original_path"`
}

// Batch describes one quarantine batch on disk.
type Batch struct {
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`

	// ID is the batch identifier (timestamp format: 20260123T100712).
	// Populated when loading from disk but not stored in JSON.
	ID string `json:"-"`

	// Dir is the batch directory on disk. Not stored in JSON.
	Dir string `json:"-"`
}

// Manager handles quarantine batches under a fixed root directory.
type Manager struct {
	rootDir string
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{rootDir: dir}
}

// Displace moves every existing path into a new timestamped batch.
//
// Paths that do not exist are skipped. If nothing exists, no batch
// directory is created and Displace returns (nil, nil).
//
// A failed rename (for example a file lock held by a running process)
// aborts immediately with an error; entries moved before the failure stay
// in the batch, recorded in its sidecar, and nothing is ever deleted.
func (m *Manager) Displace(paths []string) (*Batch, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	batch := &Batch{CreatedAt: time.Now().UTC()}

	for _, p := range paths {
		if _, err := os.Lstat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "stat %s", p)
		}

		// Create the batch directory lazily so empty batches never exist.
		if batch.Dir == "" {
			id, dir, err := m.newBatchDir(batch.CreatedAt)
			if err != nil {
				return nil, err
			}
			batch.ID = id
			batch.Dir = dir
		}

		name := filepath.Base(p)
		if err := os.Rename(p, filepath.Join(batch.Dir, name)); err != nil {
			// Record what was displaced before the failure, then abort.
			m.writeSidecar(batch)
			return nil, errors.Wrapf(err, "quarantining %s", p)
		}
		batch.Entries = append(batch.Entries, Entry{Name: name, OriginalPath: p})
	}

	if batch.Dir == "" {
		return nil, nil
	}

	if err := fileutil.AtomicWriteJSON(filepath.Join(batch.Dir, sidecarName), batch); err != nil {
		return nil, errors.Wrap(err, "writing batch sidecar")
	}

	return batch, nil
}

// newBatchDir creates a fresh batch directory, bumping a numeric suffix
// if a batch from the same second already exists.
func (m *Manager) newBatchDir(createdAt time.Time) (id, dir string, err error) {
	if err := os.MkdirAll(m.rootDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating quarantine directory")
	}

	base := createdAt.Format("20060102T150405")
	id = base
	for n := 2; ; n++ {
		dir = filepath.Join(m.rootDir, id)
		mkErr := os.Mkdir(dir, 0o755)
		if mkErr == nil {
			return id, dir, nil
		}
		if !os.IsExist(mkErr) {
			return "", "", errors.Wrap(mkErr, "creating batch directory")
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (m *Manager) writeSidecar(batch *Batch) {
	if batch.Dir == "" {
		return
	}
	_ = fileutil.AtomicWriteJSON(filepath.Join(batch.Dir, sidecarName), batch)
}

// List returns all batches, sorted by date (newest first).
func (m *Manager) List() ([]Batch, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBatchesFound
		}
		return nil, errors.Wrap(err, "reading quarantine directory")
	}

	batches := make([]Batch, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		batch, err := m.Get(entry.Name())
		if err != nil {
			// Skip directories without a readable sidecar
			continue
		}
		batches = append(batches, *batch)
	}

	if len(batches) == 0 {
		return nil, ErrNoBatchesFound
	}

	// Sort by date, newest first
	slices.SortFunc(batches, func(a, b Batch) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})

	return batches, nil
}

// Get returns the batch with the given ID.
func (m *Manager) Get(id string) (*Batch, error) {
	if id == "" {
		return nil, errors.New("batch ID is required")
	}

	dir := filepath.Join(m.rootDir, id)
	data, err := os.ReadFile(filepath.Join(dir, sidecarName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoBatchesFound, "batch %s not found", id)
		}
		return nil, errors.Wrap(err, "reading batch sidecar")
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, errors.Wrap(err, "parsing batch sidecar")
	}

	batch.ID = id
	batch.Dir = dir
	return &batch, nil
}

// Prune deletes old batches beyond the specified retention count.
// This is the only operation that actually removes quarantined state,
// and it only runs when an operator asks for it.
func (m *Manager) Prune(keep int) error {
	if keep < 0 {
		return errors.New("keep must be non-negative")
	}

	batches, err := m.List()
	if err != nil {
		if errors.Is(err, ErrNoBatchesFound) {
			return nil // Nothing to prune
		}
		return err
	}

	// Already sorted newest first, delete everything beyond 'keep'
	for i := keep; i < len(batches); i++ {
		if err := os.RemoveAll(batches[i].Dir); err != nil {
			return errors.Wrapf(err, "removing batch %s", batches[i].ID)
		}
	}

	return nil
}
