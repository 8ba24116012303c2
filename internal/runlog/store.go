package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"restack/internal/paths"
	"restack/pkg/fileutil"
)

// ErrNoLogsFound indicates the logs directory holds no run logs.
var ErrNoLogsFound = errors.New("no run logs found")

const logPrefix = "rebuild"

// Store reads and writes run logs in a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write persists the log and returns the path it was written to. The file
// stem doubles as the log ID: rebuild-<timestamp>-<run id prefix>.
func (s *Store) Write(l *Log) (string, error) {
	if err := paths.EnsureDir(s.dir, 0); err != nil {
		return "", errors.Wrapf(err, "creating log directory %s", s.dir)
	}

	short := l.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s-%s-%s.json", logPrefix, l.StartedAt.UTC().Format("20060102T150405"), short)
	path := filepath.Join(s.dir, name)

	if err := fileutil.AtomicWriteJSON(path, l); err != nil {
		return "", errors.Wrapf(err, "writing run log %s", path)
	}
	return path, nil
}

// Load reads a single run log by ID (the file stem).
func (s *Store) Load(id string) (*Log, error) {
	data, err := fileutil.ReadFileWithLimit(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoLogsFound, "run log %s not found", id)
		}
		return nil, errors.Wrapf(err, "reading run log %s", id)
	}

	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrapf(err, "parsing run log %s", id)
	}
	l.ID = id
	return &l, nil
}

// List returns every run log, newest first. Unreadable files are skipped so
// one corrupt log cannot hide the rest.
func (s *Store) List() ([]*Log, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, logPrefix+"-*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "listing run logs")
	}

	logs := make([]*Log, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		l, err := s.Load(id)
		if err != nil {
			continue
		}
		logs = append(logs, l)
	}
	if len(logs) == 0 {
		return nil, ErrNoLogsFound
	}

	slices.SortFunc(logs, func(a, b *Log) int {
		if !a.StartedAt.Equal(b.StartedAt) {
			if a.StartedAt.After(b.StartedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})
	return logs, nil
}
