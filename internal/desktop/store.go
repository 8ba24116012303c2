package desktop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"restack/internal/errors"
	"restack/pkg/fileutil"
)

// ErrConfigUnreadable indicates the config file exists but cannot be
// parsed. Callers treat this as a warning and start from an empty config;
// the unreadable original still gets a timestamped backup before any write.
var ErrConfigUnreadable = errors.New("desktop config unreadable")

// Store reads and writes one desktop configuration file.
type Store struct {
	path string
}

// NewStore creates a Store for the given config path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the configuration from disk.
// A missing file yields an empty config; a file that exists but fails to
// parse yields ErrConfigUnreadable.
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, errors.Wrap(err, "reading desktop config")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(ErrConfigUnreadable, "%s: %v", s.path, err)
	}

	return &cfg, nil
}

// Save validates and writes the configuration.
//
// The serialized bytes are re-parsed before anything touches disk; a
// config that would not load back aborts the save with the original file
// intact. A pre-existing file is first copied to a timestamped .bak
// sibling, then the new content replaces it atomically.
//
// Returns the backup path, or "" if no prior file existed.
func (s *Store) Save(cfg *Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "serializing desktop config")
	}
	data = append(data, '\n')

	if err := validateRoundTrip(cfg, data); err != nil {
		return "", err
	}

	backupPath, err := s.backupExisting()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", errors.Wrap(err, "creating config directory")
	}

	if err := fileutil.AtomicWriteFile(s.path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing desktop config")
	}

	return backupPath, nil
}

// validateRoundTrip re-parses the serialized bytes and checks the managed
// registry survived intact.
func validateRoundTrip(cfg *Config, data []byte) error {
	var check Config
	if err := json.Unmarshal(data, &check); err != nil {
		return errors.Wrap(err, "round-trip validation failed")
	}

	if len(check.Servers) != len(cfg.Servers) {
		return errors.Newf("round-trip validation failed: serialized %d servers, re-parsed %d",
			len(cfg.Servers), len(check.Servers))
	}
	for name := range cfg.Servers {
		if _, ok := check.Servers[name]; !ok {
			return errors.Newf("round-trip validation failed: server %q missing after re-parse", name)
		}
	}

	return nil
}

// backupExisting copies the current file to a timestamped sibling.
// Returns "" when there is nothing to back up.
func (s *Store) backupExisting() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading existing config")
	}

	base := s.path + ".bak-" + time.Now().UTC().Format("20060102T150405")
	backupPath := base
	for n := 2; ; n++ {
		if _, err := os.Lstat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = fmt.Sprintf("%s-%d", base, n)
	}

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing config backup")
	}

	return backupPath, nil
}
