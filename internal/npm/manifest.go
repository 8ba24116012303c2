// Package npm reads package manifests and resolves server entry points.
package npm

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"restack/internal/errors"
	"restack/pkg/fileutil"
)

// Manifest holds the package.json fields restack cares about.
type Manifest struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Bin     BinField        `json:"bin"`
	Exports json.RawMessage `json:"exports"`
}

// BinField models the two shapes of the "bin" field: a bare string, or a
// map of command name to script path.
type BinField struct {
	// Path is set when "bin" was a bare string.
	Path string

	// Commands is set when "bin" was an object.
	Commands map[string]string
}

// UnmarshalJSON accepts either form of the "bin" field.
func (b *BinField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Path = s
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "parsing bin field")
	}
	b.Commands = m
	return nil
}

// MarshalJSON mirrors UnmarshalJSON for round-trip symmetry.
func (b BinField) MarshalJSON() ([]byte, error) {
	if b.Path != "" {
		return json.Marshal(b.Path)
	}
	if b.Commands != nil {
		return json.Marshal(b.Commands)
	}
	return []byte("null"), nil
}

// Load reads and parses package.json from an extracted package directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "package.json")

	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return &m, nil
}

// EntryPoint resolves the package's runnable entry point, in priority
// order: bin, then main, then the default export. The returned path is
// relative to the package directory with any leading "./" stripped.
//
// Resolution is pure: it never touches the filesystem, so whether the
// resolved file actually exists is the caller's problem.
func (m *Manifest) EntryPoint() (string, error) {
	if p := m.binEntry(); p != "" {
		return cleanEntry(p), nil
	}

	if m.Main != "" {
		return cleanEntry(m.Main), nil
	}

	if p := m.exportsEntry(); p != "" {
		return cleanEntry(p), nil
	}

	return "", errors.Wrapf(errors.ErrNoEntryPoint, "package %s", m.Name)
}

// binEntry resolves the "bin" field. A bare string wins outright. For a
// map, prefer the command matching the package's short name, then a sole
// command, then the lexicographically smallest command for determinism.
func (m *Manifest) binEntry() string {
	if m.Bin.Path != "" {
		return m.Bin.Path
	}
	if len(m.Bin.Commands) == 0 {
		return ""
	}

	if p, ok := m.Bin.Commands[shortName(m.Name)]; ok && p != "" {
		return p
	}

	keys := make([]string, 0, len(m.Bin.Commands))
	for k := range m.Bin.Commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if p := m.Bin.Commands[k]; p != "" {
			return p
		}
	}
	return ""
}

// exportsEntry resolves the "exports" field: a bare string, the "."
// subpath (itself a string or a conditions object), or top-level
// conditions sugar. Only the "default" condition is honored.
func (m *Manifest) exportsEntry() string {
	if len(m.Exports) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Exports, &s); err == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(m.Exports, &obj); err != nil {
		return ""
	}

	if dot, ok := obj["."]; ok {
		return conditionTarget(dot)
	}
	if def, ok := obj["default"]; ok {
		return conditionTarget(def)
	}
	return ""
}

// conditionTarget unwraps an export target: either a string or a
// conditions object with a "default" key.
func conditionTarget(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if def, ok := obj["default"]; ok {
		var s string
		if err := json.Unmarshal(def, &s); err == nil {
			return s
		}
	}
	return ""
}

// shortName strips the scope from a package name:
// "@modelcontextprotocol/server-memory" becomes "server-memory".
func shortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func cleanEntry(p string) string {
	return strings.TrimPrefix(p, "./")
}
