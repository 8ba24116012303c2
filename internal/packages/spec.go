// Package packages declares which MCP servers a stack contains and
// installs them from local archives.
package packages

import (
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"restack/internal/errors"
	"restack/pkg/fileutil"
)

// Sentinel errors for manifest validation.
var (
	ErrNoPackages    = errors.New("manifest defines no packages")
	ErrDuplicateName = errors.New("duplicate package name")
)

// Spec declares one package: a stack-local name and the archive glob
// that locates its tarball in the packages directory.
type Spec struct {
	Name    string            `toml:"name"`
	Archive string            `toml:"archive"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

// File is the on-disk manifest shape (stack.toml).
type File struct {
	Packages []Spec `toml:"packages"`
}

// Defaults returns the built-in package set used when no manifest is
// configured.
func Defaults() []Spec {
	return []Spec{
		{Name: "filesystem", Archive: "server-filesystem-*.tgz"},
		{Name: "memory", Archive: "server-memory-*.tgz"},
	}
}

// LoadFile reads and validates a TOML package manifest.
func LoadFile(path string) ([]Spec, error) {
	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}

	if err := Validate(f.Packages); err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}

	return f.Packages, nil
}

// Validate checks a package list for completeness and unique names.
func Validate(specs []Spec) error {
	if len(specs) == 0 {
		return ErrNoPackages
	}

	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		if err := validateName(spec.Name); err != nil {
			return errors.Wrapf(err, "package %d", i+1)
		}
		if spec.Archive == "" {
			return errors.Newf("package %q: archive pattern is required", spec.Name)
		}
		if _, dup := seen[spec.Name]; dup {
			return errors.Wrapf(ErrDuplicateName, "%q", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	return nil
}

// validateName rejects names that cannot serve as a directory name
// under the packages directory.
func validateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if name == "." || name == ".." {
		return errors.Newf("invalid name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.Newf("invalid name %q: must not contain path separators", name)
	}
	return nil
}
