package packages

import (
	"os"
	"path/filepath"
	"strings"

	"restack/internal/errors"
)

// Resolved pairs a Spec with the single archive file its pattern matched.
type Resolved struct {
	Spec

	// ArchivePath is the absolute path of the matched tarball.
	ArchivePath string
}

// ResolveArchives locates exactly one archive file per spec in dir.
//
// Resolution is strict: zero matches and multiple matches are both
// errors, and all specs are resolved before anything is installed, so a
// bad pattern surfaces before the stack is touched.
func ResolveArchives(dir string, specs []Spec) ([]Resolved, error) {
	resolved := make([]Resolved, 0, len(specs))

	for _, spec := range specs {
		path, err := resolveOne(dir, spec)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, Resolved{Spec: spec, ArchivePath: path})
	}

	return resolved, nil
}

func resolveOne(dir string, spec Spec) (string, error) {
	pattern := filepath.Join(dir, spec.Archive)

	// Glob returns lexically sorted matches
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", errors.Wrapf(err, "package %q: bad archive pattern %q", spec.Name, spec.Archive)
	}

	// Directories that happen to match the pattern don't count
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	switch len(files) {
	case 1:
		return files[0], nil
	case 0:
		return "", errors.Wrapf(errors.ErrArchiveNotFound,
			"package %q: nothing matches %q in %s", spec.Name, spec.Archive, dir)
	default:
		return "", errors.Wrapf(errors.ErrArchiveAmbiguous,
			"package %q: pattern %q matches %s", spec.Name, spec.Archive, strings.Join(files, ", "))
	}
}
