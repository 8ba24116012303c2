package packages

import (
	"fmt"
	"os"
	"path/filepath"

	"restack/internal/archive"
	"restack/internal/errors"
	"restack/internal/npm"
	"restack/pkg/fileutil"
)

// npm pack tarballs nest everything under a top-level "package/" directory.
const tarballPrefix = "package/"

// wrapperTemplate is the launcher written next to each package directory.
// It resolves its own location at runtime, so the stack root can move (or
// sync between machines) without regenerating wrappers.
const wrapperTemplate = `#!/usr/bin/env node
// Generated by restack. Do not edit: regenerated on every rebuild.
import { fileURLToPath, pathToFileURL } from 'node:url';
import { dirname, join } from 'node:path';

const here = dirname(fileURLToPath(import.meta.url));
await import(pathToFileURL(join(here, %q)).href);
`

// Installed describes one package after installation.
type Installed struct {
	Spec

	// Version is the version recorded in the package manifest.
	Version string `json:"version"`

	// ArchivePath is the tarball the package was installed from.
	ArchivePath string `json:"archive_path"`

	// Dir is the extracted package directory.
	Dir string `json:"dir"`

	// EntryPoint is the resolved entry, relative to Dir.
	EntryPoint string `json:"entry_point"`

	// WrapperPath is the generated launcher script.
	WrapperPath string `json:"wrapper_path"`
}

// Installer unpacks archives into the packages directory and generates
// wrapper scripts. It never touches the network: archives are the only
// input.
type Installer struct {
	packagesDir string
}

// NewInstaller creates an Installer targeting the given packages directory.
func NewInstaller(packagesDir string) *Installer {
	return &Installer{packagesDir: packagesDir}
}

// Install extracts one resolved package and writes its wrapper script.
//
// The entry point is resolved from the package manifest and then verified
// to exist on disk; a package that names a missing entry fails the whole
// installation rather than producing a wrapper that can't start.
func (i *Installer) Install(r Resolved) (*Installed, error) {
	destDir := filepath.Join(i.packagesDir, r.Name)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating package directory for %q", r.Name)
	}

	opts := archive.ExtractOptions{StripPrefix: tarballPrefix}
	if err := archive.Extract(r.ArchivePath, destDir, opts); err != nil {
		return nil, errors.Wrapf(err, "extracting %s", filepath.Base(r.ArchivePath))
	}

	manifest, err := npm.Load(destDir)
	if err != nil {
		return nil, errors.Wrapf(err, "package %q", r.Name)
	}

	entry, err := manifest.EntryPoint()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(destDir, entry)); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNoEntryPoint,
				"package %q: entry point %s not present in archive", r.Name, entry)
		}
		return nil, errors.Wrapf(err, "stat entry point %s", entry)
	}

	wrapperPath := filepath.Join(i.packagesDir, r.Name+".mjs")
	if err := writeWrapper(wrapperPath, r.Name, entry); err != nil {
		return nil, err
	}

	return &Installed{
		Spec:        r.Spec,
		Version:     manifest.Version,
		ArchivePath: r.ArchivePath,
		Dir:         destDir,
		EntryPoint:  entry,
		WrapperPath: wrapperPath,
	}, nil
}

// writeWrapper renders the launcher script. The embedded target path is
// slash-separated; node's path.join normalizes it per platform.
func writeWrapper(path, name, entry string) error {
	content := fmt.Sprintf(wrapperTemplate, name+"/"+entry)
	if err := fileutil.AtomicWriteFile(path, []byte(content), 0o755); err != nil {
		return errors.Wrap(err, "writing wrapper script")
	}
	return nil
}
