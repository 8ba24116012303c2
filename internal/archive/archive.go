// Package archive creates and extracts gzip-compressed tarballs.
//
// Creation captures whole directory trees under caller-chosen top-level
// names, which keeps archives position-independent: an archive built from
// scattered absolute paths extracts into a single self-contained tree.
// Extraction guards against path traversal and decompression bombs.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Source names one file or directory tree to capture.
type Source struct {
	// Path is the location on disk. A missing path is skipped, not an
	// error: fresh installations legitimately have nothing to capture.
	Path string

	// Name is the top-level name the source gets inside the archive.
	Name string
}

// Extraction limits to prevent decompression bomb attacks.
const (
	maxArchiveFiles     = 100000   // Maximum number of entries
	maxArchiveFileSize  = 1 << 30  // 1GB per file
	maxArchiveTotalSize = 10 << 30 // 10GB total extracted size
)

// Create writes a tar.gz archive of the given sources to dest.
// On failure the partially written archive is removed.
func Create(dest string, sources []Source) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "creating archive directory")
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "creating archive file")
	}

	fail := func(err error) error {
		f.Close()
		os.Remove(dest)
		return err
	}

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	for _, src := range sources {
		if err := addSource(tw, src); err != nil {
			return fail(err)
		}
	}

	// Close in order; gzip.Close flushes compressed data, so a swallowed
	// error here would mean a truncated archive reported as success.
	if err := tw.Close(); err != nil {
		return fail(errors.Wrap(err, "finalizing tar stream"))
	}
	if err := gw.Close(); err != nil {
		return fail(errors.Wrap(err, "finalizing gzip stream"))
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return errors.Wrap(err, "closing archive file")
	}

	return nil
}

// addSource writes one source into the tar stream. Directories are walked
// recursively; every entry is named under src.Name.
func addSource(tw *tar.Writer, src Source) error {
	info, err := os.Lstat(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", src.Path)
	}

	if !info.IsDir() {
		return writeEntry(tw, src.Path, src.Name, info)
	}

	return filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src.Path, path)
		if err != nil {
			return err
		}

		name := src.Name
		if rel != "." {
			name = src.Name + "/" + filepath.ToSlash(rel)
		}

		info, err := d.Info()
		if err != nil {
			return errors.Wrapf(err, "stat %s", name)
		}

		return writeEntry(tw, path, name, info)
	})
}

func writeEntry(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		var err error
		link, err = os.Readlink(path)
		if err != nil {
			return errors.Wrapf(err, "reading symlink %s", name)
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return errors.Wrapf(err, "building tar header for %s", name)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return errors.Wrapf(err, "writing tar header for %s", name)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", name)
	}
	_, copyErr := io.Copy(tw, f)
	f.Close() // Close immediately, not deferred, to avoid accumulating file handles
	if copyErr != nil {
		return errors.Wrapf(copyErr, "copying %s", name)
	}

	return nil
}

// ExtractOptions configures archive extraction.
type ExtractOptions struct {
	// StripPrefix removes a leading path component from every entry
	// before placing it under the destination, e.g. "package/" for npm
	// pack tarballs. Entries outside the prefix are skipped.
	StripPrefix string
}

// Extract unpacks a tar.gz archive into destDir.
//
// Entry names are validated before any filesystem operation: entries that
// would land outside destDir, absolute symlink targets, and symlinks whose
// resolved target escapes destDir are all rejected.
func Extract(archivePath, destDir string, opts ExtractOptions) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "creating gzip reader")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	fileCount := 0
	var totalWritten int64

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading tar header")
		}

		fileCount++
		if fileCount > maxArchiveFiles {
			return errors.Newf("archive contains too many entries (limit: %d)", maxArchiveFiles)
		}

		name := header.Name
		if opts.StripPrefix != "" {
			if !strings.HasPrefix(name, opts.StripPrefix) {
				continue
			}
			name = strings.TrimPrefix(name, opts.StripPrefix)
			if name == "" {
				continue
			}
		}

		// targetPath is validated below before any filesystem operations
		targetPath := filepath.Join(destDir, name)

		// If the entry escapes destDir, its path relative to destDir
		// starts with "..".
		relToDest, err := filepath.Rel(destDir, targetPath)
		if err != nil || strings.HasPrefix(relToDest, "..") {
			return errors.Newf("invalid path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(header.Mode&0o777)); err != nil {
				return errors.Wrapf(err, "creating directory %s", name)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return errors.Wrapf(err, "creating parent directory for %s", name)
			}

			if totalWritten > maxArchiveTotalSize {
				return errors.Newf("archive exceeds maximum extracted size (limit: %d bytes)", int64(maxArchiveTotalSize))
			}

			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode&0o777))
			if err != nil {
				return errors.Wrapf(err, "creating file %s", name)
			}

			written, copyErr := io.Copy(out, io.LimitReader(tr, maxArchiveFileSize))
			totalWritten += written
			if copyErr != nil {
				out.Close()
				return errors.Wrapf(copyErr, "writing file %s", name)
			}
			if err := out.Close(); err != nil {
				return errors.Wrapf(err, "closing file %s", name)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return errors.Wrapf(err, "creating parent directory for %s", name)
			}

			// Absolute targets could point anywhere on the filesystem.
			if filepath.IsAbs(header.Linkname) {
				return errors.Newf("invalid symlink in archive: absolute target: %s -> %s", header.Name, header.Linkname)
			}

			// Resolve the target relative to the symlink's own directory;
			// "../sibling" is valid as long as it stays inside destDir.
			resolved := filepath.Clean(filepath.Join(filepath.Dir(targetPath), header.Linkname))
			relToDest, err := filepath.Rel(destDir, resolved)
			if err != nil || strings.HasPrefix(relToDest, "..") {
				return errors.Newf("invalid symlink in archive: target escapes destination: %s -> %s", header.Name, header.Linkname)
			}

			// Replace any existing file or symlink at the target path.
			os.Remove(targetPath)

			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return errors.Wrapf(err, "creating symlink %s", name)
			}
		default:
			// Skip unsupported entry types
			continue
		}
	}

	return nil
}
