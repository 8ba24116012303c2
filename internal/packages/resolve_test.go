package packages

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "restack/internal/errors"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveArchives(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "server-filesystem-0.5.1.tgz"))
	touch(t, filepath.Join(dir, "server-memory-0.5.1.tgz"))
	touch(t, filepath.Join(dir, "unrelated.txt"))

	specs := []Spec{
		{Name: "filesystem", Archive: "server-filesystem-*.tgz"},
		{Name: "memory", Archive: "server-memory-*.tgz"},
	}

	resolved, err := ResolveArchives(dir, specs)
	if err != nil {
		t.Fatalf("ResolveArchives() error: %v", err)
	}

	if len(resolved) != 2 {
		t.Fatalf("ResolveArchives() returned %d entries, want 2", len(resolved))
	}
	if got := filepath.Base(resolved[0].ArchivePath); got != "server-filesystem-0.5.1.tgz" {
		t.Errorf("resolved[0] = %q, want server-filesystem-0.5.1.tgz", got)
	}
	if got := filepath.Base(resolved[1].ArchivePath); got != "server-memory-0.5.1.tgz" {
		t.Errorf("resolved[1] = %q, want server-memory-0.5.1.tgz", got)
	}
}

func TestResolveArchives_NoMatch(t *testing.T) {
	dir := t.TempDir()

	_, err := ResolveArchives(dir, []Spec{{Name: "filesystem", Archive: "server-filesystem-*.tgz"}})
	if !errors.Is(err, apperrors.ErrArchiveNotFound) {
		t.Fatalf("ResolveArchives() error = %v, want ErrArchiveNotFound", err)
	}
}

func TestResolveArchives_Ambiguous(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "server-memory-0.5.0.tgz"))
	touch(t, filepath.Join(dir, "server-memory-0.5.1.tgz"))

	_, err := ResolveArchives(dir, []Spec{{Name: "memory", Archive: "server-memory-*.tgz"}})
	if !errors.Is(err, apperrors.ErrArchiveAmbiguous) {
		t.Fatalf("ResolveArchives() error = %v, want ErrArchiveAmbiguous", err)
	}

	// The error must name every candidate so the operator can fix the
	// packages directory.
	msg := err.Error()
	if !strings.Contains(msg, "server-memory-0.5.0.tgz") || !strings.Contains(msg, "server-memory-0.5.1.tgz") {
		t.Errorf("error %q does not list both matches", msg)
	}
}

func TestResolveArchives_DirectoryDoesNotCount(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "server-memory-0.5.1.tgz"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := ResolveArchives(dir, []Spec{{Name: "memory", Archive: "server-memory-*.tgz"}})
	if !errors.Is(err, apperrors.ErrArchiveNotFound) {
		t.Fatalf("ResolveArchives() error = %v, want ErrArchiveNotFound", err)
	}
}

func TestResolveArchives_DirectoryShadowingRealArchive(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "server-memory-0.5.0.tgz"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, "server-memory-0.5.1.tgz"))

	resolved, err := ResolveArchives(dir, []Spec{{Name: "memory", Archive: "server-memory-*.tgz"}})
	if err != nil {
		t.Fatalf("ResolveArchives() error: %v", err)
	}
	if got := filepath.Base(resolved[0].ArchivePath); got != "server-memory-0.5.1.tgz" {
		t.Errorf("resolved = %q, want the regular file", got)
	}
}
