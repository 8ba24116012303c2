package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"restack/internal/archive"
)

func writeTree(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBackup_RecordsToolVersion(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir)
	sources := []archive.Source{{Path: srcDir, Name: "packages"}}

	m := NewManager(WithBackupDir(t.TempDir()), WithToolVersion("1.4.0"))
	manifest, err := m.Backup(sources)
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	if manifest.ToolVersion != "1.4.0" {
		t.Errorf("ToolVersion = %q, want %q", manifest.ToolVersion, "1.4.0")
	}

	// Without the option the manifest still records something.
	m = NewManager(WithBackupDir(t.TempDir()))
	manifest, err = m.Backup(sources)
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	if manifest.ToolVersion != "dev" {
		t.Errorf("ToolVersion = %q, want %q", manifest.ToolVersion, "dev")
	}
}

func TestBackupAndGet(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))

	manifest, err := m.Backup([]archive.Source{{Path: srcDir, Name: "packages"}})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	if manifest.Version != ManifestVersion {
		t.Errorf("Version = %d, want %d", manifest.Version, ManifestVersion)
	}
	if manifest.Kind != "backup" {
		t.Errorf("Kind = %q, want %q", manifest.Kind, "backup")
	}
	if manifest.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want non-zero")
	}
	if len(manifest.SHA256) != 64 {
		t.Errorf("SHA256 length = %d, want 64", len(manifest.SHA256))
	}
	if len(manifest.Sources) != 1 || manifest.Sources[0] != srcDir {
		t.Errorf("Sources = %v, want [%s]", manifest.Sources, srcDir)
	}

	// Archive file must exist on disk
	if _, err := os.Stat(m.ArchivePath(manifest.ID)); err != nil {
		t.Errorf("archive missing: %v", err)
	}

	// Get round-trips the manifest
	got, err := m.Get(manifest.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SHA256 != manifest.SHA256 {
		t.Errorf("Get() SHA256 = %q, want %q", got.SHA256, manifest.SHA256)
	}
	if got.ID != manifest.ID {
		t.Errorf("Get() ID = %q, want %q", got.ID, manifest.ID)
	}
}

func TestBackup_Collision(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))
	sources := []archive.Source{{Path: srcDir, Name: "packages"}}

	// Two backups in (very likely) the same second must not collide.
	manifest1, err := m.Backup(sources)
	if err != nil {
		t.Fatalf("first backup failed: %v", err)
	}
	manifest2, err := m.Backup(sources)
	if err != nil {
		t.Fatalf("second backup failed: %v", err)
	}

	if manifest1.ID == manifest2.ID {
		t.Errorf("backup IDs collided: %s", manifest1.ID)
	}
}

func TestBackup_NoSources(t *testing.T) {
	m := NewManager(WithBackupDir(t.TempDir()))
	if _, err := m.Backup(nil); err == nil {
		t.Fatal("Backup() with no sources should fail")
	}
}

func TestBackup_MissingSourcesStillSucceeds(t *testing.T) {
	backupDir := t.TempDir()
	m := NewManager(WithBackupDir(backupDir))

	// First run: nothing exists yet, backup must still produce an archive
	manifest, err := m.Backup([]archive.Source{
		{Path: filepath.Join(backupDir, "not-there"), Name: "packages"},
	})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	if manifest.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want non-zero")
	}
}

func TestList(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))
	sources := []archive.Source{{Path: srcDir, Name: "packages"}}

	for range 3 {
		if _, err := m.Backup(sources); err != nil {
			t.Fatalf("Backup() error: %v", err)
		}
	}

	manifests, err := m.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(manifests) != 3 {
		t.Fatalf("List() returned %d manifests, want 3", len(manifests))
	}

	// Newest first
	for i := 1; i < len(manifests); i++ {
		if manifests[i].CreatedAt.After(manifests[i-1].CreatedAt) {
			t.Errorf("List() not sorted newest first: %s before %s",
				manifests[i-1].ID, manifests[i].ID)
		}
	}
}

func TestList_Empty(t *testing.T) {
	m := NewManager(WithBackupDir(filepath.Join(t.TempDir(), "nothing")))
	if _, err := m.List(); err != ErrNoBackupsFound {
		t.Fatalf("List() error = %v, want ErrNoBackupsFound", err)
	}
}

func TestPrune(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))
	sources := []archive.Source{{Path: srcDir, Name: "packages"}}

	for range 3 {
		if _, err := m.Backup(sources); err != nil {
			t.Fatalf("Backup() error: %v", err)
		}
	}

	if err := m.Prune(1); err != nil {
		t.Fatalf("Prune() error: %v", err)
	}

	manifests, err := m.List()
	if err != nil {
		t.Fatalf("List() after prune error: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("List() after prune returned %d manifests, want 1", len(manifests))
	}

	// The remaining archive file must still exist; nothing else may
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 { // one .tar.gz + one .json
		t.Errorf("backup dir has %d entries after prune, want 2", len(entries))
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))
	manifest, err := m.Backup([]archive.Source{{Path: srcDir, Name: "packages"}})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	if err := m.Verify(manifest.ID); err != nil {
		t.Fatalf("Verify() on intact archive error: %v", err)
	}

	// Truncate the archive to corrupt it
	if err := os.WriteFile(m.ArchivePath(manifest.ID), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = m.Verify(manifest.ID)
	if err == nil {
		t.Fatal("Verify() on corrupted archive should fail")
	}
	if !errors.Is(err, ErrBackupCorrupted) {
		t.Errorf("Verify() error = %v, want ErrBackupCorrupted", err)
	}
}

func TestRestore(t *testing.T) {
	backupDir := t.TempDir()
	srcDir := t.TempDir()
	writeTree(t, srcDir)

	m := NewManager(WithBackupDir(backupDir))
	manifest, err := m.Backup([]archive.Source{{Path: srcDir, Name: "packages"}})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	destDir := t.TempDir()
	if err := m.Restore(manifest.ID, destDir); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(destDir, "packages", "sub", "b.txt"))
	if err != nil {
		t.Fatalf("failed to read restored file: %v", err)
	}
	if string(content) != "beta\n" {
		t.Errorf("restored content = %q, want %q", string(content), "beta\n")
	}
}

func TestGet_NotFound(t *testing.T) {
	m := NewManager(WithBackupDir(t.TempDir()))
	if _, err := m.Get("20990101T000000"); !errors.Is(err, ErrNoBackupsFound) {
		t.Fatalf("Get() error = %v, want ErrNoBackupsFound", err)
	}
}
