package quarantine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDisplace(t *testing.T) {
	root := t.TempDir()
	stackDir := t.TempDir()

	// Two directories that exist, one path that doesn't
	pkgDir := filepath.Join(stackDir, "packages")
	cacheDir := filepath.Join(stackDir, "cache")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "wrapper.mjs"), []byte("import 'x'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root)
	batch, err := m.Displace([]string{pkgDir, cacheDir, filepath.Join(stackDir, "plugins")})
	if err != nil {
		t.Fatalf("Displace() error: %v", err)
	}
	if batch == nil {
		t.Fatal("Displace() returned nil batch")
	}

	if len(batch.Entries) != 2 {
		t.Fatalf("batch has %d entries, want 2", len(batch.Entries))
	}

	// Originals are gone
	if _, err := os.Stat(pkgDir); !os.IsNotExist(err) {
		t.Error("packages dir still exists at original path")
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Error("cache dir still exists at original path")
	}

	// Displaced content is intact inside the batch
	content, err := os.ReadFile(filepath.Join(batch.Dir, "packages", "wrapper.mjs"))
	if err != nil {
		t.Fatalf("failed to read displaced file: %v", err)
	}
	if string(content) != "import 'x'\n" {
		t.Errorf("displaced content = %q, want %q", string(content), "import 'x'\n")
	}

	// Sidecar records original paths
	got, err := m.Get(batch.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Entries[0].OriginalPath != pkgDir {
		t.Errorf("entry original path = %q, want %q", got.Entries[0].OriginalPath, pkgDir)
	}
}

func TestDisplace_NothingExists(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	batch, err := m.Displace([]string{filepath.Join(root, "a"), filepath.Join(root, "b")})
	if err != nil {
		t.Fatalf("Displace() error: %v", err)
	}
	if batch != nil {
		t.Fatalf("Displace() = %+v, want nil batch when nothing exists", batch)
	}

	// No batch directory may have been created
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("quarantine root has %d entries, want 0", len(entries))
	}
}

func TestDisplace_SameSecondBatchesDoNotCollide(t *testing.T) {
	root := t.TempDir()
	stackDir := t.TempDir()
	m := NewManager(root)

	makeDir := func(name string) string {
		dir := filepath.Join(stackDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		return dir
	}

	b1, err := m.Displace([]string{makeDir("packages")})
	if err != nil {
		t.Fatalf("first Displace() error: %v", err)
	}
	b2, err := m.Displace([]string{makeDir("packages")})
	if err != nil {
		t.Fatalf("second Displace() error: %v", err)
	}

	if b1.ID == b2.ID {
		t.Errorf("batch IDs collided: %s", b1.ID)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	stackDir := t.TempDir()
	m := NewManager(root)

	for _, name := range []string{"one", "two", "three"} {
		dir := filepath.Join(stackDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Displace([]string{dir}); err != nil {
			t.Fatalf("Displace() error: %v", err)
		}
	}

	batches, err := m.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("List() returned %d batches, want 3", len(batches))
	}

	for i := 1; i < len(batches); i++ {
		if batches[i].CreatedAt.After(batches[i-1].CreatedAt) {
			t.Errorf("List() not sorted newest first: %s before %s",
				batches[i-1].ID, batches[i].ID)
		}
	}
}

func TestList_Empty(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nothing"))
	if _, err := m.List(); !errors.Is(err, ErrNoBatchesFound) {
		t.Fatalf("List() error = %v, want ErrNoBatchesFound", err)
	}
}

func TestPrune(t *testing.T) {
	root := t.TempDir()
	stackDir := t.TempDir()
	m := NewManager(root)

	for _, name := range []string{"one", "two", "three"} {
		dir := filepath.Join(stackDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Displace([]string{dir}); err != nil {
			t.Fatalf("Displace() error: %v", err)
		}
	}

	if err := m.Prune(1); err != nil {
		t.Fatalf("Prune() error: %v", err)
	}

	batches, err := m.List()
	if err != nil {
		t.Fatalf("List() after prune error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("List() after prune returned %d batches, want 1", len(batches))
	}
}

func TestPrune_EmptyIsNoop(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nothing"))
	if err := m.Prune(3); err != nil {
		t.Fatalf("Prune() on empty quarantine error: %v", err)
	}
}
