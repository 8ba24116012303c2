package packages

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"restack/internal/archive"
	apperrors "restack/internal/errors"
)

// buildTarball assembles an npm-pack-shaped tarball (everything under a
// top-level package/ directory) from the given files.
func buildTarball(t *testing.T, dest string, files map[string]string) {
	t.Helper()

	srcDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(srcDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := archive.Create(dest, []archive.Source{{Path: srcDir, Name: "package"}}); err != nil {
		t.Fatalf("failed to build tarball: %v", err)
	}
}

func TestInstall(t *testing.T) {
	archivesDir := t.TempDir()
	packagesDir := t.TempDir()

	tarball := filepath.Join(archivesDir, "server-memory-0.5.1.tgz")
	buildTarball(t, tarball, map[string]string{
		"package.json":  `{"name":"@modelcontextprotocol/server-memory","version":"0.5.1","bin":{"mcp-server-memory":"dist/index.js"}}`,
		"dist/index.js": "console.log('server')\n",
	})

	inst := NewInstaller(packagesDir)
	installed, err := inst.Install(Resolved{
		Spec:        Spec{Name: "memory", Archive: "server-memory-*.tgz"},
		ArchivePath: tarball,
	})
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if installed.Version != "0.5.1" {
		t.Errorf("Version = %q, want %q", installed.Version, "0.5.1")
	}
	if installed.EntryPoint != "dist/index.js" {
		t.Errorf("EntryPoint = %q, want %q", installed.EntryPoint, "dist/index.js")
	}

	// The tarball's package/ prefix must be stripped
	if _, err := os.Stat(filepath.Join(packagesDir, "memory", "package.json")); err != nil {
		t.Errorf("package.json not extracted at package root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(packagesDir, "memory", "package")); !os.IsNotExist(err) {
		t.Error("package/ prefix was not stripped")
	}

	// Wrapper script points at the entry through the package dir
	content, err := os.ReadFile(installed.WrapperPath)
	if err != nil {
		t.Fatalf("failed to read wrapper: %v", err)
	}
	if !strings.Contains(string(content), `"memory/dist/index.js"`) {
		t.Errorf("wrapper does not reference entry point:\n%s", content)
	}
	if !strings.Contains(string(content), "import.meta.url") {
		t.Error("wrapper does not resolve its own location at runtime")
	}

	info, err := os.Stat(installed.WrapperPath)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(installed.WrapperPath) != "memory.mjs" {
		t.Errorf("wrapper = %q, want memory.mjs", filepath.Base(installed.WrapperPath))
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("wrapper should be executable, got mode %o", info.Mode().Perm())
	}
}

func TestInstall_Repeatable(t *testing.T) {
	archivesDir := t.TempDir()
	packagesDir := t.TempDir()

	tarball := filepath.Join(archivesDir, "server-memory-0.5.1.tgz")
	buildTarball(t, tarball, map[string]string{
		"package.json":  `{"name":"server-memory","version":"0.5.1","main":"index.js"}`,
		"index.js":      "x\n",
		"lib/helper.js": "y\n",
	})

	inst := NewInstaller(packagesDir)
	r := Resolved{Spec: Spec{Name: "memory", Archive: "server-memory-*.tgz"}, ArchivePath: tarball}

	for range 2 {
		if _, err := inst.Install(r); err != nil {
			t.Fatalf("Install() error: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(packagesDir, "memory", "lib", "helper.js")); err != nil {
		t.Errorf("helper.js missing after repeat install: %v", err)
	}
}

func TestInstall_EntryPointMissingFromArchive(t *testing.T) {
	archivesDir := t.TempDir()
	packagesDir := t.TempDir()

	tarball := filepath.Join(archivesDir, "broken-1.0.0.tgz")
	buildTarball(t, tarball, map[string]string{
		"package.json": `{"name":"broken","version":"1.0.0","main":"dist/index.js"}`,
	})

	inst := NewInstaller(packagesDir)
	_, err := inst.Install(Resolved{
		Spec:        Spec{Name: "broken", Archive: "broken-*.tgz"},
		ArchivePath: tarball,
	})
	if !errors.Is(err, apperrors.ErrNoEntryPoint) {
		t.Fatalf("Install() error = %v, want ErrNoEntryPoint", err)
	}
}

func TestInstall_NoManifest(t *testing.T) {
	archivesDir := t.TempDir()
	packagesDir := t.TempDir()

	tarball := filepath.Join(archivesDir, "empty-1.0.0.tgz")
	buildTarball(t, tarball, map[string]string{
		"readme.md": "nothing here\n",
	})

	inst := NewInstaller(packagesDir)
	_, err := inst.Install(Resolved{
		Spec:        Spec{Name: "empty", Archive: "empty-*.tgz"},
		ArchivePath: tarball,
	})
	if err == nil {
		t.Fatal("Install() without package.json should fail")
	}
}
