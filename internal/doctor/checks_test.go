package doctor

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"restack/internal/packages"
)

func TestParseRuntimeMajor(t *testing.T) {
	tests := []struct {
		version string
		want    int
		ok      bool
	}{
		{"v20.11.0", 20, true},
		{"v18.0.0", 18, true},
		{"22.1.0", 22, true},
		{"  v19.2.1\n", 19, true},
		{"nonsense", 0, false},
		{"", 0, false},
		{"v0.10.0", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseRuntimeMajor(tt.version)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRuntimeMajor(%q) = (%d, %v), want (%d, %v)",
				tt.version, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPlatformCheck(t *testing.T) {
	result := NewPlatformCheck().Run()

	// Tests only run on supported hosts, so the check must pass here.
	if result.Status != SeverityPass {
		t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
	}
	if result.Details["os"] != runtime.GOOS {
		t.Errorf("Details[os] = %v, want %s", result.Details["os"], runtime.GOOS)
	}
}

func TestRuntimeCheck_MissingBinary(t *testing.T) {
	result := NewRuntimeCheck("definitely-not-a-runtime-12345").Run()

	if result.Status != SeverityError {
		t.Errorf("Status = %v, want error", result.Status)
	}
	if result.FixHint == "" {
		t.Error("expected a fix hint for a missing runtime")
	}
}

func TestPackagesCheck(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"server-filesystem-1.2.3.tgz", "server-memory-0.9.0.tgz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("all resolve", func(t *testing.T) {
		result := NewPackagesCheck(dir, packages.Defaults()).Run()
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
	})

	t.Run("missing archive", func(t *testing.T) {
		specs := append(packages.Defaults(), packages.Spec{
			Name: "github", Archive: "server-github-*.tgz",
		})
		result := NewPackagesCheck(dir, specs).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
		failures, ok := result.Details["failures"].([]map[string]any)
		if !ok || len(failures) != 1 {
			t.Fatalf("failures = %v, want one entry", result.Details["failures"])
		}
		if failures[0]["package"] != "github" {
			t.Errorf("failing package = %v, want github", failures[0]["package"])
		}
	})

	t.Run("ambiguous archive", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "server-filesystem-2.0.0.tgz"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		result := NewPackagesCheck(dir, packages.Defaults()).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error for ambiguous pattern", result.Status)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		result := NewPackagesCheck(filepath.Join(dir, "nope"), packages.Defaults()).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
	})
}

func TestManifestCheck(t *testing.T) {
	t.Run("no manifest configured", func(t *testing.T) {
		result := NewManifestCheck("").Run()
		if result.Status != SeverityInfo {
			t.Errorf("Status = %v, want info", result.Status)
		}
	})

	t.Run("valid manifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stack.toml")
		manifest := `[[packages]]
name = "filesystem"
archive = "server-filesystem-*.tgz"
`
		if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}

		result := NewManifestCheck(path).Run()
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
	})

	t.Run("broken manifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stack.toml")
		if err := os.WriteFile(path, []byte("[[packages\n"), 0644); err != nil {
			t.Fatal(err)
		}

		result := NewManifestCheck(path).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
	})
}

func TestDesktopConfigCheck(t *testing.T) {
	t.Run("missing file is info", func(t *testing.T) {
		result := NewDesktopConfigCheck(filepath.Join(t.TempDir(), "claude_desktop_config.json")).Run()
		if result.Status != SeverityInfo {
			t.Errorf("Status = %v, want info", result.Status)
		}
	})

	t.Run("valid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
		content := `{"mcpServers": {"filesystem": {"command": "node", "args": []}}}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		result := NewDesktopConfigCheck(path).Run()
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
		if result.Details["servers"] != 1 {
			t.Errorf("servers = %v, want 1", result.Details["servers"])
		}
	})

	t.Run("unparsable config is warning", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		result := NewDesktopConfigCheck(path).Run()
		if result.Status != SeverityWarning {
			t.Errorf("Status = %v, want warning", result.Status)
		}
	})
}

func TestStackRootCheck(t *testing.T) {
	t.Run("absent root passes", func(t *testing.T) {
		result := NewStackRootCheck(filepath.Join(t.TempDir(), "stack")).Run()
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
	})

	t.Run("writable directory passes", func(t *testing.T) {
		result := NewStackRootCheck(t.TempDir()).Run()
		if result.Status != SeverityPass {
			t.Errorf("Status = %v, want pass: %s", result.Status, result.Message)
		}
	})

	t.Run("file in place of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stack")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		result := NewStackRootCheck(path).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
	})

	t.Run("unwritable directory", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits behave differently on windows")
		}
		if os.Geteuid() == 0 {
			t.Skip("root ignores permission bits")
		}

		path := filepath.Join(t.TempDir(), "stack")
		if err := os.Mkdir(path, 0555); err != nil {
			t.Fatal(err)
		}

		result := NewStackRootCheck(path).Run()
		if result.Status != SeverityError {
			t.Errorf("Status = %v, want error", result.Status)
		}
	})
}
