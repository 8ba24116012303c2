package npm

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "restack/internal/errors"
)

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
		wantErr  bool
	}{
		{
			name:     "bin string",
			manifest: `{"name":"a","bin":"./cli.js"}`,
			want:     "cli.js",
		},
		{
			name:     "bin map short name match on scoped package",
			manifest: `{"name":"@modelcontextprotocol/server-memory","bin":{"other":"./x.js","server-memory":"./dist/index.js"}}`,
			want:     "dist/index.js",
		},
		{
			name:     "bin map short name match on unscoped package",
			manifest: `{"name":"server-memory","bin":{"server-memory":"dist/index.js"}}`,
			want:     "dist/index.js",
		},
		{
			name:     "bin map single command without name match",
			manifest: `{"name":"a","bin":{"mcp-server-filesystem":"./dist/index.js"}}`,
			want:     "dist/index.js",
		},
		{
			name:     "bin map multiple commands picks smallest key",
			manifest: `{"name":"a","bin":{"zeta":"./z.js","alpha":"./a.js"}}`,
			want:     "a.js",
		},
		{
			name:     "bin wins over main",
			manifest: `{"name":"a","bin":"./cli.js","main":"./index.js"}`,
			want:     "cli.js",
		},
		{
			name:     "main fallback",
			manifest: `{"name":"a","main":"./index.js"}`,
			want:     "index.js",
		},
		{
			name:     "main wins over exports",
			manifest: `{"name":"a","main":"./index.js","exports":"./other.js"}`,
			want:     "index.js",
		},
		{
			name:     "exports bare string",
			manifest: `{"name":"a","exports":"./index.js"}`,
			want:     "index.js",
		},
		{
			name:     "exports dot subpath string",
			manifest: `{"name":"a","exports":{".":"./index.js"}}`,
			want:     "index.js",
		},
		{
			name:     "exports dot subpath conditions object",
			manifest: `{"name":"a","exports":{".":{"import":"./esm.js","default":"./index.js"}}}`,
			want:     "index.js",
		},
		{
			name:     "exports top-level conditions sugar",
			manifest: `{"name":"a","exports":{"default":"./index.js"}}`,
			want:     "index.js",
		},
		{
			name:     "exports without default",
			manifest: `{"name":"a","exports":{".":{"types":"./index.d.ts"}}}`,
			wantErr:  true,
		},
		{
			name:     "no entry point at all",
			manifest: `{"name":"a","version":"1.0.0"}`,
			wantErr:  true,
		},
		{
			name:     "empty bin map falls through to main",
			manifest: `{"name":"a","bin":{},"main":"index.js"}`,
			want:     "index.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Manifest
			if err := json.Unmarshal([]byte(tt.manifest), &m); err != nil {
				t.Fatalf("failed to parse manifest: %v", err)
			}

			got, err := m.EntryPoint()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EntryPoint() = %q, want error", got)
				}
				if !errors.Is(err, apperrors.ErrNoEntryPoint) {
					t.Errorf("EntryPoint() error = %v, want ErrNoEntryPoint", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EntryPoint() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EntryPoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	manifest := `{
  "name": "@modelcontextprotocol/server-filesystem",
  "version": "0.5.1",
  "bin": {
    "mcp-server-filesystem": "dist/index.js"
  }
}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if m.Name != "@modelcontextprotocol/server-filesystem" {
		t.Errorf("Name = %q, want %q", m.Name, "@modelcontextprotocol/server-filesystem")
	}
	if m.Version != "0.5.1" {
		t.Errorf("Version = %q, want %q", m.Version, "0.5.1")
	}

	entry, err := m.EntryPoint()
	if err != nil {
		t.Fatalf("EntryPoint() error: %v", err)
	}
	if entry != "dist/index.js" {
		t.Errorf("EntryPoint() = %q, want %q", entry, "dist/index.js")
	}
}

func TestLoad_MissingManifest(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() without package.json should fail")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() with invalid JSON should fail")
	}
}
