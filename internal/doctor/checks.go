package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"restack/internal/desktop"
	"restack/internal/errors"
	"restack/internal/packages"
)

// minRuntimeMajor mirrors the floor the rebuild enforces; doctor flags the
// same runtimes preflight would reject.
const minRuntimeMajor = 18

// PlatformCheck verifies the host operating system is one the rebuilt
// stack can run on.
type PlatformCheck struct{}

var _ Check = (*PlatformCheck)(nil)

// NewPlatformCheck creates a host platform check.
func NewPlatformCheck() *PlatformCheck {
	return &PlatformCheck{}
}

// Name returns the unique identifier for this check.
func (c *PlatformCheck) Name() string {
	return "platform"
}

// Category returns the grouping for this check.
func (c *PlatformCheck) Category() string {
	return "platform"
}

// Run executes the platform check.
func (c *PlatformCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details: map[string]any{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
		},
	}

	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		result.Status = SeverityPass
		result.Message = fmt.Sprintf("%s/%s is supported", runtime.GOOS, runtime.GOARCH)
	default:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s/%s is not a supported platform", runtime.GOOS, runtime.GOARCH)
		result.FixHint = "rebuilds are supported on macOS, Linux, and Windows"
	}

	return result
}

// RuntimeCheck verifies the node interpreter exists and is new enough.
type RuntimeCheck struct {
	bin string
}

var _ Check = (*RuntimeCheck)(nil)

// NewRuntimeCheck creates a runtime check for the given interpreter name.
func NewRuntimeCheck(bin string) *RuntimeCheck {
	if bin == "" {
		bin = "node"
	}
	return &RuntimeCheck{bin: bin}
}

// Name returns the unique identifier for this check.
func (c *RuntimeCheck) Name() string {
	return "runtime"
}

// Category returns the grouping for this check.
func (c *RuntimeCheck) Category() string {
	return "runtime"
}

// Run executes the runtime diagnostic check.
func (c *RuntimeCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"bin": c.bin},
	}

	path, err := exec.LookPath(c.bin)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s not found on PATH", c.bin)
		result.FixHint = fmt.Sprintf("install Node.js %d+ or set node_bin to its location", minRuntimeMajor)
		return result
	}
	result.Details["path"] = path

	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s --version failed: %v", path, err)
		return result
	}
	version := strings.TrimSpace(string(out))
	result.Details["version"] = version

	major, ok := parseRuntimeMajor(version)
	if !ok {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("%s reports unparsable version %q", path, version)
		result.FixHint = "custom runtime builds are tolerated; validation will catch a broken one"
		return result
	}
	if major < minRuntimeMajor {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s %s is too old: need %d or newer", path, version, minRuntimeMajor)
		result.FixHint = "upgrade Node.js or point node_bin at a newer install"
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%s %s", path, version)
	return result
}

// parseRuntimeMajor extracts the major version from output like "v20.11.0".
func parseRuntimeMajor(version string) (int, bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major <= 0 {
		return 0, false
	}
	return major, true
}

// PackagesCheck verifies every declared package resolves to exactly one
// archive in the packages directory.
type PackagesCheck struct {
	dir   string
	specs []packages.Spec
}

var _ Check = (*PackagesCheck)(nil)

// NewPackagesCheck creates an archive resolution check.
func NewPackagesCheck(dir string, specs []packages.Spec) *PackagesCheck {
	return &PackagesCheck{dir: dir, specs: specs}
}

// Name returns the unique identifier for this check.
func (c *PackagesCheck) Name() string {
	return "archives"
}

// Category returns the grouping for this check.
func (c *PackagesCheck) Category() string {
	return "packages"
}

// Run executes the archive resolution check. Each spec is resolved
// independently so one bad pattern doesn't hide the rest.
func (c *PackagesCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"dir": c.dir},
	}

	info, err := os.Stat(c.dir)
	if err != nil {
		result.Status = SeverityError
		if os.IsNotExist(err) {
			result.Message = fmt.Sprintf("packages directory %s does not exist", c.dir)
			result.FixHint = "create it and place the offline archives inside, or set packages_dir"
		} else {
			result.Message = fmt.Sprintf("cannot stat packages directory: %v", err)
		}
		return result
	}
	if !info.IsDir() {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s is not a directory", c.dir)
		return result
	}

	var failures []map[string]any
	for _, spec := range c.specs {
		if _, err := packages.ResolveArchives(c.dir, []packages.Spec{spec}); err != nil {
			failures = append(failures, map[string]any{
				"package": spec.Name,
				"pattern": spec.Archive,
				"problem": err.Error(),
			})
		}
	}

	result.Details["declared"] = len(c.specs)
	if len(failures) > 0 {
		result.Details["failures"] = failures
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d of %d packages do not resolve to exactly one archive",
			len(failures), len(c.specs))
		result.FixHint = "each archive pattern must match exactly one file in " + c.dir
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("all %d package archives resolve", len(c.specs))
	return result
}

// ManifestCheck verifies the package manifest parses, or reports that the
// built-in package set is in effect.
type ManifestCheck struct {
	path string
}

var _ Check = (*ManifestCheck)(nil)

// NewManifestCheck creates a manifest check. An empty path means no
// manifest is configured.
func NewManifestCheck(path string) *ManifestCheck {
	return &ManifestCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *ManifestCheck) Name() string {
	return "manifest"
}

// Category returns the grouping for this check.
func (c *ManifestCheck) Category() string {
	return "packages"
}

// Run executes the manifest check.
func (c *ManifestCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	if c.path == "" {
		result.Status = SeverityInfo
		result.Message = fmt.Sprintf("no manifest configured, using the built-in package set (%d packages)",
			len(packages.Defaults()))
		return result
	}

	specs, err := packages.LoadFile(c.path)
	if err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		result.FixHint = "fix the manifest or unset it to use the built-in package set"
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%s declares %d packages", c.path, len(specs))
	result.Details = map[string]any{"path": c.path, "packages": len(specs)}
	return result
}

// DesktopConfigCheck verifies the desktop configuration file is absent,
// or present and parseable.
type DesktopConfigCheck struct {
	path string
}

var _ Check = (*DesktopConfigCheck)(nil)

// NewDesktopConfigCheck creates a desktop config check.
func NewDesktopConfigCheck(path string) *DesktopConfigCheck {
	return &DesktopConfigCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *DesktopConfigCheck) Name() string {
	return "desktop-config"
}

// Category returns the grouping for this check.
func (c *DesktopConfigCheck) Category() string {
	return "config"
}

// Run executes the desktop config check. An unreadable file is a warning,
// not an error: a rebuild backs the original up and starts from empty.
func (c *DesktopConfigCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"path": c.path},
	}

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		result.Status = SeverityInfo
		result.Message = fmt.Sprintf("%s does not exist; a rebuild will create it", c.path)
		return result
	}

	cfg, err := desktop.NewStore(c.path).Load()
	if err != nil {
		if errors.Is(err, desktop.ErrConfigUnreadable) {
			result.Status = SeverityWarning
			result.Message = fmt.Sprintf("%s exists but does not parse", c.path)
			result.FixHint = "a rebuild backs the file up and rewrites it; unrelated keys in the broken file will be lost"
			return result
		}
		result.Status = SeverityError
		result.Message = err.Error()
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%s parses (%d servers)", c.path, len(cfg.Servers))
	result.Details["servers"] = len(cfg.Servers)
	return result
}

// StackRootCheck verifies the stack root is usable: absent (it will be
// created) or an existing writable directory.
type StackRootCheck struct {
	root string
}

var _ Check = (*StackRootCheck)(nil)

// NewStackRootCheck creates a stack root check.
func NewStackRootCheck(root string) *StackRootCheck {
	return &StackRootCheck{root: root}
}

// Name returns the unique identifier for this check.
func (c *StackRootCheck) Name() string {
	return "stack-root"
}

// Category returns the grouping for this check.
func (c *StackRootCheck) Category() string {
	return "filesystem"
}

// Run executes the stack root check.
func (c *StackRootCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"root": c.root},
	}

	info, err := os.Stat(c.root)
	if os.IsNotExist(err) {
		result.Status = SeverityPass
		result.Message = fmt.Sprintf("%s does not exist; a rebuild will create it", c.root)
		return result
	}
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot stat stack root: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s exists but is not a directory", c.root)
		result.FixHint = "move the file aside or set stack_root elsewhere"
		return result
	}

	// Writability test: create and remove a probe file.
	tmp, err := os.CreateTemp(c.root, ".restack-doctor-*")
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s is not writable: %v", c.root, err)
		result.FixHint = "chmod u+w " + c.root
		return result
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%s exists and is writable", c.root)
	return result
}
