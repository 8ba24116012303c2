package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName is the application name used for config and data directories.
const AppName = "restack"

// Stack subdirectory names. Every run recreates all of them; the artifact
// directories (quarantine, backups, snapshots, logs) are append-only and are
// never displaced.
const (
	DirWorkspace  = "workspace"
	DirRepos      = "repos"
	DirPackages   = "packages"
	DirCache      = "cache"
	DirPlugins    = "plugins"
	DirQuarantine = "quarantine"
	DirBackups    = "backups"
	DirSnapshots  = "snapshots"
	DirLogs       = "logs"
)

// Sentinel errors for path resolution.
var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the default permission for newly created directories.
const DefaultDirPerm = 0o755

// Stack describes the fixed directory layout under a single stack root.
type Stack struct {
	Root string
}

// NewStack returns a Stack rooted at the given directory.
// The root is cleaned but not created; call Ensure for that.
func NewStack(root string) Stack {
	return Stack{Root: filepath.Clean(root)}
}

// Workspace returns the scratch workspace directory.
func (s Stack) Workspace() string { return filepath.Join(s.Root, DirWorkspace) }

// Repos returns the repository checkout directory.
func (s Stack) Repos() string { return filepath.Join(s.Root, DirRepos) }

// Packages returns the package install prefix.
func (s Stack) Packages() string { return filepath.Join(s.Root, DirPackages) }

// Cache returns the isolated package cache directory.
func (s Stack) Cache() string { return filepath.Join(s.Root, DirCache) }

// Plugins returns the desktop plugin directory.
func (s Stack) Plugins() string { return filepath.Join(s.Root, DirPlugins) }

// QuarantineDir returns the root holding timestamped quarantine batches.
func (s Stack) QuarantineDir() string { return filepath.Join(s.Root, DirQuarantine) }

// BackupsDir returns the pre-run backup archive directory.
func (s Stack) BackupsDir() string { return filepath.Join(s.Root, DirBackups) }

// SnapshotsDir returns the post-run snapshot archive directory.
func (s Stack) SnapshotsDir() string { return filepath.Join(s.Root, DirSnapshots) }

// LogsDir returns the run log directory.
func (s Stack) LogsDir() string { return filepath.Join(s.Root, DirLogs) }

// Subdirs returns every directory of the fixed layout, in creation order.
func (s Stack) Subdirs() []string {
	return []string{
		s.Workspace(),
		s.Repos(),
		s.Packages(),
		s.Cache(),
		s.Plugins(),
		s.QuarantineDir(),
		s.BackupsDir(),
		s.SnapshotsDir(),
		s.LogsDir(),
	}
}

// Displaceable returns the directories a rebuild moves into quarantine:
// everything the installer owns outright. Workspace and repos hold user
// work, and the artifact directories are append-only, so none of those are
// ever displaced.
func (s Stack) Displaceable() []string {
	return []string{
		s.Packages(),
		s.Cache(),
		s.Plugins(),
	}
}

// Ensure creates the root and every subdirectory with create-if-missing
// semantics. It always attempts creation for every directory; pre-existing
// directories are not an error and take the same code path.
func (s Stack) Ensure() error {
	if err := os.MkdirAll(s.Root, DefaultDirPerm); err != nil {
		return errors.Wrapf(err, "creating stack root %s", s.Root)
	}
	for _, dir := range s.Subdirs() {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	return nil
}

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm is used.
// This function is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ResolveHome returns the user's home directory.
// Returns ErrHomeDirNotFound if the directory cannot be determined.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(ErrHomeDirNotFound, err.Error())
	}
	return home, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
// Paths into another user's home ("~name/...") are not supported and
// return ErrInvalidPath. Paths without the prefix pass through untouched.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return "", errors.Wrapf(ErrInvalidPath, "cannot expand %q", path)
	}
	home, err := ResolveHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
// On Linux: ~/.local/share
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func DataHome() string {
	return xdg.DataHome
}

// ConfigDir returns the tool's own configuration directory.
// Returns: <ConfigHome>/restack/
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// DefaultStackRoot returns the stack root used when none is configured.
// Returns: <DataHome>/restack/stack/
func DefaultStackRoot() string {
	return filepath.Join(DataHome(), AppName, "stack")
}

// DefaultPackagesDir returns the offline archive directory used when none
// is configured: ./packages relative to the working directory.
func DefaultPackagesDir() string {
	return "packages"
}

// DesktopConfigPath returns the Claude Desktop configuration file path.
// The desktop app keeps its config under the platform config home:
//   - Linux: ~/.config/Claude/claude_desktop_config.json
//   - macOS: ~/Library/Application Support/Claude/claude_desktop_config.json
//   - Windows: %LOCALAPPDATA%\Claude\claude_desktop_config.json
func DesktopConfigPath() string {
	return filepath.Join(ConfigHome(), "Claude", "claude_desktop_config.json")
}
