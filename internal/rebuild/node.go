package rebuild

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"restack/internal/errors"
)

// minNodeMajor is the oldest node release the wrapper scripts support;
// older runtimes predate stable ESM loading of the servers' entry points.
const minNodeMajor = 18

// supportedPlatforms lists the operating systems the desktop app ships on,
// plus linux for headless stacks.
var supportedPlatforms = map[string]bool{
	"darwin":  true,
	"linux":   true,
	"windows": true,
}

// checkPlatform rejects hosts the rebuilt stack could not run on.
func checkPlatform() error {
	if !supportedPlatforms[runtime.GOOS] {
		return errors.Wrapf(errors.ErrUnsupportedPlatform, "%s/%s", runtime.GOOS, runtime.GOARCH)
	}
	return nil
}

// resolveNode locates the runtime interpreter, pins it to an absolute path
// and rejects versions below the supported floor. Unparsable version
// output is tolerated: custom builds report odd strings, and a probe will
// catch a genuinely broken runtime later.
func resolveNode(ctx context.Context, bin string, log *slog.Logger) (path, version string, err error) {
	if bin == "" {
		bin = "node"
	}
	path, err = exec.LookPath(bin)
	if err != nil {
		return "", "", errors.Wrapf(errors.ErrRuntimeNotFound, "%s: %v", bin, err)
	}
	if !filepath.IsAbs(path) {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return "", "", errors.Wrapf(absErr, "resolving %s", path)
		}
		path = abs
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", "", errors.Wrapf(errors.ErrRuntimeNotFound, "running %s --version: %v", path, err)
	}
	version = strings.TrimSpace(string(out))

	major, ok := parseNodeMajor(version)
	if !ok {
		log.Warn("could not parse node version, skipping floor check",
			"node", path,
			"output", version)
		return path, version, nil
	}
	if major < minNodeMajor {
		return "", "", errors.Newf("node %s at %s is too old: need %d or newer", version, path, minNodeMajor)
	}
	return path, version, nil
}

// parseNodeMajor extracts the major version from output like "v20.11.0".
func parseNodeMajor(version string) (int, bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major <= 0 {
		return 0, false
	}
	return major, true
}
