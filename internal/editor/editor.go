// Package editor launches the user's preferred text editor on a file.
package editor

import (
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
)

// Open runs the user's editor on path, wired to the current terminal.
// The editor is chosen by detectEditor.
func Open(path string) error {
	cmd := exec.Command(detectEditor(), path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "running editor")
	}
	return nil
}

// detectEditor picks an editor command: $EDITOR, then $VISUAL, then nano
// if installed, then vi.
func detectEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}
	if _, err := exec.LookPath("nano"); err == nil {
		return "nano"
	}
	return "vi"
}
