/*
Package handoff rewires the standard-input slot and replaces the process
image.

The slot number, not the descriptor value, is what survives exec, so the
backing store's reader is duplicated onto the slot rather than passed
around by number.
*/
package handoff

import (
	"errors"
	"fmt"
	"os/exec"
)

// StdinSlot is the descriptor the replaced program reads its input from.
const StdinSlot = 0

// ErrUnsupported is returned on platforms without dup2/execve.
var ErrUnsupported = errors.New("handoff: not supported on this platform")

// ErrNoCommand is returned by Replace when argv is empty.
var ErrNoCommand = errors.New("handoff: no command given")

// LookPath resolves name the way execvp does: names containing a slash are
// used as given, everything else is searched for in PATH. A match relative
// to the working directory (PATH contains "." or an empty element) is
// accepted.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if errors.Is(err, exec.ErrDot) {
		return path, nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// ExecError reports a failed process replacement.
type ExecError struct {
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
