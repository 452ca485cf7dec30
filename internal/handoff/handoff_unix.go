//go:build unix

package handoff

import (
	"os"

	"golang.org/x/sys/unix"
)

// Overlay makes slot refer to the same open file as fd. The descriptor on
// slot loses its close-on-exec flag, so it is inherited by Replace. When fd
// already is slot nothing happens.
func Overlay(fd, slot int) error {
	if fd == slot {
		return nil
	}
	if err := unix.Dup2(fd, slot); err != nil {
		return os.NewSyscallError("dup2", err)
	}
	return nil
}

// Replace resolves argv[0] and replaces the current process with it. It
// only returns on failure, always with an *ExecError.
func Replace(argv, env []string) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}

	path, err := LookPath(argv[0])
	if err != nil {
		return &ExecError{Name: argv[0], Err: err}
	}
	return Exec(path, argv, env)
}

// Exec replaces the current process with the program at path, which must
// already be resolved. It only returns on failure.
func Exec(path string, argv, env []string) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}
	if err := unix.Exec(path, argv, env); err != nil {
		return &ExecError{Name: argv[0], Err: os.NewSyscallError("execve", err)}
	}
	return nil
}
