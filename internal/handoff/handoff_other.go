//go:build !unix

package handoff

// Overlay is not available on this platform.
func Overlay(_, _ int) error { return ErrUnsupported }

// Replace is not available on this platform.
func Replace(argv, _ []string) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}
	return &ExecError{Name: argv[0], Err: ErrUnsupported}
}

// Exec is not available on this platform.
func Exec(_ string, argv, _ []string) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}
	return &ExecError{Name: argv[0], Err: ErrUnsupported}
}
