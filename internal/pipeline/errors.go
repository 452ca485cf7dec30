package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error. Each kind has its own exit status.
type Kind int

const (
	KindUsage Kind = iota + 1
	KindCantCreate
	KindIO
	KindOS
	KindConfig
)

// Exit statuses, taken from sysexits.h.
const (
	ExitUsage      = 64
	ExitOSErr      = 71
	ExitCantCreate = 73
	ExitIOErr      = 74
	ExitConfig     = 78
)

// ExitCode returns the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return ExitUsage
	case KindCantCreate:
		return ExitCantCreate
	case KindIO:
		return ExitIOErr
	case KindConfig:
		return ExitConfig
	default:
		return ExitOSErr
	}
}

// String names the kind; used as the journal outcome.
func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindCantCreate:
		return "cant_create"
	case KindIO:
		return "io"
	case KindOS:
		return "os"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a fatal pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func fail(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from err. Errors that are not *Error are treated
// as operating system errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOS
}
