//go:build linux

package transfer

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// spliceChunk is the per-call length. The kernel caps each call at what the
// pipe holds, so this only needs to be large.
const spliceChunk = 1 << 30

type spliceMover struct{}

// NewSplice returns the zero-copy mover. splice(2) needs a pipe on at least
// one side; other descriptor pairs yield ErrUnsupported.
func NewSplice() Mover { return spliceMover{} }

func (spliceMover) Name() string { return "splice" }

func (spliceMover) Move(dst, src *os.File) (int64, error) {
	in, err := rawFD(src)
	if err != nil {
		return 0, err
	}
	out, err := rawFD(dst)
	if err != nil {
		return 0, err
	}

	var total int64
	for {
		n, err := unix.Splice(in, nil, out, nil, spliceChunk, 0)
		switch {
		case err == nil && n == 0:
			return total, nil
		case err == nil:
			total += n
		case errors.Is(err, unix.EINTR):
			// retry
		case errors.Is(err, unix.EAGAIN):
			if err := waitReadable(in); err != nil {
				return total, err
			}
		case total == 0 && (errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS)):
			return 0, ErrUnsupported
		default:
			return total, os.NewSyscallError("splice", err)
		}
	}
}

// waitReadable blocks until fd has data or has hung up. Only reached when
// the inherited source is in non-blocking mode.
func waitReadable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return os.NewSyscallError("poll", err)
		}
	}
}

// rawFD returns the descriptor number without switching it to blocking
// mode, which (*os.File).Fd would do.
func rawFD(f *os.File) (int, error) {
	sc, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := sc.Control(func(u uintptr) { fd = int(u) }); err != nil {
		return -1, err
	}
	return fd, nil
}
