/*
Package transfer moves every byte of one descriptor into another.

Two movers implement the same contract: "splice" asks the kernel to move
data between the descriptors without staging it in user memory, "copy"
reads and writes through a fixed buffer. The Engine tries them in order
and only falls through when a mover reports ErrUnsupported before moving
anything, so the choice of backend never affects the bytes written.
*/
package transfer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ErrUnsupported is returned by a Mover that cannot handle the given pair of
// descriptors. It is only valid before any byte has been moved.
var ErrUnsupported = errors.New("transfer: backend not supported for these descriptors")

// DefaultBufferSize is the copy mover's buffer size.
const DefaultBufferSize = 128 * 1024

// Strategy selects which movers the Engine may use.
type Strategy string

const (
	StrategyAuto   Strategy = "auto"
	StrategySplice Strategy = "splice"
	StrategyCopy   Strategy = "copy"
)

// Strategies lists the accepted strategy names.
var Strategies = []Strategy{StrategyAuto, StrategySplice, StrategyCopy}

// ParseStrategy validates a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyAuto, nil
	}
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown transfer strategy %q (want auto, splice or copy)", s)
}

// Mover copies src to dst until src reports end-of-stream.
type Mover interface {
	Name() string
	Move(dst, src *os.File) (int64, error)
}

// Result describes a completed transfer.
type Result struct {
	Bytes   int64
	Backend string
	Elapsed time.Duration
}

// Engine runs movers in order until one accepts the descriptors.
type Engine struct {
	movers []Mover
	logger *slog.Logger
}

// New builds an Engine for the given strategy. bufSize applies to the copy
// mover; zero selects DefaultBufferSize.
func New(strategy Strategy, bufSize int, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	var movers []Mover
	switch strategy {
	case StrategyAuto, "":
		movers = []Mover{NewSplice(), NewCopy(bufSize)}
	case StrategySplice:
		movers = []Mover{NewSplice()}
	case StrategyCopy:
		movers = []Mover{NewCopy(bufSize)}
	default:
		return nil, fmt.Errorf("unknown transfer strategy %q", strategy)
	}

	return &Engine{movers: movers, logger: logger}, nil
}

// NewWithMovers builds an Engine from an explicit mover list.
func NewWithMovers(logger *slog.Logger, movers ...Mover) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{movers: movers, logger: logger}
}

// Transfer moves all of src into dst. Any error means dst holds an
// incomplete copy.
func (e *Engine) Transfer(dst, src *os.File) (Result, error) {
	start := time.Now()

	for _, m := range e.movers {
		n, err := m.Move(dst, src)
		if errors.Is(err, ErrUnsupported) && n == 0 {
			e.logger.Debug("transfer backend unavailable, trying next", "backend", m.Name())
			continue
		}
		res := Result{Bytes: n, Backend: m.Name(), Elapsed: time.Since(start)}
		if err != nil {
			return res, fmt.Errorf("%s after %d bytes: %w", m.Name(), n, err)
		}
		e.logger.Debug("transfer complete",
			"backend", res.Backend,
			"bytes", res.Bytes,
			"elapsed", res.Elapsed,
		)
		return res, nil
	}

	return Result{Elapsed: time.Since(start)}, ErrUnsupported
}

type copyMover struct {
	size int
}

// NewCopy returns the buffered read/write mover.
func NewCopy(size int) Mover {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &copyMover{size: size}
}

func (c *copyMover) Name() string { return "copy" }

// Move hides the files behind plain Reader/Writer so io.CopyBuffer uses the
// buffer instead of the files' own fast paths.
func (c *copyMover) Move(dst, src *os.File) (int64, error) {
	buf := make([]byte, c.size)
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
}
