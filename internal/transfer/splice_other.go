//go:build !linux

package transfer

import "os"

type spliceMover struct{}

// NewSplice returns a mover that always reports ErrUnsupported on
// platforms without splice(2).
func NewSplice() Mover { return spliceMover{} }

func (spliceMover) Name() string { return "splice" }

func (spliceMover) Move(_, _ *os.File) (int64, error) { return 0, ErrUnsupported }
