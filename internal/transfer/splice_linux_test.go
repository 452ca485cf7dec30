//go:build linux

package transfer_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ushineko/seekpipe/internal/transfer"
)

func TestSplice_RegularFileSourceUnsupported(t *testing.T) {
	n, err := transfer.NewSplice().Move(destination(t), fileSource(t, []byte("abc")))
	assert.ErrorIs(t, err, transfer.ErrUnsupported)
	assert.Zero(t, n)
}

// os.Pipe descriptors are non-blocking, so a slow producer drives the mover
// through its poll path.
func TestSplice_SlowProducer(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	chunks := [][]byte{[]byte("first "), []byte("second "), []byte("third")}
	go func() {
		for _, c := range chunks {
			time.Sleep(20 * time.Millisecond)
			_, _ = w.Write(c)
		}
		_ = w.Close()
	}()

	dst := destination(t)
	n, err := transfer.NewSplice().Move(dst, r)
	require.NoError(t, err)

	want := bytes.Join(chunks, nil)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, readBack(t, dst))
}

func TestEngine_AutoPrefersSpliceForPipes(t *testing.T) {
	e, err := transfer.New(transfer.StrategyAuto, 0, nil)
	require.NoError(t, err)

	res, err := e.Transfer(destination(t), pipeSource(t, []byte("via the kernel")))
	require.NoError(t, err)
	assert.Equal(t, "splice", res.Backend)
}
