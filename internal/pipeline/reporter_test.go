package pipeline_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ushineko/seekpipe/internal/pipeline"
)

func TestReporter_Fatal(t *testing.T) {
	var buf bytes.Buffer
	r := &pipeline.Reporter{Prog: "seekpipe", Out: &buf}

	r.Fatal(&pipeline.Error{Kind: pipeline.KindIO, Op: "transfer error", Err: errors.New("broken pipe")})
	assert.Equal(t, "seekpipe: transfer error: broken pipe\n", buf.String())
}

func TestReporter_FatalUsageShowsBanner(t *testing.T) {
	var buf bytes.Buffer
	r := &pipeline.Reporter{Prog: "seekpipe", Out: &buf}

	r.Fatal(pipeline.Errorf(pipeline.KindUsage, "unrecognized '%s' option", "-x"))
	assert.Equal(t, "seekpipe: unrecognized '-x' option\nUsage:\nseekpipe [-p prefix] command [arg]...\n", buf.String())
}

func TestReporter_Warn(t *testing.T) {
	var buf bytes.Buffer
	r := &pipeline.Reporter{Prog: "sp", Out: &buf}

	r.Warn("unable to close temp file", errors.New("input/output error"))
	assert.Equal(t, "sp: warning: unable to close temp file: input/output error\n", buf.String())
}

func TestKind_ExitCodes(t *testing.T) {
	tests := []struct {
		kind pipeline.Kind
		code int
		name string
	}{
		{pipeline.KindUsage, 64, "usage"},
		{pipeline.KindOS, 71, "os"},
		{pipeline.KindCantCreate, 73, "cant_create"},
		{pipeline.KindIO, 74, "io"},
		{pipeline.KindConfig, 78, "config"},
	}
	seen := map[int]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.ExitCode())
			assert.Equal(t, tt.name, tt.kind.String())
			assert.False(t, seen[tt.code], "exit codes must be distinct")
			seen[tt.code] = true
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, pipeline.KindOS, pipeline.KindOf(errors.New("plain")))
}
