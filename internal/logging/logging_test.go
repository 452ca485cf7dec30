package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_QuietByDefault(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup := Setup(Config{Prog: "seekpipe", Stderr: &stderr})
	defer cleanup()

	logger.Info("hello")
	logger.Warn("careful")
	assert.Empty(t, stderr.String())
}

func TestSetup_VerboseWritesStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup := Setup(Config{Prog: "seekpipe", Verbose: true, Stderr: &stderr})
	defer cleanup()

	logger.Debug("stage", "stage", "transferring")
	out := stderr.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "stage=transferring")
	assert.Contains(t, out, "prog=seekpipe")
}

func TestSetup_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var stderr bytes.Buffer
	logger, cleanup := Setup(Config{Prog: "seekpipe", LogDir: dir, Stderr: &stderr})

	logger.Debug("dropped at info level")
	logger.Info("transfer complete", "bytes", 42)
	cleanup()

	assert.Empty(t, stderr.String(), "file logging alone must not touch stderr")

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "transfer complete", rec["msg"])
	assert.Equal(t, "seekpipe", rec["prog"])
	assert.InDelta(t, 42, rec["bytes"], 0)
}

func TestSetup_VerboseAndFile(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	logger, cleanup := Setup(Config{LogDir: dir, Verbose: true, Stderr: &stderr})

	logger.WithGroup("transfer").Debug("chunk", "n", 1)
	cleanup()

	assert.Contains(t, stderr.String(), "transfer.n=1")

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"transfer":{"n":1}`)
}

func TestSetup_UnusableLogDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	var stderr bytes.Buffer
	logger, cleanup := Setup(Config{LogDir: filepath.Join(file, "logs"), Stderr: &stderr})
	defer cleanup()

	assert.Contains(t, stderr.String(), "file logging disabled")
	logger.Info("still works")
}
