package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/grepwin/internal/models"
)

func TestFileLoggerWritesRunLog(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "debug")
	require.NoError(t, err)

	fl.LogInfo("starting")
	fl.LogFileResult(&models.FileResult{Path: "/x/a.txt", MatchCount: 2, Encoding: models.EncodingUTF8})
	fl.LogSummary(Summary{Processed: 3, Matched: 1, Duration: 2 * time.Second})
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "[INFO] starting")
	assert.Contains(t, out, "/x/a.txt: 2 match(es) [UTF-8]")
	assert.Contains(t, out, "processed=3 matched=1")
}

func TestFileLoggerRunFileNaming(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	base := filepath.Base(fl.RunFile())
	assert.True(t, strings.HasPrefix(base, "run-"), "run file %q", base)
	assert.True(t, strings.HasSuffix(base, ".log"), "run file %q", base)
}

func TestFileLoggerLevelFilter(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "error")
	require.NoError(t, err)

	fl.LogInfo("hidden")
	fl.LogError("shown")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	require.NoError(t, err)
	require.NoError(t, fl.Close())
	assert.NoError(t, fl.Close())
	// Logging after close must not panic.
	fl.LogInfo("dropped")
}

func TestFileLoggerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "logs")
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	require.NoError(t, err)
	defer fl.Close()
	assert.DirExists(t, dir)
}
