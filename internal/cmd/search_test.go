package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/grepwin/internal/config"
)

func parseSearchFlags(t *testing.T, args ...string) *config.Request {
	t.Helper()
	cmd := NewSearchCommand()
	require.NoError(t, cmd.ParseFlags(args))
	req, err := buildRequest(cmd)
	require.NoError(t, err)
	return req
}

func TestBuildRequestBasics(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "needle",
		"--regex",
		"--casesensitive",
		"--wholewords",
		"--includehidden",
		"--notsearch",
	)

	assert.Equal(t, []string{dir}, req.Roots)
	assert.Equal(t, "needle", req.Pattern)
	assert.True(t, req.UseRegex)
	assert.True(t, req.CaseSensitive)
	assert.True(t, req.WholeWords)
	assert.True(t, req.IncludeHidden)
	assert.True(t, req.NotSearch)
	assert.True(t, req.IncludeSubfolders)
	assert.False(t, req.Replace)
}

func TestBuildRequestReplaceMode(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--replacewith", "b",
		"--backup",
		"--keepfiledate",
	)

	assert.True(t, req.Replace)
	assert.Equal(t, "b", req.Replacement)
	assert.True(t, req.CreateBackup)
	assert.True(t, req.KeepFileDate)
}

func TestBuildRequestBackupFolderImpliesBackup(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--replacewith", "b",
		"--backupfolder",
	)
	assert.True(t, req.CreateBackup)
	assert.True(t, req.BackupInSubfolder)
}

func TestBuildRequestSizePredicate(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--size", "4",
		"--sizecmp", "2",
	)
	assert.Equal(t, config.SizeGreaterThan, req.SizeOp)
	assert.Equal(t, int64(4096), req.SizeBytes)
}

func TestBuildRequestDatePredicate(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--datelimit", "3",
		"--date1", "2024-01-01",
		"--date2", "2024-12-31",
	)
	assert.Equal(t, config.DateBetween, req.DateLimit)
	assert.Equal(t, 2024, req.Date1.Year())
	assert.Equal(t, 12, int(req.Date2.Month()))
}

func TestBuildRequestFileMatch(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--filematch", "*.go|-*_test.go",
	)
	assert.Equal(t, []string{"*.go", "-*_test.go"}, req.NamePatterns)
	assert.False(t, req.UseRegexForName)

	req = parseSearchFlags(t,
		"--searchpath", dir,
		"--searchfor", "a",
		"--filematch", `\.go$`,
		"--filematchregex",
	)
	assert.Equal(t, `\.go$`, req.NameRegex)
	assert.True(t, req.UseRegexForName)
}

func TestBuildRequestCountOnly(t *testing.T) {
	dir := t.TempDir()
	req := parseSearchFlags(t, "--searchpath", dir, "--countonly")
	assert.True(t, req.CountOnly())
}

func TestBuildRequestNothingToDo(t *testing.T) {
	cmd := NewSearchCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--searchpath", t.TempDir()}))
	_, err := buildRequest(cmd)
	assert.Error(t, err)
}

func TestBuildRequestInvalidDateLimit(t *testing.T) {
	cmd := NewSearchCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--searchpath", t.TempDir(),
		"--searchfor", "a",
		"--datelimit", "9",
	}))
	_, err := buildRequest(cmd)
	assert.Error(t, err)
}

func TestBuildRequestPreset(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(presets, []byte(`presets:
  todos:
    searchfor: TODO
    filematch: "*.go"
`), 0644))

	req := parseSearchFlags(t,
		"--searchpath", dir,
		"--preset", "todos",
		"--presets-file", presets,
	)
	assert.Equal(t, "TODO", req.Pattern)
	assert.Equal(t, []string{"*.go"}, req.NamePatterns)

	// Flags still override preset values.
	req = parseSearchFlags(t,
		"--searchpath", dir,
		"--preset", "todos",
		"--presets-file", presets,
		"--searchfor", "FIXME",
	)
	assert.Equal(t, "FIXME", req.Pattern)
}

func TestBuildRequestUnknownPreset(t *testing.T) {
	cmd := NewSearchCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--searchpath", t.TempDir(),
		"--preset", "missing",
		"--presets-file", filepath.Join(t.TempDir(), "none.yaml"),
	}))
	_, err := buildRequest(cmd)
	assert.Error(t, err)
}

func TestSearchCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\nhello\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bye"), 0644))

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"search", "--searchpath", dir, "--searchfor", "hello", "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "a.txt: 2 match(es)")
	assert.NotContains(t, out.String(), "b.txt")
}

func TestSearchCommandReplaceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo=1;foo=2;"), 0644))

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{
		"search",
		"--searchpath", dir,
		"--searchfor", `foo=(\d)`,
		"--replacewith", "bar=$1",
		"--regex",
		"--log-level", "error",
	})

	require.NoError(t, root.Execute())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bar=1;bar=2;", string(data))
}

func TestSearchCommandInvalidPatternExitCode(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "--searchpath", dir, "--searchfor", "([", "--regex"})

	err := root.Execute()
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitConfigError, exitErr.Code)
}

func TestSearchCommandNoRootsExitCode(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "--searchpath", "", "--searchfor", "x"})

	err := root.Execute()
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitConfigError, exitErr.Code)
}

func TestPresetsCommand(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(presets, []byte(`presets:
  cleanup:
    searchfor: "\\s+$"
    replacewith: ""
    regex: true
`), 0644))

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"presets", "--presets-file", presets})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "cleanup")
	assert.Contains(t, out.String(), "regex")
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ExitError{Code: 3, Err: inner}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
