package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/grepwin/internal/config"
	"github.com/harrison/grepwin/internal/models"
)

// runEngine executes a request over a fresh engine and returns all events
// plus the run error.
func runEngine(t *testing.T, req *config.Request) ([]Event, error) {
	t.Helper()
	eng, err := New(req, config.DefaultConfig(), nil)
	require.NoError(t, err)

	done := make(chan struct{})
	var events []Event
	go func() {
		defer close(done)
		for ev := range eng.Events() {
			events = append(events, ev)
		}
	}()
	runErr := eng.Run(context.Background())
	<-done
	return events, runErr
}

// foundResults extracts the Found results keyed by basename.
func foundResults(events []Event) map[string]*models.FileResult {
	out := make(map[string]*models.FileResult)
	for _, ev := range events {
		if ev.Kind == EventFound {
			out[filepath.Base(ev.Result.Path)] = ev.Result
		}
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRunLiteralSearch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello\nhello\n")
	writeFile(t, filepath.Join(dir, "b.txt"), "bye")

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           "hello",
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	found := foundResults(events)
	require.Contains(t, found, "a.txt")
	require.NotContains(t, found, "b.txt")

	res := found["a.txt"]
	assert.Equal(t, 2, res.MatchCount)
	assert.Equal(t, []int{1, 2}, res.LineNumbers)
	assert.Equal(t, []int{1, 1}, res.ColumnNumbers)
	assert.Equal(t, []int{5, 5}, res.MatchLengths)
	assert.Equal(t, models.EncodingUTF8, res.Encoding)
}

func TestRunEventOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "needle")

	req := &config.Request{Roots: []string{dir}, Pattern: "needle", IncludeSubfolders: true}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventStart, EventFound, EventProgress, EventEnd}, kinds)
}

func TestRunRegexReplaceWithBackrefs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	writeFile(t, path, "foo=1;foo=2;")

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           `foo=(\d)`,
		Replacement:       "bar=$1",
		Replace:           true,
		UseRegex:          true,
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bar=1;bar=2;", string(data))

	found := foundResults(events)
	require.Contains(t, found, "c.txt")
	assert.Equal(t, 2, found["c.txt"].MatchCount)

	// No temp sibling and no backup without create_backup.
	assert.NoFileExists(t, path+".grepwinreplaced")
	assert.NoFileExists(t, path+".bak")
}

func TestRunReplaceWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	writeFile(t, path, "old old")

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           "old",
		Replacement:       "new",
		Replace:           true,
		IncludeSubfolders: true,
		CreateBackup:      true,
	}
	_, err := runEngine(t, req)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new new", string(data))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "old old", string(backup))
}

func TestRunReplaceIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	writeFile(t, path, "foo=1;")

	req := func() *config.Request {
		return &config.Request{
			Roots:             []string{dir},
			Pattern:           `foo=(\d)`,
			Replacement:       "bar=$1",
			Replace:           true,
			UseRegex:          true,
			IncludeSubfolders: true,
		}
	}
	_, err := runEngine(t, req())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = runEngine(t, req())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRunNotSearch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "with.txt"), "a TODO b")
	writeFile(t, filepath.Join(dir, "without.txt"), "clean")

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           "TODO",
		NotSearch:         true,
		CaseSensitive:     true,
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	found := foundResults(events)
	assert.Contains(t, found, "without.txt")
	assert.NotContains(t, found, "with.txt")
}

func TestRunCountingMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "a.txt"), "x")

	req := &config.Request{Roots: []string{dir}, IncludeSubfolders: true}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	found := foundResults(events)
	assert.Contains(t, found, "a.txt")
	assert.Contains(t, found, "sub")
	assert.True(t, found["sub"].IsFolder)
}

func TestRunCaptureSearchNeverWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	writeFile(t, path, "foo=1;")

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           `foo=(\d)`,
		Replacement:       "bar=$1",
		UseRegex:          true,
		CaptureSearch:     true,
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "foo=1;", string(data))

	found := foundResults(events)
	require.Contains(t, found, "c.txt")
	assert.Equal(t, "bar=1", found["c.txt"].LineTexts[1])
}

func TestRunBinarySkippedWithoutIncludeBinary(t *testing.T) {
	dir := t.TempDir()
	bin := append([]byte("BIN"), make([]byte, 64)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.dat"), bin, 0644))

	req := &config.Request{Roots: []string{dir}, Pattern: "BIN", IncludeSubfolders: true}
	events, err := runEngine(t, req)
	require.NoError(t, err)
	assert.Empty(t, foundResults(events))

	req.IncludeBinary = true
	events, err = runEngine(t, req)
	require.NoError(t, err)
	found := foundResults(events)
	require.Contains(t, found, "b.dat")
	assert.Equal(t, 1, found["b.dat"].MatchCount)
}

func TestRunForceBinaryUTF16(t *testing.T) {
	dir := t.TempDir()
	// UTF-16LE without a BOM, two needles on separate lines.
	content := "one needle\ntwo needle\n"
	encoded := make([]byte, 0, len(content)*2)
	for _, r := range content {
		encoded = append(encoded, byte(r), 0x00)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "e.dat"), encoded, 0644))

	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           "needle",
		ForceBinary:       true,
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	found := foundResults(events)
	require.Contains(t, found, "e.dat")
	res := found["e.dat"]
	assert.Equal(t, 2, res.MatchCount)
	assert.Equal(t, []int{1, 2}, res.LineNumbers)
	assert.Equal(t, models.EncodingUTF16LE, res.Encoding)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "data")

	req := &config.Request{Roots: []string{dir}, Pattern: "data", IncludeSubfolders: true}
	eng, err := New(req, config.DefaultConfig(), nil)
	require.NoError(t, err)
	eng.Cancel()

	done := make(chan struct{})
	var events []Event
	go func() {
		defer close(done)
		for ev := range eng.Events() {
			events = append(events, ev)
		}
	}()
	runErr := eng.Run(context.Background())
	<-done

	assert.ErrorIs(t, runErr, ErrCancelled)
	for _, ev := range events {
		assert.NotEqual(t, EventFound, ev.Kind)
	}
	// No temp siblings anywhere.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".grepwinreplaced")
	}
}

func TestRunContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "data")

	req := &config.Request{Roots: []string{dir}, Pattern: "data", IncludeSubfolders: true}
	eng, err := New(req, config.DefaultConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	go func() {
		for range eng.Events() {
		}
	}()
	// A pre-cancelled context may win the race before any work starts;
	// either way the run must end without error beyond cancellation.
	err = eng.Run(ctx)
	if err != nil {
		assert.ErrorIs(t, err, ErrCancelled)
	}
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	req := &config.Request{Roots: []string{dir}, Pattern: `([`, UseRegex: true}
	_, err := New(req, config.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsMissingRoot(t *testing.T) {
	req := &config.Request{Roots: []string{"/does/not/exist-xyz"}, Pattern: "x"}
	_, err := New(req, config.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsRelativeRoot(t *testing.T) {
	req := &config.Request{Roots: []string{"relative/path"}, Pattern: "x"}
	_, err := New(req, config.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunReadErrorReported(t *testing.T) {
	dir := t.TempDir()
	req := &config.Request{
		Roots:             []string{filepath.Join(dir, "gone.txt")},
		Pattern:           "x",
		IncludeSubfolders: true,
	}
	// The root is validated at New time, so remove it after.
	writeFile(t, filepath.Join(dir, "gone.txt"), "x")
	eng, err := New(req, config.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.txt")))

	done := make(chan struct{})
	var events []Event
	go func() {
		defer close(done)
		for ev := range eng.Events() {
			events = append(events, ev)
		}
	}()
	require.NoError(t, eng.Run(context.Background()))
	<-done

	found := foundResults(events)
	require.Contains(t, found, "gone.txt")
	assert.True(t, found["gone.txt"].ReadError)
}

func TestInFlightSet(t *testing.T) {
	s := NewInFlightSet()
	assert.False(t, s.Contains("/a"))
	s.Add("/a")
	assert.True(t, s.Contains("/a"))
	assert.Equal(t, 1, s.Len())
}

func TestRunFilePathVariablePattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "self.txt"), "name is self here\n")
	writeFile(t, filepath.Join(dir, "other.txt"), "name is self here\n")

	// ${filename} resolves per file, so only self.txt matches itself.
	req := &config.Request{
		Roots:             []string{dir},
		Pattern:           `is ${filename} here`,
		UseRegex:          true,
		IncludeSubfolders: true,
	}
	events, err := runEngine(t, req)
	require.NoError(t, err)

	found := foundResults(events)
	assert.Contains(t, found, "self.txt")
	assert.NotContains(t, found, "other.txt")
}

func TestRunInvalidRegexIsConfigError(t *testing.T) {
	dir := t.TempDir()
	req := &config.Request{Roots: []string{dir}, Pattern: `(unclosed`, UseRegex: true}
	_, err := New(req, config.DefaultConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrInvalidPattern))
}
