package engine

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/harrison/grepwin/internal/models"
	"github.com/harrison/grepwin/internal/replace"
	"github.com/harrison/grepwin/internal/search"
	"github.com/harrison/grepwin/internal/textfile"
)

// processFile runs the full per-file pipeline: encoding detection, the
// character or byte matcher, and the replace protocol. It always ends by
// reporting the file through sendResult.
func (e *Engine) processFile(task models.FileTask) {
	res := models.NewFileResult(task)

	if task.ReadError {
		e.sendResult(res, -1, false)
		return
	}

	re, err := e.patternFor(task.Path)
	if err != nil {
		// A per-file pattern that stops compiling after placeholder
		// substitution is shown to the user as the file's diagnostic.
		res.ExceptionText = err.Error()
		e.sendResult(res, 1, false)
		return
	}

	detectOpts := textfile.DetectOptions{
		ForceBinary:     e.req.ForceBinary,
		ForceUTF8:       e.req.ForceUTF8,
		NullBytesPerMiB: e.req.NullBytesPerMiB,
		FileSize:        task.Size,
	}

	if e.req.ForceBinary || task.Size > e.req.EffectiveMaxDecodeSize() {
		e.scanBytes(task, res, re, e.detectLarge(task.Path, detectOpts))
		return
	}

	file, err := textfile.Load(task.Path, detectOpts, e.Cancelled)
	if err != nil {
		res.ReadError = true
		e.sendResult(res, -1, false)
		return
	}
	res.Encoding = file.Encoding

	if file.Encoding == models.EncodingBinary {
		if !e.req.IncludeBinary {
			e.sendResult(res, -1, false)
			return
		}
		e.scanBytes(task, res, re, file.Encoding)
		return
	}

	e.scanText(task, res, re, file)
}

// patternFor resolves the per-file search pattern. Most runs share one
// compiled expression; expressions with file placeholders compile per file.
func (e *Engine) patternFor(path string) (*regexp.Regexp, error) {
	if e.sharedRegex != nil {
		return e.sharedRegex, nil
	}
	expr := search.ExpandSearchPathVariables(e.req.Pattern, path)
	return search.CompilePattern(expr, e.req.UseRegex, e.req.CaseSensitive, e.req.DotMatchesNewline, e.req.WholeWords)
}

// formatterFor prepares the replacement template for one file. Literal
// replacements are escaped so they expand verbatim.
func (e *Engine) formatterFor(path string) *search.Formatter {
	template := e.req.Replacement
	if !e.req.UseRegex {
		template = search.EscapeReplacement(template)
	}
	return search.NewFormatter(template, path)
}

// scanText runs the character matcher over a fully decoded file and, in
// replace mode, hands the rewritten content to the swap protocol.
func (e *Engine) scanText(task models.FileTask, res *models.FileResult, re *regexp.Regexp, file *textfile.File) {
	capture := e.req.CaptureSearch
	opts := search.TextOptions{
		Regex:         re,
		Replace:       e.req.Replace,
		CaptureSearch: capture,
		NotSearch:     e.req.NotSearch,
		Cancelled:     e.Cancelled,
	}
	if e.req.Replace || capture {
		opts.Formatter = e.formatterFor(task.Path)
	}

	tempPath := replace.TempPath(task.Path)
	if e.req.Replace {
		e.inFlight.Add(tempPath)
	}

	var out search.TextOutcome
	count, panicked := e.guardedScan(res, func() {
		out = search.SearchText(file.Content, res, opts)
	})
	if panicked {
		e.sendResult(res, count, false)
		return
	}
	count = out.Found

	if e.req.Replace && !e.req.NotSearch && out.Found > 0 && !out.Cancelled {
		encoded, err := textfile.Encode(out.Replaced, file.Encoding, file.HasBOM)
		if err == nil {
			err = os.WriteFile(tempPath, encoded, 0644)
		}
		if err == nil {
			err = e.adoptTemp(task, res, tempPath)
		}
		if err != nil {
			e.replaceFailed(task.Path, err)
			count = -1
		}
	}

	e.sendResult(res, count, false)
}

// scanBytes runs the byte matcher, which handles binary files and files
// too large to decode, and finishes any pending replace swap.
func (e *Engine) scanBytes(task models.FileTask, res *models.FileResult, re *regexp.Regexp, enc models.Encoding) {
	if enc == models.EncodingAuto {
		res.ReadError = true
		e.sendResult(res, -1, false)
		return
	}
	res.Encoding = enc

	literal := ""
	if !e.req.UseRegex {
		literal = e.req.Pattern
	}

	tempPath := replace.TempPath(task.Path)
	if e.req.Replace {
		e.inFlight.Add(tempPath)
	}

	opts := search.ByteOptions{
		Encoding:      enc,
		LiteralText:   literal,
		CharRegex:     re,
		UseRegex:      e.req.UseRegex,
		CaseSensitive: e.req.CaseSensitive,
		Replace:       e.req.Replace,
		NotSearch:     e.req.NotSearch,
		TempPath:      tempPath,
		Cancelled:     e.Cancelled,
	}
	if e.req.Replace {
		opts.Formatter = e.formatterFor(task.Path)
	}

	var out search.ByteOutcome
	var scanErr error
	count, panicked := e.guardedScan(res, func() {
		out, scanErr = search.SearchBytes(task.Path, res, opts)
	})
	if panicked {
		e.sendResult(res, count, false)
		return
	}
	if scanErr != nil {
		res.ReadError = true
		e.sendResult(res, -1, false)
		return
	}
	count = out.Found
	if out.Found > 0 {
		res.Encoding = out.Encoding
	}

	if e.req.Replace && out.TempWritten && !out.Cancelled {
		if err := e.adoptTemp(task, res, tempPath); err != nil {
			e.replaceFailed(task.Path, err)
			count = -1
		}
	} else if e.req.Replace && out.Found == 0 {
		// No hits: a registered temp name was never written, but an
		// aborted pass may have left one behind with nothing useful.
		_ = os.Remove(tempPath)
	}

	e.sendResult(res, count, false)
}

// guardedScan recovers a matcher panic (a pathological expression blowing
// past the regexp engine) and turns it into the file's diagnostic text with
// a count of one, so the user sees the failure in the results.
func (e *Engine) guardedScan(res *models.FileResult, scan func()) (int, bool) {
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.ExceptionText = fmt.Sprint(r)
				panicked = true
			}
		}()
		scan()
	}()
	if panicked {
		return 1, true
	}
	return 0, false
}

// adoptTemp runs the swap protocol for one rewritten file.
func (e *Engine) adoptTemp(task models.FileTask, res *models.FileResult, tempPath string) error {
	return replace.AdoptTemp(task.Path, tempPath, res, replace.Options{
		CreateBackup:      e.req.CreateBackup,
		BackupInSubfolder: e.req.BackupInSubfolder,
		KeepFileDate:      e.req.KeepFileDate,
		SearchRoot:        task.Root,
		Registry:          e.inFlight,
		Cancelled:         e.Cancelled,
	})
}

func (e *Engine) replaceFailed(path string, err error) {
	e.replaceFailures.Add(1)
	e.logError(fmt.Sprintf("replace failed for %s: %v", path, err))
}

// detectLarge classifies a file from its prefix without loading it; used
// for files beyond the full-decode cap.
func (e *Engine) detectLarge(path string, opts textfile.DetectOptions) models.Encoding {
	f, err := os.Open(path)
	if err != nil {
		return models.EncodingAuto
	}
	defer f.Close()

	sample := make([]byte, textfile.DetectionSampleSize)
	n, err := f.Read(sample)
	if n == 0 && err != nil && err != io.EOF {
		return models.EncodingAuto
	}
	return textfile.Detect(sample[:n], opts)
}
