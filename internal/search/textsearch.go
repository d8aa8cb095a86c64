package search

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harrison/grepwin/internal/models"
)

// TextOptions configures one text-matcher invocation over a decoded buffer.
type TextOptions struct {
	// Regex is the compiled search expression.
	Regex *regexp.Regexp
	// Formatter renders the replacement; required for replace and
	// capture-search modes.
	Formatter *Formatter
	// Replace builds the rewritten content alongside the scan.
	Replace bool
	// CaptureSearch records the rendered replacement per hit instead of
	// the source line; the file is never written.
	CaptureSearch bool
	// NotSearch stops at the first hit; the caller inverts the
	// reporting predicate.
	NotSearch bool
	// Cancelled is polled between hits and at block boundaries.
	Cancelled func() bool
}

// TextOutcome is the result of one text-matcher invocation.
type TextOutcome struct {
	// Found is the number of pattern hits.
	Found int
	// Cancelled reports that the scan stopped early; any replacement
	// content is incomplete and must not be written.
	Cancelled bool
	// Replaced holds the fully rewritten content when Replace is set,
	// at least one hit was found, and the scan was not cancelled.
	Replaced string
}

// SearchText scans a decoded character buffer and records hits into res.
//
// RE2 enumerates matches over the whole buffer with correct anchor
// semantics; the 64 MiB block unit survives as the cancellation polling
// granularity and the bounded-line-index threshold rather than as a regex
// window. Hits are recorded as (line, column, length) triples, one per
// covered line for multi-line hits, with columns and lengths counted in
// characters.
func SearchText(content string, res *models.FileResult, opts TextOptions) TextOutcome {
	var out TextOutcome

	if opts.Cancelled == nil {
		opts.Cancelled = func() bool { return false }
	}
	if opts.Cancelled() {
		out.Cancelled = true
		return out
	}

	if opts.NotSearch {
		if opts.Regex.MatchString(content) {
			out.Found = 1
		}
		res.MatchCount = out.Found
		return out
	}

	matches := opts.Regex.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return out
	}

	var lineCancel func() bool
	if len(content) >= 4*SearchBlockSize {
		lineCancel = opts.Cancelled
	}
	lo := CalculateLines(content, lineCancel)

	var replaced strings.Builder
	if opts.Replace {
		replaced.Grow(len(content))
	}
	last := 0

	for _, m := range matches {
		if opts.Cancelled() {
			out.Cancelled = true
			out.Found = res.MatchCount
			return out
		}

		start, end := m[0], m[1]
		res.MatchCount++

		tail := end
		if end > start {
			tail = end - 1
		}
		lineStart := lo.LineFromOffset(start)
		lineEnd := lo.LineFromOffset(tail)
		col := runeColumn(content, lo.LineStart(lineStart), start)
		lenMatch := utf8.RuneCountInString(content[start:end])

		if opts.CaptureSearch {
			rendered := opts.Formatter.ExpandString(opts.Regex, content, m)
			if !res.HasLine(lineStart) {
				res.CacheLine(lineStart, rendered)
			}
			res.AddHit(lineStart, col, utf8.RuneCountInString(rendered))
		} else {
			emitLineHits(content, res, lo, lineStart, lineEnd, col, lenMatch)
		}

		if opts.Replace {
			replaced.WriteString(content[last:start])
			replaced.WriteString(opts.Formatter.ExpandString(opts.Regex, content, m))
			last = end
		}
	}

	out.Found = res.MatchCount
	if opts.Replace {
		replaced.WriteString(content[last:])
		out.Replaced = replaced.String()
	}
	return out
}

// emitLineHits appends one (line, column, length) triple per line covered
// by a hit, caching each touched line's text. Lines at or above the cache
// cap store empty text and a zero length.
func emitLineHits(content string, res *models.FileResult, lo *LineOffsets, lineStart, lineEnd, col, lenMatch int) {
	for l := lineStart; l <= lineEnd; l++ {
		s, e := LineSpan(lo, content, l)
		capped := e-s >= maxCachedLineLen
		if capped {
			res.CacheLine(l, "")
		} else {
			res.CacheLine(l, content[s:e])
		}

		lineRunes := utf8.RuneCountInString(content[s:e])
		lenLineMatch := lineRunes - col + 1
		if lenLineMatch < 0 {
			lenLineMatch = 0
		}
		if lenMatch < lenLineMatch {
			lenLineMatch = lenMatch
		}
		if capped {
			res.AddHit(l, col, 0)
		} else {
			res.AddHit(l, col, lenLineMatch)
		}
		if lenMatch > lenLineMatch {
			col = 1
			lenMatch -= lenLineMatch
		}
	}
}

// runeColumn returns the 1-based character column of off within the line
// starting at lineStart.
func runeColumn(content string, lineStart, off int) int {
	return utf8.RuneCountInString(content[lineStart:off]) + 1
}
