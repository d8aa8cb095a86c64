package search

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/harrison/grepwin/internal/models"
	"github.com/harrison/grepwin/internal/textfile"
)

// ByteOptions configures one byte-matcher invocation. The byte matcher
// handles files that are binary, or too large to decode into a character
// buffer.
type ByteOptions struct {
	// Encoding is the detected encoding routed to this matcher.
	Encoding models.Encoding
	// LiteralText is the raw literal search text; empty in regex mode.
	// Literal text is what the cross-encoding tries re-encode.
	LiteralText string
	// CharRegex is the compiled character-space expression, used for
	// UTF-8 content, transcoded scans, and replacement rendering.
	CharRegex *regexp.Regexp
	// UseRegex distinguishes regex mode from literal mode.
	UseRegex      bool
	CaseSensitive bool
	// Formatter renders replacements; required when Replace is set.
	Formatter *Formatter
	Replace   bool
	NotSearch bool
	// TempPath receives the rewritten bytes in replace mode. The caller
	// registers it with the in-flight set before invoking the matcher.
	TempPath  string
	Cancelled func() bool
}

// ByteOutcome is the result of one byte-matcher invocation.
type ByteOutcome struct {
	Found     int
	Cancelled bool
	// TempWritten reports that TempPath holds the complete rewritten
	// content and may be swapped in.
	TempWritten bool
	// Encoding is the assumption under which hits were found; it can
	// differ from the detected encoding for binary files.
	Encoding models.Encoding
}

// bytePass is one encoding assumption tried over the raw bytes: either a
// regex matched in UTF-8 space, or a re-encoded literal needle compared
// byte for byte. Needles are how non-UTF-8 code units are found, since the
// regexp engine decodes its input as UTF-8.
type bytePass struct {
	re     *regexp.Regexp
	needle []byte
	fold   bool
	enc    models.Encoding
}

// byteHit is one raw match before line resolution.
type byteHit struct {
	off int
	m   []int
}

// SearchBytes scans a file's raw bytes. The file is memory-mapped
// read-only where the platform allows it.
//
// Binary files are probed under several encoding assumptions in order,
// stopping at the first that yields hits, mirroring the historical engine.
// Because matching is byte-granular, UTF-16 matches that start on odd byte
// offsets are found without a separate misalignment pass.
func SearchBytes(path string, res *models.FileResult, opts ByteOptions) (ByteOutcome, error) {
	var out ByteOutcome
	out.Encoding = opts.Encoding

	if opts.Cancelled == nil {
		opts.Cancelled = func() bool { return false }
	}

	data, closer, err := mapFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to map %s: %w", path, err)
	}
	defer closer()

	// Regex mode over UTF-16 runs in character space: the buffer is
	// transcoded and scanned with the text matcher, and any replacement
	// is re-encoded with the original endianness.
	if opts.UseRegex && (opts.Encoding == models.EncodingUTF16LE || opts.Encoding == models.EncodingUTF16BE) {
		return transcodedScan(data, opts.Encoding, res, opts)
	}

	for _, pass := range buildPasses(opts) {
		if opts.Cancelled() {
			out.Cancelled = true
			return out, nil
		}
		passOut, err := runBytePass(data, pass, res, opts)
		if err != nil {
			return out, err
		}
		if passOut.Cancelled {
			out.Cancelled = true
			return out, nil
		}
		if passOut.Found > 0 {
			return passOut, nil
		}
	}

	// Binary files in regex mode fall back to transcoded UTF-16 scans
	// when the byte pass found nothing.
	if opts.UseRegex && opts.Encoding == models.EncodingBinary {
		for _, enc := range []models.Encoding{models.EncodingUTF16LE, models.EncodingUTF16BE} {
			if opts.Cancelled() {
				out.Cancelled = true
				return out, nil
			}
			tOut, err := transcodedScan(data, enc, res, opts)
			if err != nil {
				continue
			}
			if tOut.Found > 0 || tOut.Cancelled {
				return tOut, err
			}
		}
	}

	return out, nil
}

// buildPasses selects the encoding assumptions for the raw-byte scan.
func buildPasses(opts ByteOptions) []bytePass {
	fold := !opts.CaseSensitive
	regexPass := bytePass{re: opts.CharRegex, enc: models.EncodingUTF8}

	switch opts.Encoding {
	case models.EncodingBinary:
		if opts.UseRegex {
			return []bytePass{regexPass}
		}
		var passes []bytePass
		if needle, ok := ansiNeedle(opts.LiteralText); ok && !bytes.Equal(needle, []byte(opts.LiteralText)) {
			passes = append(passes, bytePass{needle: needle, fold: fold, enc: models.EncodingAnsi})
		}
		passes = append(passes,
			bytePass{needle: []byte(opts.LiteralText), fold: fold, enc: models.EncodingUTF8},
			bytePass{needle: utf16Needle(opts.LiteralText, false), fold: fold, enc: models.EncodingUTF16LE},
			bytePass{needle: utf16Needle(opts.LiteralText, true), fold: fold, enc: models.EncodingUTF16BE},
		)
		return passes

	case models.EncodingUTF16LE, models.EncodingUTF16BE:
		// Literal mode only; regex mode was routed to the transcoded
		// scan above.
		return []bytePass{{
			needle: utf16Needle(opts.LiteralText, opts.Encoding == models.EncodingUTF16BE),
			fold:   fold,
			enc:    opts.Encoding,
		}}

	case models.EncodingAnsi:
		if !opts.UseRegex {
			if needle, ok := ansiNeedle(opts.LiteralText); ok {
				return []bytePass{{needle: needle, fold: fold, enc: models.EncodingAnsi}}
			}
		}
		return []bytePass{{re: opts.CharRegex, enc: models.EncodingAnsi}}

	default:
		// UTF-8 content is valid input for the regexp engine, in both
		// literal and regex mode.
		return []bytePass{regexPass}
	}
}

// runBytePass scans the buffer under one encoding assumption, recording
// absolute byte offsets during the scan and resolving line and column
// information only after hits are known.
func runBytePass(data []byte, pass bytePass, res *models.FileResult, opts ByteOptions) (ByteOutcome, error) {
	out := ByteOutcome{Encoding: pass.enc}

	if opts.NotSearch {
		if matchesOnce(data, pass) {
			out.Found = 1
			res.MatchCount = 1
		}
		return out, nil
	}

	hits := findHits(data, pass, opts.Cancelled)
	if hits == nil {
		out.Cancelled = opts.Cancelled()
		return out, nil
	}
	if len(hits) == 0 {
		return out, nil
	}
	out.Found = len(hits)
	res.MatchCount += len(hits)

	if opts.Replace {
		written, err := writeReplaced(data, hits, pass, opts)
		if err != nil {
			return out, err
		}
		out.TempWritten = written
		if !written {
			out.Cancelled = true
			return out, nil
		}
	}

	resolveLines(data, hits, pass.enc, res, opts)
	return out, nil
}

// matchesOnce reports whether the pass matches anywhere in the buffer.
func matchesOnce(data []byte, pass bytePass) bool {
	if pass.needle != nil {
		return indexNeedle(data, pass.needle, 0, pass.fold) >= 0
	}
	return pass.re.Match(data)
}

// findHits enumerates all matches for the pass. Returns nil when the scan
// was cancelled mid-way.
func findHits(data []byte, pass bytePass, cancelled func() bool) []byteHit {
	if pass.needle == nil {
		if cancelled() {
			return nil
		}
		matches := pass.re.FindAllSubmatchIndex(data, -1)
		hits := make([]byteHit, 0, len(matches))
		for _, m := range matches {
			hits = append(hits, byteHit{off: m[0], m: m})
		}
		return hits
	}

	if len(pass.needle) == 0 {
		return []byteHit{}
	}
	hits := []byteHit{}
	for from := 0; from <= len(data)-len(pass.needle); {
		if len(hits)%1024 == 0 && cancelled() {
			return nil
		}
		i := indexNeedle(data, pass.needle, from, pass.fold)
		if i < 0 {
			break
		}
		hits = append(hits, byteHit{off: i, m: []int{i, i + len(pass.needle)}})
		from = i + len(pass.needle)
	}
	return hits
}

// indexNeedle finds the next occurrence of needle at or after from. With
// fold set, ASCII letters compare case-insensitively; all other bytes
// compare exactly, so code-unit padding and high bytes stay significant.
func indexNeedle(data, needle []byte, from int, fold bool) int {
	if !fold {
		i := bytes.Index(data[from:], needle)
		if i < 0 {
			return -1
		}
		return from + i
	}
	for i := from; i+len(needle) <= len(data); i++ {
		if equalFoldAt(data, i, needle) {
			return i
		}
	}
	return -1
}

// equalFoldAt compares needle against data[i:] with ASCII case folding.
func equalFoldAt(data []byte, i int, needle []byte) bool {
	for j := 0; j < len(needle); j++ {
		a, b := data[i+j], needle[j]
		if a == b {
			continue
		}
		if a|0x20 != b|0x20 {
			return false
		}
		if c := a | 0x20; c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// writeReplaced streams the rewritten bytes to the temp file. On
// cancellation the partial temp file is left behind as a hint and the
// caller must not swap it in.
func writeReplaced(data []byte, hits []byteHit, pass bytePass, opts ByteOptions) (bool, error) {
	f, err := os.OpenFile(opts.TempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	last := 0
	for i, h := range hits {
		if i%1024 == 0 && opts.Cancelled() {
			w.Flush()
			f.Close()
			return false, nil
		}
		if _, err := w.Write(data[last:h.off]); err != nil {
			f.Close()
			return false, fmt.Errorf("failed to write temp file: %w", err)
		}
		if _, err := w.Write(renderReplacement(data, h.m, pass, opts)); err != nil {
			f.Close()
			return false, fmt.Errorf("failed to write temp file: %w", err)
		}
		last = h.m[1]
	}
	if _, err := w.Write(data[last:]); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to flush temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to close temp file: %w", err)
	}
	return !opts.Cancelled(), nil
}

// renderReplacement produces the replacement bytes for one hit. The UTF-8
// regex pass expands directly in byte space; every other pass round-trips
// the match through character space so group references and template text
// come out in the file's own encoding.
func renderReplacement(data []byte, m []int, pass bytePass, opts ByteOptions) []byte {
	if pass.re != nil && pass.enc == models.EncodingUTF8 {
		return opts.Formatter.Expand(pass.re, data, m)
	}

	matchBytes := data[m[0]:m[1]]
	decoded := textfile.DecodeString(matchBytes, pass.enc)
	rendered := decoded
	if cm := opts.CharRegex.FindStringSubmatchIndex(decoded); cm != nil {
		rendered = decoded[:cm[0]] +
			opts.Formatter.ExpandString(opts.CharRegex, decoded, cm) +
			decoded[cm[1]:]
	}
	encoded, err := textfile.EncodeString(rendered, pass.enc)
	if err != nil {
		return matchBytes
	}
	return encoded
}

// resolveLines converts raw byte offsets into (line, column, length)
// triples and caches decoded line texts, honoring the line cache cap.
// Columns and lengths are reported in bytes. UTF-16 line spans are snapped
// to code-unit boundaries so the stray half of a line-break unit does not
// shear the decode.
func resolveLines(data []byte, hits []byteHit, enc models.Encoding, res *models.FileResult, opts ByteOptions) {
	var lineCancel func() bool
	if len(data) >= 4*SearchBlockSize {
		lineCancel = opts.Cancelled
	}
	lo := CalculateLines(data, lineCancel)

	wide := enc.CharSize() == 2
	for _, h := range hits {
		line := lo.LineFromOffset(h.off)
		s, e := LineSpan(lo, data, line)
		if wide {
			if s%2 != 0 {
				s++
			}
			if e%2 != 0 {
				e--
			}
		}
		col := h.off - s + 1
		if col < 1 {
			col = 1
		}
		lineLen := e - s
		if lineLen <= 0 || lineLen >= maxCachedLineLen {
			res.CacheLine(line, "")
			res.AddHit(line, col, 0)
			continue
		}
		res.CacheLine(line, textfile.DecodeString(data[s:e], enc))
		length := h.m[1] - h.m[0]
		if rest := lineLen - (col - 1); length > rest {
			length = rest
		}
		res.AddHit(line, col, length)
	}
}

// transcodedScan decodes the whole buffer and runs the character matcher
// over it; used for UTF-16 content in regex mode. Offsets, lines and
// columns are reported in decoded character space.
func transcodedScan(data []byte, enc models.Encoding, res *models.FileResult, opts ByteOptions) (ByteOutcome, error) {
	out := ByteOutcome{Encoding: enc}

	content, hasBOM, err := textfile.Decode(data, enc)
	if err != nil {
		return out, fmt.Errorf("failed to transcode: %w", err)
	}

	textOut := SearchText(content, res, TextOptions{
		Regex:     opts.CharRegex,
		Formatter: opts.Formatter,
		Replace:   opts.Replace,
		NotSearch: opts.NotSearch,
		Cancelled: opts.Cancelled,
	})
	out.Found = textOut.Found
	out.Cancelled = textOut.Cancelled

	if opts.Replace && textOut.Found > 0 && !textOut.Cancelled {
		encoded, err := textfile.Encode(textOut.Replaced, enc, hasBOM)
		if err != nil {
			return out, fmt.Errorf("failed to encode replacement: %w", err)
		}
		if err := os.WriteFile(opts.TempPath, encoded, 0644); err != nil {
			return out, fmt.Errorf("failed to write temp file: %w", err)
		}
		out.TempWritten = true
	}
	return out, nil
}

// utf16Needle encodes the literal text as UTF-16 bytes of the given
// endianness.
func utf16Needle(text string, bigEndian bool) []byte {
	enc := models.EncodingUTF16LE
	if bigEndian {
		enc = models.EncodingUTF16BE
	}
	encoded, err := textfile.EncodeString(text, enc)
	if err != nil {
		return nil
	}
	return encoded
}

// ansiNeedle encodes the literal text as Windows-1252 bytes. Returns false
// when the text cannot be represented in that code page.
func ansiNeedle(text string) ([]byte, bool) {
	encoded, err := textfile.EncodeString(text, models.EncodingAnsi)
	if err != nil {
		return nil, false
	}
	return encoded, true
}
