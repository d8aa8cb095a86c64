// Package search implements the character and byte matchers, the line
// offset index and the replacement formatter.
package search

import "sort"

// SearchBlockSize is the window unit used to bound per-block work. Buffers
// of at least four blocks use the bounded line index so cancellation can
// interrupt the scan while keeping best-effort context.
const SearchBlockSize = 1 << 26 // 64 MiB

// maxCachedLineLen is the line cache cap: lines of this length or longer are
// stored as empty strings with a match length of zero.
const maxCachedLineLen = 4096

// LineOffsets is a monotone table of line start offsets over one buffer.
// Line 1 starts at offset 0; line breaks are \n, \r and \r\n.
type LineOffsets struct {
	starts   []int
	size     int
	complete bool
}

// CalculateLines scans the buffer once and records every line start. When
// cancelled is non-nil it is polled at block boundaries; a cancelled scan
// returns a partial table that clamps lookups to the last known line.
func CalculateLines[T ~string | ~[]byte](buf T, cancelled func() bool) *LineOffsets {
	lo := &LineOffsets{
		starts:   []int{0},
		size:     len(buf),
		complete: true,
	}

	nextPoll := SearchBlockSize
	for i := 0; i < len(buf); i++ {
		if cancelled != nil && i >= nextPoll {
			if cancelled() {
				lo.complete = false
				return lo
			}
			nextPoll += SearchBlockSize
		}
		switch buf[i] {
		case '\n':
			lo.starts = append(lo.starts, i+1)
		case '\r':
			if i+1 < len(buf) && buf[i+1] == '\n' {
				i++
			}
			lo.starts = append(lo.starts, i+1)
		}
	}
	return lo
}

// Complete reports whether the whole buffer was indexed.
func (lo *LineOffsets) Complete() bool {
	return lo.complete
}

// LineCount returns the number of indexed lines.
func (lo *LineOffsets) LineCount() int {
	return len(lo.starts)
}

// LineFromOffset converts an absolute offset to its 1-based line number.
// Offsets past the indexed region clamp to the last known line so partial
// scans still return usable context.
func (lo *LineOffsets) LineFromOffset(off int) int {
	idx := sort.Search(len(lo.starts), func(i int) bool {
		return lo.starts[i] > off
	})
	if idx < 1 {
		idx = 1
	}
	return idx
}

// LineStart returns the absolute offset of the 1-based line's first unit.
func (lo *LineOffsets) LineStart(line int) int {
	if line < 1 {
		line = 1
	}
	if line > len(lo.starts) {
		line = len(lo.starts)
	}
	return lo.starts[line-1]
}

// ColumnFromOffset converts an absolute offset to a 1-based column on the
// given line, measured in buffer units.
func (lo *LineOffsets) ColumnFromOffset(off, line int) int {
	col := off - lo.LineStart(line) + 1
	if col < 1 {
		col = 1
	}
	return col
}

// LineSpan returns the [start, end) range of the line's content within buf,
// excluding the trailing line break.
func LineSpan[T ~string | ~[]byte](lo *LineOffsets, buf T, line int) (int, int) {
	start := lo.LineStart(line)
	var end int
	if line < len(lo.starts) {
		end = lo.starts[line]
		// Walk back over the line break that terminated this line.
		if end > start && buf[end-1] == '\n' {
			end--
		}
		if end > start && buf[end-1] == '\r' {
			end--
		}
	} else {
		end = lo.size
	}
	if end < start {
		end = start
	}
	return start, end
}
