package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLinesMixedEndings(t *testing.T) {
	// Lines: "a" (LF), "b" (CRLF), "c" (CR), "d" (no terminator)
	buf := "a\nb\r\nc\rd"
	lo := CalculateLines(buf, nil)

	assert.True(t, lo.Complete())
	assert.Equal(t, 4, lo.LineCount())

	assert.Equal(t, 1, lo.LineFromOffset(0)) // 'a'
	assert.Equal(t, 2, lo.LineFromOffset(2)) // 'b'
	assert.Equal(t, 3, lo.LineFromOffset(5)) // 'c'
	assert.Equal(t, 4, lo.LineFromOffset(7)) // 'd'
}

func TestLineFromOffsetOnBreakCharacters(t *testing.T) {
	buf := "ab\ncd"
	lo := CalculateLines(buf, nil)

	// The newline itself still belongs to line 1.
	assert.Equal(t, 1, lo.LineFromOffset(2))
	assert.Equal(t, 2, lo.LineFromOffset(3))
}

func TestColumnFromOffset(t *testing.T) {
	buf := "hello\nworld"
	lo := CalculateLines(buf, nil)

	assert.Equal(t, 1, lo.ColumnFromOffset(0, 1))
	assert.Equal(t, 5, lo.ColumnFromOffset(4, 1))
	assert.Equal(t, 1, lo.ColumnFromOffset(6, 2))
	assert.Equal(t, 3, lo.ColumnFromOffset(8, 2))
}

func TestLineSpan(t *testing.T) {
	buf := "aa\r\nbb\ncc"
	lo := CalculateLines(buf, nil)

	s, e := LineSpan(lo, buf, 1)
	assert.Equal(t, "aa", buf[s:e])
	s, e = LineSpan(lo, buf, 2)
	assert.Equal(t, "bb", buf[s:e])
	s, e = LineSpan(lo, buf, 3)
	assert.Equal(t, "cc", buf[s:e])
}

func TestLineSpanEmptyLines(t *testing.T) {
	buf := "\n\nx"
	lo := CalculateLines(buf, nil)

	assert.Equal(t, 3, lo.LineCount())
	s, e := LineSpan(lo, buf, 1)
	assert.Equal(t, s, e)
	s, e = LineSpan(lo, buf, 2)
	assert.Equal(t, s, e)
}

func TestCalculateLinesOnBytes(t *testing.T) {
	buf := []byte("x\ny\n")
	lo := CalculateLines(buf, nil)
	assert.Equal(t, 1, lo.LineFromOffset(0))
	assert.Equal(t, 2, lo.LineFromOffset(2))
}

func TestLineFromOffsetClampsPastEnd(t *testing.T) {
	buf := "one\ntwo"
	lo := CalculateLines(buf, nil)
	assert.Equal(t, 2, lo.LineFromOffset(1000))
}
