// Package display renders search results and progress for the console
// host. ANSI colors are applied only when the destination is a terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/grepwin/internal/models"
)

// Printer writes per-file results as a "path: N match(es) [ENC]" header
// followed by one "line: text" row per matched line.
type Printer struct {
	writer    io.Writer
	useColor  bool
	showLines bool
}

// NewPrinter creates a Printer. showLines controls whether matched line
// texts are printed under each file.
func NewPrinter(w io.Writer, showLines bool) *Printer {
	return &Printer{
		writer:    w,
		useColor:  writerIsTerminal(w),
		showLines: showLines,
	}
}

// writerIsTerminal reports whether w is an interactive terminal.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintResult writes one file result.
func (p *Printer) PrintResult(res *models.FileResult) {
	if res == nil {
		return
	}

	switch {
	case res.ReadError:
		p.printPathStatus(res.Path, "read error", color.FgRed)
		return
	case res.ExceptionText != "":
		p.printPathStatus(res.Path, res.ExceptionText, color.FgYellow)
		return
	case res.IsFolder:
		fmt.Fprintf(p.writer, "%s%c\n", p.paint(res.Path, color.Bold), os.PathSeparator)
		return
	}

	header := fmt.Sprintf("%s: %d match(es) [%s]", res.Path, res.MatchCount, res.Encoding)
	fmt.Fprintln(p.writer, p.paint(header, color.Bold))

	if !p.showLines {
		return
	}
	for _, line := range dedupedLines(res) {
		text := strings.TrimRight(res.LineTexts[line], "\r\n")
		num := p.paint(fmt.Sprintf("%6d", line), color.FgCyan)
		fmt.Fprintf(p.writer, "%s: %s\n", num, text)
	}
}

// dedupedLines returns the sorted set of distinct lines a result touched.
func dedupedLines(res *models.FileResult) []int {
	lines := make([]int, 0, len(res.LineTexts))
	for line := range res.LineTexts {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// printPathStatus writes "path: status" with the status colorized.
func (p *Printer) printPathStatus(path, status string, attr color.Attribute) {
	fmt.Fprintf(p.writer, "%s: %s\n", path, p.paint(status, attr))
}

// paint applies a color attribute when color output is enabled.
func (p *Printer) paint(s string, attr color.Attribute) string {
	if !p.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

// PrintInventory writes counting-mode entries (one path per line).
func (p *Printer) PrintInventory(res *models.FileResult) {
	if res == nil {
		return
	}
	if res.IsFolder {
		fmt.Fprintf(p.writer, "%s%c\n", res.Path, os.PathSeparator)
		return
	}
	fmt.Fprintln(p.writer, res.Path)
}
