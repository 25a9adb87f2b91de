// Package output formats CLI messages, coloring them when stdout is an
// interactive terminal and degrading to plain text under pipes and
// redirection.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiDim    = "\033[2m"
)

// Writer prints status lines to one destination.
type Writer struct {
	w     io.Writer
	color bool
}

// New builds a Writer. Color is enabled only when w is an *os.File
// attached to a terminal and NO_COLOR is unset.
func New(w io.Writer) *Writer {
	color := false
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{w: w, color: color}
}

func (o *Writer) paint(color, s string) string {
	if !o.color {
		return s
	}
	return color + s + ansiReset
}

// Status prints a plain line, optionally prefixed.
func (o *Writer) Status(prefix, msg string) {
	if prefix != "" {
		fmt.Fprintf(o.w, "%s %s\n", o.paint(ansiDim, prefix), msg)
		return
	}
	fmt.Fprintln(o.w, msg)
}

// Statusf is Status with formatting.
func (o *Writer) Statusf(prefix, format string, args ...any) {
	o.Status(prefix, fmt.Sprintf(format, args...))
}

// Success prints a green confirmation line.
func (o *Writer) Success(msg string) {
	fmt.Fprintln(o.w, o.paint(ansiGreen, "✓ "+msg))
}

// Successf is Success with formatting.
func (o *Writer) Successf(format string, args ...any) {
	o.Success(fmt.Sprintf(format, args...))
}

// Warningf prints a yellow warning line.
func (o *Writer) Warningf(format string, args ...any) {
	fmt.Fprintln(o.w, o.paint(ansiYellow, "! "+fmt.Sprintf(format, args...)))
}

// Errorf prints a red error line.
func (o *Writer) Errorf(format string, args ...any) {
	fmt.Fprintln(o.w, o.paint(ansiRed, "✗ "+fmt.Sprintf(format, args...)))
}
