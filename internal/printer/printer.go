// Package printer formats command-line output with colour.
//
// Colour follows the fatih/color defaults: it is disabled when the output
// is not a terminal or NO_COLOR is set.
package printer

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes coloured lines to one destination.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Success prints a green line with a check mark.
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.w, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a yellow line.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.w, "! %s\n", fmt.Sprintf(format, a...))
}

// Failure prints a red line with a cross.
func (p *Printer) Failure(format string, a ...any) {
	red.Fprintf(p.w, "✗ %s\n", fmt.Sprintf(format, a...))
}

// Heading prints a cyan section title.
func (p *Printer) Heading(format string, a ...any) {
	cyan.Fprintf(p.w, "%s\n", fmt.Sprintf(format, a...))
}

// Field prints an indented key and its messages, one per line.
func (p *Printer) Field(key string, messages []string) {
	red.Fprintf(p.w, "  %s\n", key)
	for _, m := range messages {
		fmt.Fprintf(p.w, "    - %s\n", m)
	}
}

// Row prints an indented label with a faint detail column.
func (p *Printer) Row(label, detail string) {
	if detail == "" {
		fmt.Fprintf(p.w, "  %s\n", label)
		return
	}
	fmt.Fprintf(p.w, "  %-28s ", label)
	faint.Fprintf(p.w, "%s\n", detail)
}

// Println prints a plain line.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}
