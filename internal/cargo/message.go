// Package cargo prints status lines that look like cargo's own, so that
// verification progress blends into a normal build log.
package cargo

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Level selects the banner color.
type Level int

const (
	// Note is a bold green banner.
	Note Level = iota
	// Error is a bold red banner.
	Error
)

var (
	noteBanner  = color.New(color.Bold, color.FgHiGreen)
	errorBanner = color.New(color.Bold, color.FgHiRed)
)

// Printer writes cargo-style status lines.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w. A nil w means os.Stdout.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

// Message prints banner right-aligned to cargo's 12 column gutter,
// followed by msg.
func (p *Printer) Message(level Level, banner, msg string) {
	c := noteBanner
	if level == Error {
		c = errorBanner
	}
	// Pad before coloring; escape codes would otherwise count as width.
	fmt.Fprintf(p.w, "%s %s\n", c.Sprint(fmt.Sprintf("%12s", banner)), msg)
}

// SetColor applies a cargo color choice ("auto", "always" or "never").
// Output is usually captured by cargo rather than attached to a terminal,
// so anything other than "auto" or "never" forces color on.
func SetColor(choice string) {
	switch choice {
	case "never":
		color.NoColor = true
	case "auto":
	default:
		color.NoColor = false
	}
}

// PrintError writes err the way cargo reports fatal errors.
func PrintError(w io.Writer, err error) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "%s %v\n", errorBanner.Sprint("error:"), err)
}
