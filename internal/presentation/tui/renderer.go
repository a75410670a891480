// Package tui renders assistant output for terminals.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// Printer writes workflow progress and replies. Markdown is rendered with
// glamour only when the writer is a terminal.
type Printer struct {
	w        io.Writer
	out      *termenv.Output
	markdown *glamour.TermRenderer
}

// NewPrinter inspects w to decide between styled and plain output.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w, out: termenv.NewOutput(w)}

	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		p.out = termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
		return p
	}

	width := defaultWidth
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
		width = cols
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
		glamour.WithEmoji(),
	)
	if err == nil {
		p.markdown = r
	}
	return p
}

// Styled reports whether output goes to a terminal.
func (p *Printer) Styled() bool { return p.markdown != nil }

// Step prints one workflow step.
func (p *Printer) Step(s domain.Step) {
	node := p.out.String(s.Node).Bold().Foreground(p.out.Color("#22d3ee"))
	msg := ""
	if n := len(s.Update.Messages); n > 0 {
		msg = s.Update.Messages[n-1].Content
	}
	if msg == "" {
		fmt.Fprintf(p.w, "▸ %s\n", node)
		return
	}
	first, _, _ := strings.Cut(msg, "\n")
	fmt.Fprintf(p.w, "▸ %s %s\n", node, p.out.String(first).Faint())
}

// Reply prints the final answer.
func (p *Printer) Reply(text string) {
	if p.markdown != nil {
		if rendered, err := p.markdown.Render(text); err == nil {
			fmt.Fprint(p.w, rendered)
			return
		}
	}
	fmt.Fprintln(p.w, text)
}

// Error prints a failure.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.w, p.out.String("✗ "+err.Error()).Foreground(p.out.Color("#f87171")))
}
