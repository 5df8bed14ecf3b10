// Package render formats the chat transcript for the console.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/petasbytes/go-chat/internal/reply"
)

const defaultWidth = 80

// Options control how replies are rendered.
type Options struct {
	// Markdown renders replies as terminal Markdown instead of verbatim text.
	Markdown bool
	// Width is the wrap width for Markdown; 0 means defaultWidth.
	Width int
}

// Printer writes transcript lines to out and diagnostics to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	opts   Options

	you, ai, dim     lipgloss.Style
	ok, warn, danger lipgloss.Style
}

// New returns a Printer. Styles degrade to plain text when a writer is not a terminal.
func New(out, errOut io.Writer, opts Options) *Printer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	ro := lipgloss.NewRenderer(out)
	re := lipgloss.NewRenderer(errOut)
	return &Printer{
		out:    out,
		errOut: errOut,
		opts:   opts,
		you:    ro.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		ai:     ro.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		dim:    ro.NewStyle().Faint(true),
		ok:     ro.NewStyle().Foreground(lipgloss.Color("10")),
		warn:   re.NewStyle().Foreground(lipgloss.Color("214")),
		danger: re.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Terminal reports whether f is a terminal and its width.
func Terminal(f *os.File) (bool, int) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return false, 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return true, defaultWidth
	}
	return true, w
}

// Prompt echoes the user's prompt.
func (p *Printer) Prompt(prompt string) {
	fmt.Fprintf(p.out, "\n%s %s\n\n", p.you.Render("You:"), prompt)
}

// Answer prints the assistant's reply.
func (p *Printer) Answer(text string) {
	if !p.opts.Markdown {
		fmt.Fprintf(p.out, "%s %s\n\n", p.ai.Render("AI:"), text)
		return
	}
	rendered := markdown.Render(text, p.opts.Width, 0)
	fmt.Fprintf(p.out, "%s\n%s\n", p.ai.Render("AI:"), strings.TrimRight(string(rendered), "\n"))
	fmt.Fprintln(p.out)
}

// NoText reports a reply without extractable text, e.g. a tool-only reply.
func (p *Printer) NoText(r reply.Reply) {
	fmt.Fprintf(p.out, "%s %s\n", p.ai.Render("AI:"), p.warn.Render("No text content found in response"))
	fmt.Fprintln(p.out, p.dim.Render("Response ID: "+r.ID))
	if r.PreviousID != "" {
		fmt.Fprintln(p.out, p.dim.Render("Previous Response ID: "+r.PreviousID))
	}
}

// Cleared reports the outcome of a history reset.
func (p *Printer) Cleared(removed bool) {
	if removed {
		fmt.Fprintln(p.out, p.ok.Render("Conversation history cleared!"))
		return
	}
	fmt.Fprintln(p.out, p.dim.Render("No conversation history to clear."))
}

// Warning reports a non-fatal problem.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.errOut, p.warn.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Error reports a fatal problem, with optional hint lines.
func (p *Printer) Error(err error, hints ...string) {
	fmt.Fprintln(p.errOut, p.danger.Render("Error: "+err.Error()))
	for _, h := range hints {
		fmt.Fprintln(p.errOut, h)
	}
}
