package cliui

import (
	"fmt"
	"io"
	"time"

	"github.com/papercomputeco/bpmnchat/pkg/payload"
	"github.com/papercomputeco/bpmnchat/pkg/session"
)

const (
	typingIndicator = "System is typing..."
	clearLine       = "\r\033[K"
)

// Terminal is a session.Display that writes to a terminal or a plain
// stream. Styled output draws the typing indicator and re-renders the
// finished reply as markdown; plain output only writes the raw reply and
// the notices, which keeps it usable in pipes.
type Terminal struct {
	w        io.Writer
	styled   bool
	reasoner bool
	now      func() time.Time
	render   func(string) (string, error)

	start     time.Time
	indicator bool
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithStyled enables the indicator and markdown re-rendering.
func WithStyled(styled bool) TerminalOption {
	return func(t *Terminal) { t.styled = styled }
}

// WithReasoner shows the reasoning title while streaming and fences the
// payload when the reply is finished.
func WithReasoner(reasoner bool) TerminalOption {
	return func(t *Terminal) { t.reasoner = reasoner }
}

// WithTerminalClock replaces time.Now for reply timing.
func WithTerminalClock(now func() time.Time) TerminalOption {
	return func(t *Terminal) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMarkdownRenderer replaces the glamour renderer.
func WithMarkdownRenderer(fn func(string) (string, error)) TerminalOption {
	return func(t *Terminal) {
		if fn != nil {
			t.render = fn
		}
	}
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		w:      w,
		now:    time.Now,
		render: RenderMarkdown,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ session.Display = (*Terminal)(nil)

// Pending implements session.Display.
func (t *Terminal) Pending() {
	t.start = t.now()
	if t.styled {
		fmt.Fprint(t.w, "  "+DimStyle.Render(typingIndicator))
		t.indicator = true
	}
}

// Streaming implements session.Display.
func (t *Terminal) Streaming() {
	t.clearIndicator()
	fmt.Fprintln(t.w, HeaderStyle.Render("System"))
	if t.reasoner {
		fmt.Fprintln(t.w, DimStyle.Render(ReasoningTitle))
	}
}

// Append implements session.Display.
func (t *Terminal) Append(chunk string) {
	fmt.Fprint(t.w, chunk)
}

// Final implements session.Display.
func (t *Terminal) Final(c payload.Classified) {
	t.clearIndicator()
	fmt.Fprintln(t.w)

	if t.styled && (c.Reasoning != "" || c.HasPayload()) {
		out, err := t.render(ReplyMarkdown(c, t.reasoner))
		if err != nil {
			out = ReplyMarkdown(c, t.reasoner)
		}
		fmt.Fprintln(t.w, DimStyle.Render("─────"))
		fmt.Fprint(t.w, out)
	}

	fmt.Fprintln(t.w, "  "+DimStyle.Render(FormatReplyTime(t.now().Sub(t.start))))
}

// Notify implements session.Display.
func (t *Terminal) Notify(n session.Notice) {
	t.clearIndicator()
	fmt.Fprintln(t.w, RenderNotice(n))
}

// Abort implements session.Display.
func (t *Terminal) Abort(error) {
	t.clearIndicator()
}

func (t *Terminal) clearIndicator() {
	if t.indicator {
		fmt.Fprint(t.w, clearLine)
		t.indicator = false
	}
}
