// Package printer writes manager notifications as one line each, for the
// headless tail command.
package printer

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/theme"
)

// Printer is a client.Notifier that renders to an io.Writer.
type Printer struct {
	out   io.Writer
	color bool
	now   func() time.Time
}

// New creates a printer. With color false the output is plain text.
func New(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color, now: time.Now}
}

// Notify writes n as a single line.
func (p *Printer) Notify(n client.Notification) {
	ts := p.now().Format(time.TimeOnly)
	var tag, body string
	var color lipgloss.Color
	switch n.Type {
	case client.NoteStatus:
		tag, body, color = "status", n.Status, theme.StateColor(n.State.String())
	case client.NoteError:
		tag, body, color = "error", "Error: "+n.Err.Error(), theme.ColorDanger
	case client.NoteEvent:
		tag, body, color = n.Event.Kind.String(), n.Event.Raw, theme.KindColor(n.Event.Kind.String())
	default:
		return
	}

	label := fmt.Sprintf("%-11s", tag)
	if p.color {
		label = lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)
	}
	fmt.Fprintf(p.out, "%s %s %s\n", ts, label, body)
}
