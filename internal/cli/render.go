package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// Renderer prints transcript entries to a terminal. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	md    *glamour.TermRenderer
	plain bool

	user    lipgloss.Style
	system  lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	pending lipgloss.Style
	muted   lipgloss.Style
}

// NewRenderer creates a renderer. Plain output skips ANSI styling.
func NewRenderer(out io.Writer, width int, plain bool) (*Renderer, error) {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}

	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	r := &Renderer{
		out:     out,
		md:      md,
		plain:   plain,
		user:    badge.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("27")),
		system:  badge.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240")),
		ok:      badge.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("28")),
		failed:  badge.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")),
		pending: badge.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
	return r, nil
}

// Badge returns the status label for an entry.
func Badge(e domain.Entry) string {
	switch {
	case e.Role == domain.RoleUser:
		return "YOU"
	case e.Role == domain.RoleSystem:
		return "SYSTEM"
	case e.Status == domain.StatusPending:
		return "PENDING"
	case e.Status == domain.StatusResolvedError:
		return "ERROR"
	default:
		return "ORACLE"
	}
}

func (r *Renderer) badgeStyle(e domain.Entry) lipgloss.Style {
	switch Badge(e) {
	case "YOU":
		return r.user
	case "SYSTEM":
		return r.system
	case "PENDING":
		return r.pending
	case "ERROR":
		return r.failed
	default:
		return r.ok
	}
}

// Entry prints one transcript entry.
func (r *Renderer) Entry(e domain.Entry) error {
	label := Badge(e)
	if e.Kind != "" {
		label += " " + string(e.Kind)
	}

	var header string
	if r.plain {
		header = "[" + label + "]"
	} else {
		header = r.badgeStyle(e).Render(label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	body := e.Text
	if e.Role != domain.RoleUser && e.Status != domain.StatusPending {
		if rendered, err := r.md.Render(e.Text); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}
	_, err := fmt.Fprintf(r.out, "%s\n%s\n\n", header, body)
	return err
}

// Note prints a muted informational line.
func (r *Renderer) Note(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if !r.plain {
		line = r.muted.Render(line)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}
