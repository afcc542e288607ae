package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles used for command output
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Table   lipgloss.Style
	Cell    lipgloss.Style
}

// NewStyles builds styles for w. mode "never" strips all escapes, "always"
// forces ANSI colors, anything else detects the terminal.
func NewStyles(w io.Writer, mode string) Styles {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case "never":
		r.SetColorProfile(termenv.Ascii)
	case "always":
		r.SetColorProfile(termenv.ANSI256)
	}

	return Styles{
		Heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Label:   r.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")),
		Table:   r.NewStyle().PaddingLeft(2),
		Cell:    r.NewStyle().Padding(0, 1),
	}
}
