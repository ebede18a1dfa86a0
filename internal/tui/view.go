package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		"shutter",
		lipgloss.NewStyle().
			Width(max(m.width-12, 0)).
			Align(lipgloss.Right).
			Render(m.currentTime.Format("15:04:05")),
	)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  state:     %s\n", m.snapshot.State)
	if m.snapshot.Recording {
		b.WriteString("  recording: " + recordingStyle.Render("● REC") + "\n")
	} else {
		b.WriteString("  recording: no\n")
	}
	if d := m.snapshot.Destination; d != nil {
		fmt.Fprintf(&b, "  output:    %s\n", d.DisplayName)
	}
	if err := m.snapshot.LastError; err != nil {
		b.WriteString("  error:     " + errorStyle.Render(err.Error()) + "\n")
	}

	if m.message != "" {
		b.WriteString("\n  ")
		if m.messageErr {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(m.message)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + helpStyle.Render("  r: start/stop recording • q: quit") + "\n")
	return b.String()
}
