package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.currentTime = time.Time(msg)
		m.snapshot = m.screen.Controller().Snapshot()
		return m, tickCmd()

	case resultMsg:
		m.snapshot = m.screen.Controller().Snapshot()
		if msg.err != nil {
			m.message = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
			m.messageErr = true
		} else {
			m.message = msg.op + " done"
			m.messageErr = false
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.message = "working..."
			m.messageErr = false
			return m, m.toggleCmd()
		}
	}
	return m, nil
}
