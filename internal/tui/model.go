// Package tui is a terminal front end for a shutter Screen.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zoobzio/shutter"
)

// refreshInterval is how often the status line is refreshed.
const refreshInterval = 250 * time.Millisecond

type tickMsg time.Time

// resultMsg carries the outcome of a controller operation.
type resultMsg struct {
	op  string
	err error
}

// Model is the bubbletea model. It shows the controller's state, whether it
// is recording and the last error. r toggles recording, q quits.
type Model struct {
	screen *shutter.Screen

	snapshot    shutter.Snapshot
	message     string
	messageErr  bool
	currentTime time.Time
	width       int
}

// New creates a Model driving screen.
func New(screen *shutter.Screen) Model {
	return Model{
		screen:      screen,
		snapshot:    screen.Controller().Snapshot(),
		currentTime: time.Now(),
		width:       60,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// toggleCmd toggles recording and waits for the outcome.
func (m Model) toggleCmd() tea.Cmd {
	op := shutter.OpStartRecording
	if m.screen.Recording() {
		op = shutter.OpStopRecording
	}
	f := m.screen.ToggleRecording()
	return func() tea.Msg {
		return resultMsg{op: op, err: f.Wait(context.Background())}
	}
}
