// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it session snapshots
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-bridge/internal/session"
)

// TUI runs the status display. It is a session.Observer.
type TUI struct {
	program  *tea.Program
	updates  chan session.Status
	quitChan chan struct{}
}

// New creates a display for a bridge of the given role
func New(name, role string) *TUI {
	t := &TUI{
		updates:  make(chan session.Status, 10),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(name, role, t.quitChan), tea.WithAltScreen())
	return t
}

// Run shows the display until the user quits or Stop is called
func (t *TUI) Run() error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case s := <-t.updates:
				t.program.Send(StatusMsg(s))
			case <-done:
				return
			}
		}
	}()
	_, err := t.program.Run()
	return err
}

// Observe implements session.Observer
func (t *TUI) Observe(s session.Status) {
	select {
	case t.updates <- s:
	default:
		// Don't block if channel is full
	}
}

// QuitChan is signalled when the user asks to quit
func (t *TUI) QuitChan() <-chan struct{} { return t.quitChan }

// Stop ends the display
func (t *TUI) Stop() {
	t.program.Quit()
}
