// ABOUTME: Bubbletea model for the bridge status display
// ABOUTME: Shows the stream, the lock state and drift correction of one session
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sendspin/sendspin-bridge/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// errorScale is the delay error in frames that fills the error bar
const errorScale = 16

// StatusMsg carries a session snapshot into the model
type StatusMsg session.Status

type tickMsg time.Time

// Model is the display state
type Model struct {
	name      string
	role      string
	status    session.Status
	updated   time.Time
	started   time.Time
	sessions  int
	showStats bool
	quitting  bool
	quitChan  chan struct{}
}

// NewModel creates a model for a bridge of the given role. quit may be nil.
func NewModel(name, role string, quit chan struct{}) Model {
	return Model{
		name:     name,
		role:     role,
		started:  time.Now(),
		quitChan: quit,
	}
}

// Init starts the clock tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(session.Status(msg))
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "s":
		m.showStats = !m.showStats
	}
	return m, nil
}

func (m *Model) applyStatus(s session.Status) {
	if s.Session != m.status.Session {
		m.sessions++
	}
	m.status = s
	m.updated = time.Now()
}

// View renders the display
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	title := "Bridge " + m.role
	if m.name != "" {
		title += ": " + m.name
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	field(&b, "Uptime", time.Since(m.started).Round(time.Second).String())
	if m.status.Session == "" {
		b.WriteString(valueStyle.Render("Waiting for a stream..."))
		b.WriteString("\n")
	} else {
		m.renderStream(&b)
	}
	if m.showStats {
		m.renderStats(&b)
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("s: statistics  q: quit"))
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderStream(b *strings.Builder) {
	s := m.status
	field(b, "Peer", s.Peer)
	field(b, "Stream", fmt.Sprintf("%d chan, %d Hz, %d frames, %s", s.Channels, s.Rate, s.Period, s.Format))
	b.WriteString(headerStyle.Render("State: "))
	b.WriteString(stateStyle(s.State).Render(s.State))
	b.WriteString("\n")
	if s.Role == session.RoleReceiver {
		field(b, "Ratio", fmt.Sprintf("%.6f (%+.1f ppm)", s.Ratio, (s.Ratio-1)*1e6))
		field(b, "Error", fmt.Sprintf("%s %+.2f frames", renderErrorBar(s.Error, 21), s.Error))
		field(b, "Queue", fmt.Sprintf("%d frames", s.Frames))
	}
}

func (m Model) renderStats(b *strings.Builder) {
	s := m.status
	b.WriteString("\n")
	field(b, "Sessions", fmt.Sprintf("%d", m.sessions))
	field(b, "Packets", fmt.Sprintf("%d", s.Packets))
	switch s.Role {
	case session.RoleReceiver:
		field(b, "Syncs", fmt.Sprintf("%d", s.Syncs))
		field(b, "Lost", fmt.Sprintf("%d frames", s.LostFrames))
		field(b, "Dropped", fmt.Sprintf("%d stale, %d invalid", s.Stale, s.Invalid))
	case session.RoleSender:
		field(b, "Descriptors", fmt.Sprintf("%d", s.Descriptors))
		field(b, "Send errors", fmt.Sprintf("%d", s.SendErrors))
	}
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "proc2", "send":
		return goodStyle
	case "fatal", "term", "txend":
		return badStyle
	}
	return warnStyle
}

// renderErrorBar draws the delay error as a marker on a centred scale
func renderErrorBar(err float64, width int) string {
	mid := width / 2
	pos := mid + int(err/errorScale*float64(mid))
	pos = max(0, min(width-1, pos))
	bar := make([]rune, width)
	for i := range bar {
		switch {
		case i == pos:
			bar[i] = '█'
		case i == mid:
			bar[i] = '│'
		default:
			bar[i] = '░'
		}
	}
	return string(bar)
}
