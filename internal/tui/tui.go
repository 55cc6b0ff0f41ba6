// Package tui renders the connect control and the balance in the terminal.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/validation"
)

// Backend is the application the UI drives.
type Backend interface {
	models.BursaI
	Subscribe() (<-chan models.View, func())
}

var (
	cActivating = lipgloss.Color("#FFA500")
	cConnected  = lipgloss.Color("#22C55E")
	cMuted      = lipgloss.Color("#6B7280")
	cWarn       = lipgloss.Color("#EF4444")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	errorStyle = lipgloss.NewStyle().Foreground(cWarn).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(cMuted)
)

type viewMsg models.View

type feedClosedMsg struct{}

// waitForView blocks on the next published view.
func waitForView(views <-chan models.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return feedClosedMsg{}
		}
		return viewMsg(v)
	}
}

type Model struct {
	backend     Backend
	views       <-chan models.View
	unsubscribe func()

	spin spinner.Model
	view models.View
	// notice is the outcome of the last key press that did nothing
	notice string
}

// New subscribes to the backend. Call Close once the program has exited.
func New(backend Backend) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(cActivating)

	views, unsubscribe := backend.Subscribe()
	return &Model{
		backend:     backend,
		views:       views,
		unsubscribe: unsubscribe,
		spin:        sp,
		view:        backend.View(),
	}
}

// Close drops the view subscription.
func (m *Model) Close() {
	m.unsubscribe()
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForView(m.views))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter", "c", " ":
			m.connect()
		case "d":
			m.disconnect()
		}
		return m, nil

	case viewMsg:
		m.view = models.View(msg)
		return m, waitForView(m.views)

	case feedClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// connect presses the control. Connect publishes the activating view before
// it returns, so the spinner shows on this very frame.
func (m *Model) connect() {
	m.notice = ""
	if m.view.Disabled {
		return
	}
	if err := m.backend.Connect(); err != nil {
		m.notice = err.Error()
	}
	m.view = m.backend.View()
}

func (m *Model) disconnect() {
	m.notice = ""
	if err := m.backend.Disconnect(); err != nil {
		m.notice = err.Error()
	}
	m.view = m.backend.View()
}

func (m *Model) View() string {
	return Render(m.view, m.spin.View(), m.notice)
}

// Render draws a view. frame is the current spinner frame.
func Render(v models.View, frame, notice string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("bursa"))
	sb.WriteString("\n\n")
	sb.WriteString(renderButton(v, frame))
	sb.WriteString("\n")

	if v.Account != "" {
		account := "account " + validation.ShortenAddress(v.Account)
		if v.Network != "" {
			account += " on " + v.Network
		}
		sb.WriteString(helpStyle.Render(account))
		sb.WriteString("\n")
	}
	sb.WriteString(renderBalance(v.Balance))
	sb.WriteString("\n")

	if v.Error != "" {
		sb.WriteString(errorStyle.Render(v.Error))
		sb.WriteString("\n")
	}
	if notice != "" {
		sb.WriteString(helpStyle.Render(notice))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(help(v)))
	return sb.String()
}

func renderButton(v models.View, frame string) string {
	style := buttonStyle
	label := v.Connector
	switch v.Status {
	case "activating":
		style = style.BorderForeground(cActivating)
		label = frame + " " + label
	case "connected":
		style = style.BorderForeground(cConnected)
		label = "✅ " + label
	}
	if v.Disabled {
		style = style.Faint(true)
	}
	return style.Render(label)
}

func renderBalance(balance string) string {
	return "Balance 💰 " + balance
}

func help(v models.View) string {
	keys := []string{}
	if !v.Disabled {
		keys = append(keys, "enter connect")
	}
	if v.Status == "connected" || v.Error != "" {
		keys = append(keys, "d disconnect")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " • ")
}
