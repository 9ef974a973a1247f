// Package tui is the terminal monitor for a running bridge.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
)

const (
	pollInterval   = 2 * time.Second
	reconnectDelay = 3 * time.Second
	maxEventLog    = 50
	shownEvents    = 10
)

type streamState int

const (
	streamConnecting streamState = iota
	streamLive
	streamDown
)

// Model is the bubbletea model behind "vestabridge monitor".
type Model struct {
	client *apiClient
	clock  clock.Clock
	theme  Theme

	width  int
	height int

	metrics   metricsMsg
	haveStats bool
	timers    timersMsg
	eventLog  []events.Event
	hubEvents chan events.Event
	stream    streamState
	lastErr   error

	timerTable table.Model
}

func NewMonitor(apiURL, apiKey string, c clock.Clock) Model {
	if c == nil {
		c = clock.Real()
	}
	theme := NewDefaultTheme()

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Timer", Width: 30},
			{Title: "Restore", Width: 16},
			{Title: "Fires", Width: 10},
			{Title: "In", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		client:     newAPIClient(apiURL, apiKey),
		clock:      c,
		theme:      theme,
		hubEvents:  make(chan events.Event, 100),
		timerTable: t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.client.subscribeToEvents(m.hubEvents),
		receiveNextEvent(m.hubEvents),
		m.client.fetchMetrics,
		m.client.fetchTimers,
		m.tick(),
	)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, tea.Batch(m.client.fetchMetrics, m.client.fetchTimers)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.timerTable.SetWidth(m.width - 6)

	case tickMsg:
		return m, tea.Batch(m.client.fetchMetrics, m.client.fetchTimers, m.tick())

	case metricsMsg:
		m.metrics = msg
		m.haveStats = true
		m.lastErr = nil
		return m, nil

	case timersMsg:
		m.timers = msg
		m.timerTable.SetRows(m.timerRows())
		return m, nil

	case eventMsg:
		m.stream = streamLive
		m.eventLog = append([]events.Event{events.Event(msg)}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		cmds := []tea.Cmd{receiveNextEvent(m.hubEvents)}
		// Timer lifecycle changes the table; refresh it now rather than on
		// the next poll.
		if strings.HasPrefix(msg.Type, "timer.") {
			cmds = append(cmds, m.client.fetchTimers)
		}
		return m, tea.Batch(cmds...)

	case sseDisconnectedMsg:
		m.stream = streamDown
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		m.stream = streamConnecting
		return m, m.client.subscribeToEvents(m.hubEvents)

	case errMsg:
		m.lastErr = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.timerTable, cmd = m.timerTable.Update(msg)
	return m, cmd
}

func (m Model) timerRows() []table.Row {
	now := m.clock.Now()
	rows := make([]table.Row, 0, len(m.timers.ActiveTimers))
	for _, t := range m.timers.ActiveTimers {
		slot := t.Slot
		if slot == "" {
			slot = "-"
		}
		in := "restoring"
		if t.Pending {
			in = t.FireAt.Sub(now).Round(time.Second).String()
		}
		rows = append(rows, table.Row{
			t.ID,
			slot,
			t.FireAt.Local().Format("15:04:05"),
			in,
		})
	}
	return rows
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	inner := m.width - 4
	timers := m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render(fmt.Sprintf("Timers (%d)", m.timers.TotalCount)),
			m.timerTable.View(),
		),
	)
	eventsView := m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Event Stream"),
			m.renderEvents(),
		),
	)

	footer := " [q] Quit • [r] Refresh • [↑/↓] Scroll timers"
	if m.lastErr != nil {
		footer += "  " + m.theme.StatusFailed.Render(m.lastErr.Error())
	}

	return m.theme.Doc.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			timers,
			eventsView,
			m.theme.Dim.Render(footer),
		),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusWarn.Render("CONNECTING")
	switch {
	case m.haveStats && m.metrics.MQTTConnected:
		status = m.theme.StatusOK.Render("RUNNING")
	case m.haveStats:
		status = m.theme.StatusFailed.Render("BUS DOWN")
	}

	stream := m.theme.StatusWarn.Render("…")
	switch m.stream {
	case streamLive:
		stream = m.theme.StatusOK.Render("live")
	case streamDown:
		stream = m.theme.StatusFailed.Render("down")
	}

	d := m.metrics.Dispatch
	uptime := time.Duration(m.metrics.UptimeSeconds * float64(time.Second)).Round(time.Second)
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime),
		fmt.Sprintf("Board: %s / %dms", orDash(m.metrics.Transport), m.metrics.MinIntervalMs),
		fmt.Sprintf("Queue: %d", d.QueueDepth),
		fmt.Sprintf("Sent: %d direct, %d from queue, %d failed", d.Direct, d.Delivered, d.Failed),
		fmt.Sprintf("Events: %s", stream),
	}

	inner := m.width - 4
	cell := lipgloss.NewStyle().Width(inner / 3)
	row := func(a, b, c string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, cell.Render(a), cell.Render(b), cell.Render(c))
	}
	return m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			row(items[0], items[1], items[2]),
			row(items[3], items[4], items[5]),
		),
	)
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= shownEvents {
			break
		}
		ts := e.At.Local().Format("15:04:05")
		typ := m.theme.eventStyle(e.Type).Render(fmt.Sprintf("%-16s", e.Type))
		lines = append(lines, fmt.Sprintf("%s | %s | %s", ts, typ, string(e.Data)))
	}
	if len(lines) == 0 {
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Run starts the monitor full-screen and blocks until the user quits.
func Run(apiURL, apiKey string) error {
	p := tea.NewProgram(NewMonitor(apiURL, apiKey, nil), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
