package tui

import "github.com/charmbracelet/lipgloss"

// Theme keeps the monitor's colours in one place.
type Theme struct {
	StatusOK     lipgloss.Style
	StatusWarn   lipgloss.Style
	StatusFailed lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Dim    lipgloss.Style
	Doc    lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusWarn:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Doc: lipgloss.NewStyle().Margin(1, 2),
	}
}

// eventStyle colours an event line by its type.
func (t Theme) eventStyle(eventType string) lipgloss.Style {
	switch eventType {
	case "dispatch.failed", "queue.evicted":
		return t.StatusFailed
	case "dispatch.queued", "timer.scheduled":
		return t.StatusWarn
	case "dispatch.sent", "timer.restored":
		return t.StatusOK
	}
	return lipgloss.NewStyle()
}
