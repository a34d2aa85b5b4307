// Package styles holds the palette and lipgloss styles shared by payq's
// terminal output. Colors follow action state: blue waits, yellow retries,
// red needs an operator, green is done.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	White   = lipgloss.Color("#E2E2E2")
	Gray    = lipgloss.Color("#888888")
	Muted   = lipgloss.Color("#555555")
	DimGray = lipgloss.Color("#444444")
	Blue    = lipgloss.Color("#5FAFFF")
	Green   = lipgloss.Color("#5FD787")
	Yellow  = lipgloss.Color("#FFD787")
	Red     = lipgloss.Color("#FF8787")
)

var (
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	Value = lipgloss.NewStyle().
		Foreground(White)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(Gray).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Foreground(White).
			Padding(0, 1)

	TableBorder = lipgloss.NewStyle().
			Foreground(DimGray)
)

// Action states shown in queue listings.
const (
	StatePending  = "pending"
	StateRetrying = "retrying"
	StateBroken   = "broken"
	StateDone     = "done"
)

// StateStyle returns the style for an action state.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case StateDone:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case StatePending:
		return lipgloss.NewStyle().Foreground(Blue)
	case StateRetrying:
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	case StateBroken:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// StatusStyle returns the style for an order status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "error":
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	case "processing", "pending":
		return lipgloss.NewStyle().Foreground(Yellow)
	case "complete", "completed", "shipped":
		return lipgloss.NewStyle().Foreground(Green)
	case "canceled", "cancelled", "closed":
		return lipgloss.NewStyle().Foreground(Muted)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// Badge renders a dot and the text in the style for state.
func Badge(state string) string {
	style := StateStyle(state)
	return style.Render("●") + " " + style.Render(state)
}

// StatusIndicator renders a dot and the order status in its color.
func StatusIndicator(status string) string {
	style := StatusStyle(status)
	return style.Render("●") + " " + style.Render(status)
}
