package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 24

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	hostStyle = lipgloss.NewStyle().
			Width(32)

	timeStyle = lipgloss.NewStyle().
			Width(10).
			Align(lipgloss.Right)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

func title(s Summary) string {
	switch s.Period {
	case PeriodToday:
		return "Day " + s.Key
	case PeriodWeek:
		return "Week of " + s.Key
	default:
		return "All time"
	}
}

// Render draws s as a boxed table with one proportional bar per site.
func Render(s Summary) string {
	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title(s)),
		statStyle.Render(fmt.Sprintf("Total %s across %d sites", s.Total, s.Sites)),
	)

	if len(s.Rows) == 0 {
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", "No data yet"))
	}

	lines := make([]string, 0, len(s.Rows)+1)
	for _, row := range s.Rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			hostStyle.Render(truncate(row.Host, 30)),
			timeStyle.Render(row.Time),
			"  ",
			barStyle.Render(bar(row.Share)),
		))
	}
	if s.Truncated > 0 {
		lines = append(lines, statStyle.Render(fmt.Sprintf("... and %d more", s.Truncated)))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body))
}

func bar(share float64) string {
	filled := int(share*barWidth + 0.5)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
