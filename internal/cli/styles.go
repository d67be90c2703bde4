package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agritrace/collection-model/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// renderStatus colors a job status for table output.
func renderStatus(status models.JobStatus) string {
	switch status {
	case models.JobStatusCompleted:
		return defaultTheme.successStyle().Render(string(status))
	case models.JobStatusFailed:
		return defaultTheme.errorStyle().Render(string(status))
	case models.JobStatusQueued:
		return defaultTheme.hintStyle().Render(string(status))
	default:
		return defaultTheme.statusStyle().Render(string(status))
	}
}
