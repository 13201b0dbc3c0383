package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	graphStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#49c2a5")).
			Padding(0, 1)
)

// ProgressBar renders horizon progress as a filled bar.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return StatusRunning.Render(strings.Repeat("█", filled)) +
		MetricLabel.Render(strings.Repeat("░", width-filled))
}

// saturationRamp maps a water saturation in [0,1] to a display rune,
// oil-heavy cells dark and water-swept cells bright.
var saturationRamp = []rune{'·', '░', '▒', '▓', '█'}

func saturationRune(sw float64) rune {
	if sw < 0 {
		sw = 0
	}
	if sw > 1 {
		sw = 1
	}
	idx := int(sw * float64(len(saturationRamp)-1))
	return saturationRamp[idx]
}
