package base

import "github.com/charmbracelet/lipgloss"

// ColorPalette defines a consistent color scheme
type ColorPalette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DarkPalette is the default palette.
var DarkPalette = ColorPalette{
	Primary:   lipgloss.Color("#7C3AED"), // Purple
	Secondary: lipgloss.Color("#06B6D4"), // Cyan
	Accent:    lipgloss.Color("#10B981"), // Emerald
	Success:   lipgloss.Color("#10B981"),
	Warning:   lipgloss.Color("#F59E0B"), // Amber
	Error:     lipgloss.Color("#EF4444"), // Red
	Muted:     lipgloss.Color("#94A3B8"), // Slate
}

// ProgressGradient returns the two colors of the progress bar fill.
func (p ColorPalette) ProgressGradient() (string, string) {
	return string(p.Primary), string(p.Secondary)
}

// Severity picks the color for an execution outcome: spilled runs warn,
// failed runs use Error.
func (p ColorPalette) Severity(failed, spilled bool) lipgloss.Color {
	switch {
	case failed:
		return p.Error
	case spilled:
		return p.Warning
	default:
		return p.Success
	}
}
