package cli

import "github.com/charmbracelet/lipgloss"

// Signal colour palette
// Shared colours for consistent branding across CLI and TUI, cool to hot
// like a level meter
var (
	SignalGreen = lipgloss.Color("#3DDC84") // Nominal level
	SignalAmber = lipgloss.Color("#FFB000") // Approaching peak
	SignalRed   = lipgloss.Color("#E5484D") // Clipping
	SignalBlue  = lipgloss.Color("#4EA8DE") // Headings

	// Accent colours
	SteelGray = lipgloss.Color("#8B9BB4") // Subtle text
)
