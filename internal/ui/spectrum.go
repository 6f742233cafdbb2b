package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var blocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Level meter colours from low to high intensity
var meterColors = []lipgloss.Color{
	lipgloss.Color("#1B5E20"),
	lipgloss.Color("#2E7D32"),
	lipgloss.Color("#3DDC84"),
	lipgloss.Color("#C0CA33"),
	lipgloss.Color("#FFB000"),
	lipgloss.Color("#FB8C00"),
	lipgloss.Color("#F4511E"),
	lipgloss.Color("#E5484D"),
}

// RenderSpectrum draws bar heights as two rows of block characters no
// wider than width. Heights are normalised to the tallest bar.
func RenderSpectrum(barHeights []float64, width int) string {
	if len(barHeights) == 0 || width <= 0 {
		return ""
	}

	// Sample bars to fit width
	stride := max(1, len(barHeights)/width)

	maxHeight := 0.0
	for _, h := range barHeights {
		maxHeight = max(maxHeight, h)
	}
	if maxHeight == 0 {
		maxHeight = 1.0
	}

	display := make([]float64, 0, width)
	for i := 0; i < len(barHeights) && len(display) < width; i += stride {
		display = append(display, barHeights[i]/maxHeight)
	}

	var result strings.Builder

	// Top row only shows the portion above 0.5
	for _, h := range display {
		if h > 0.5 {
			result.WriteString(block(h, (h-0.5)*2))
		} else {
			result.WriteString(" ")
		}
	}
	result.WriteString("\n")

	for _, h := range display {
		fill := min(1, h*2)
		result.WriteString(block(h, fill))
	}

	return result.String()
}

// block renders the block glyph for fill in [0, 1], coloured by height.
func block(height, fill float64) string {
	idx := min(len(blocks)-1, max(0, int(fill*float64(len(blocks)-1))))
	colorIdx := min(len(meterColors)-1, max(0, int(height*float64(len(meterColors)-1))))
	return lipgloss.NewStyle().Foreground(meterColors[colorIdx]).Render(string(blocks[idx]))
}
