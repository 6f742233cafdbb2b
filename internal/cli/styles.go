package cli

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// AppName is shown in banners and help
const AppName = "drcodec"

// AppDescription is the one-line summary shown under the name
const AppDescription = "Decode, seek, verify and inspect FLAC, MP3 and WAV audio."

var white = lipgloss.Color("#FFFFFF")

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(SignalBlue).MarginBottom(1)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(SignalAmber).MarginTop(1)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(SignalGreen)
	WarningStyle = lipgloss.NewStyle().Bold(true).Foreground(SignalAmber)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(SignalRed)
	KeyStyle     = lipgloss.NewStyle().Foreground(SteelGray)
	ValueStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)

	// Framed summaries after a long-running command
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SignalBlue).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintVersion prints the program name and version
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render(AppName))
	PrintInfo("Version", version)
	fmt.Println()
}

// PrintError writes message to stderr
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), message)
}

func PrintWarning(message string) {
	fmt.Println(WarningStyle.Render("Warning:"), message)
}

func PrintSuccess(message string) {
	fmt.Println(SuccessStyle.Render("✓"), message)
}

// PrintInfo prints one key: value line
func PrintInfo(key, value string) {
	fmt.Println(KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

func PrintSection(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// FormatDuration shows short spans in milliseconds, and anything from a
// minute up as m:ss.s
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}

// FormatSpeed formats a multiple of real time
func FormatSpeed(speed float64) string {
	return fmt.Sprintf("%.1fx realtime", speed)
}

// FormatBytes uses binary units
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	units := "KMGTPE"
	i := -1
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %cB", value, units[i])
}

// FormatLevel formats a dBFS level, showing silence as -inf
func FormatLevel(db float64) string {
	if math.IsInf(db, -1) || db < -999 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.2f dBFS", db)
}

func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// PrintDecodeSummary prints the result of a decode in a box
func PrintDecodeSummary(output, duration, speed, size, frames string) {
	rows := [][2]string{
		{"Output", output},
		{"Duration", duration},
		{"Speed", speed},
		{"File Size", size},
		{"Frames", frames},
	}

	lines := []string{SuccessStyle.Render("✓ Decoding Complete!"), ""}
	for _, r := range rows {
		lines = append(lines, KeyStyle.Render(fmt.Sprintf("%-11s", r[0]+":"))+ValueStyle.Render(r[1]))
	}
	PrintBox(strings.Join(lines, "\n"))
}
