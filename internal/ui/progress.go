package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/drcodec/internal/cli"
)

// DecodeProgress reports how far a decode has got
type DecodeProgress struct {
	Frames      int64 // PCM frames written so far
	TotalFrames int64 // 0 when the source length is unknown
	SampleRate  int
	Elapsed     time.Duration
}

// DecodeComplete signals the end of a decode, successful or not
type DecodeComplete struct {
	Input    string
	Output   string
	Frames   int64
	FileSize int64
	Elapsed  time.Duration
	Err      error
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model is the Bubbletea model for the decode progress display
type Model struct {
	progressBar progress.Model
	input       string
	state       DecodeProgress
	complete    *DecodeComplete

	width           int
	completionDelay time.Duration
	cancelled       bool
}

// NewModel creates a decode progress model for the named input
func NewModel(input string) *Model {
	p := progress.New(
		progress.WithGradient(string(cli.SignalGreen), string(cli.SignalRed)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	return &Model{
		progressBar:     p,
		input:           input,
		completionDelay: 500 * time.Millisecond,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case DecodeProgress:
		m.state = msg
		return m, nil

	case DecodeComplete:
		m.complete = &msg
		m.state.Frames = msg.Frames
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// Cancelled reports whether the user interrupted the decode
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// Result returns the completion message, or nil if the decode has not
// finished
func (m *Model) Result() *DecodeComplete {
	return m.complete
}

// View renders the UI
func (m *Model) View() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.SignalBlue).Render(cli.AppName))
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Foreground(cli.SignalAmber).Render("Decoding " + m.input))
	s.WriteString("\n\n")

	percent := m.percent()
	if percent >= 0 {
		s.WriteString("Progress: ")
		s.WriteString(m.progressBar.ViewAs(percent))
		s.WriteString(fmt.Sprintf("  %d%%", int(percent*100)))
	} else {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Decoding..."))
		s.WriteString(fmt.Sprintf("  %d frames", m.state.Frames))
	}
	s.WriteString("\n\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(m.timing()))

	if m.complete != nil {
		s.WriteString("\n\n")
		if m.complete.Err != nil {
			s.WriteString(cli.ErrorStyle.Render("✗ " + m.complete.Err.Error()))
		} else {
			s.WriteString(cli.SuccessStyle.Render("✓ Wrote " + m.complete.Output))
		}
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.SignalBlue).
		Padding(1, 2).
		Render(s.String())
}

// percent returns the completed fraction, or -1 when it is unknown
func (m *Model) percent() float64 {
	if m.complete != nil && m.complete.Err == nil {
		return 1
	}
	if m.state.TotalFrames <= 0 {
		return -1
	}
	return min(1, float64(m.state.Frames)/float64(m.state.TotalFrames))
}

func (m *Model) timing() string {
	elapsed := m.state.Elapsed
	if m.complete != nil {
		elapsed = m.complete.Elapsed
	}
	var speed float64
	if m.state.SampleRate > 0 && elapsed > 0 {
		audio := time.Duration(m.state.Frames) * time.Second / time.Duration(m.state.SampleRate)
		speed = float64(audio) / float64(elapsed)
	}

	parts := []string{"Time: " + formatDuration(elapsed), "Speed: " + cli.FormatSpeed(speed)}
	if p := m.percent(); p > 0 && p < 1 {
		eta := time.Duration(float64(elapsed)/p) - elapsed
		parts = append(parts, "ETA: "+formatDuration(eta))
	}
	return strings.Join(parts, "  │  ")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
