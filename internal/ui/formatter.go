package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")). // Bright cyan
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")). // Coral red
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Medium gray
			Italic(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")). // Green
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")). // Yellow
			Bold(true)

	KeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("147")) // Light purple

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")). // Soft blue border
			Padding(0, 1)

	// Text drawn on top of the reminder color.
	overlayTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ffffff"))
)

// Formatter renders the host's fixed text, plain or colored.
type Formatter struct {
	colored bool
}

func NewFormatter(colored bool) *Formatter {
	return &Formatter{colored: colored}
}

// Colored reports whether output is styled.
func (f *Formatter) Colored() bool {
	return f.colored
}

// FormatHeader is the idle screen title line.
func (f *Formatter) FormatHeader(count int, enabled bool) string {
	title := "Focus Reminder"
	state := "on"
	if !enabled {
		state = "paused"
	}
	summary := fmt.Sprintf("%d %s • %s", count, plural(count, "reminder", "reminders"), state)

	if !f.colored {
		return title + "  " + summary
	}

	stateStyle := SuccessStyle
	if !enabled {
		stateStyle = WarningStyle
	}
	return TitleStyle.Render(title) + "  " +
		DimStyle.Render(fmt.Sprintf("%d %s • ", count, plural(count, "reminder", "reminders"))) +
		stateStyle.Render(state)
}

// FormatHelp lists the idle screen keys.
func (f *Formatter) FormatHelp(controlAddr string) string {
	keys := [][2]string{{"q", "quit"}, {"ctrl+c", "quit"}}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if f.colored {
			parts[i] = KeyStyle.Render(k[0]) + " " + DimStyle.Render(k[1])
		} else {
			parts[i] = k[0] + " " + k[1]
		}
	}
	line := strings.Join(parts, "  ")

	if controlAddr != "" {
		hint := "manage reminders over MCP at " + controlAddr
		if f.colored {
			hint = StatusStyle.Render(hint)
		}
		line += "\n" + hint
	}
	return line
}

// FormatDismissHint is shown under every overlay.
func (f *Formatter) FormatDismissHint(stacked int) string {
	hint := "Esc, Enter or click to dismiss"
	if stacked > 0 {
		hint += fmt.Sprintf(" • %d more behind", stacked)
	}
	return hint
}

// FormatCountdown renders the time left before an overlay closes.
func (f *Formatter) FormatCountdown(left time.Duration) string {
	if left < 0 {
		left = 0
	}
	left = left.Round(time.Second)
	return fmt.Sprintf("closes in %d:%02d", int(left.Minutes()), int(left.Seconds())%60)
}

func (f *Formatter) FormatError(err error) string {
	prefix := "Error: "
	if f.colored {
		prefix = ErrorStyle.Render("Error: ")
	}
	return prefix + err.Error()
}

// FormatBox wraps content in a styled box
func (f *Formatter) FormatBox(content string) string {
	if f.colored {
		return BoxStyle.Render(content)
	}
	return content
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
