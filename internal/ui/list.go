package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/notexe/focus-reminder/internal/reminder"
)

// reminderMarkdown renders the reminder list as a markdown table.
func reminderMarkdown(list []reminder.Definition) string {
	if len(list) == 0 {
		return "_No reminders yet. Add one with the `add_reminder` tool._\n"
	}

	var b strings.Builder
	b.WriteString("| | Reminder | Schedule | Shows for | State |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, d := range list {
		state := "on"
		if !d.Enabled {
			state = "off"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d min | %s |\n",
			d.Icon, escapeCell(d.Message), d.Schedule(), d.DisplayMinutes, state)
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// listRenderer caches a glamour renderer per wrap width.
type listRenderer struct {
	colored  bool
	width    int
	renderer *glamour.TermRenderer
}

func (r *listRenderer) render(list []reminder.Definition, width int) string {
	md := reminderMarkdown(list)

	if r.renderer == nil || r.width != width {
		style := "notty"
		if r.colored {
			style = "dark"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(max(width-4, 20)),
		)
		if err != nil {
			return md
		}
		r.renderer, r.width = renderer, width
	}

	rendered, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}
