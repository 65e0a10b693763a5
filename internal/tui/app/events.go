package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/tui/theme"
)

const maxEntries = 200

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Slot    telephony.SlotID
	Kind    telephony.EventKind
	Message string
}

// eventLog is a scrollable record of received notifications.
type eventLog struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

func (l *eventLog) Add(e Entry) {
	l.Entries = append(l.Entries, e)
	if len(l.Entries) > maxEntries {
		l.Entries = l.Entries[len(l.Entries)-maxEntries:]
	}
	l.Offset = 0
}

func (l *eventLog) ScrollUp(n int) {
	l.Offset = min(l.Offset+n, max(len(l.Entries)-1, 0))
}

func (l *eventLog) ScrollDown(n int) {
	l.Offset = max(l.Offset-n, 0)
}

func (l eventLog) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENTS ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(l.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(l.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No notifications received yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(l.Entries)-l.Offset, 0)
	start := max(end-visible, 0)

	var lines []string
	for _, e := range l.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(theme.KindColor(e.Kind)).Width(22).Render(e.Kind.String())
		lines = append(lines, fmt.Sprintf("%s slot %-3s %s %s", ts, e.Slot, kind, e.Message))
	}

	more := ""
	if l.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", l.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}
