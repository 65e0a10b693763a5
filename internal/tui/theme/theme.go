// Package theme provides the Lip Gloss palette and reusable styles for the
// state watcher. It is a leaf package apart from the telephony vocabulary.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Kind colors.
var (
	ColorCall    = lipgloss.Color("#a855f7")
	ColorRadio   = lipgloss.Color("#3b82f6")
	ColorSim     = lipgloss.Color("#06b6d4")
	ColorData    = lipgloss.Color("#22c55e")
	ColorNotice  = lipgloss.Color("#f59e0b")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Signal bar thresholds.
var (
	ColorSignalLow  = lipgloss.Color("#dc2626") // 0-1
	ColorSignalMid  = lipgloss.Color("#d97706") // 2-3
	ColorSignalHigh = lipgloss.Color("#22c55e") // 4+
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// KindColor returns the color used for a kind's column and log entries.
func KindColor(k telephony.EventKind) lipgloss.Color {
	switch k {
	case telephony.KindCallState:
		return ColorCall
	case telephony.KindSignalStrength, telephony.KindNetworkState, telephony.KindCellInfo:
		return ColorRadio
	case telephony.KindSimState, telephony.KindSimActiveState, telephony.KindIccAccountChange:
		return ColorSim
	case telephony.KindDataConnectionState, telephony.KindDataFlow:
		return ColorData
	case telephony.KindCfuIndicator, telephony.KindVoiceMailIndicator:
		return ColorNotice
	default:
		return ColorDefault
	}
}

// SignalColor returns the color for a signal level.
func SignalColor(level int) lipgloss.Color {
	switch {
	case level >= 4:
		return ColorSignalHigh
	case level >= 2:
		return ColorSignalMid
	default:
		return ColorSignalLow
	}
}

// SignalBars renders level as a five-step bar.
func SignalBars(level int) string {
	level = min(max(level, 0), 5)
	bar := strings.Repeat("▮", level) + strings.Repeat("▯", 5-level)
	return lipgloss.NewStyle().Foreground(SignalColor(level)).Render(bar)
}

// CallGlyph returns a glyph for a coarse call state.
func CallGlyph(s telephony.CallState) string {
	switch s {
	case telephony.CallStateRinging:
		return "☏"
	case telephony.CallStateOffhook:
		return "✆"
	case telephony.CallStateIdle:
		return "○"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
