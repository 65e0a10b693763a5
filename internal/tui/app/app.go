// Package app is the Bubble Tea model of the state watcher. It renders the
// latest value of every kind for each SIM slot and keeps a scrollable log
// of the notifications that produced them.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/tui/theme"
)

// NotificationMsg carries one notification into the program.
type NotificationMsg telephony.Notification

// ConnectedMsg reports that the watcher is registered with the service.
type ConnectedMsg struct{ Socket string }

// DisconnectedMsg reports that the service connection is gone.
type DisconnectedMsg struct{ Err error }

type slotState struct {
	values  map[telephony.EventKind]telephony.Value
	updated map[telephony.EventKind]time.Time
}

// Model is the root Bubble Tea model.
type Model struct {
	keys   KeyMap
	width  int
	height int

	slots    []telephony.SlotID
	kinds    []telephony.EventKind
	state    map[telephony.SlotID]*slotState
	selected int

	events     eventLog
	showEvents bool

	// Connection state.
	connected bool
	socket    string
	err       error
}

// New creates the root model for the given slots and kinds.
func New(slots []telephony.SlotID, kinds []telephony.EventKind) Model {
	m := Model{
		keys:  DefaultKeyMap(),
		slots: slots,
		kinds: kinds,
		state: make(map[telephony.SlotID]*slotState, len(slots)),
	}
	for _, s := range slots {
		m.state[s] = &slotState{
			values:  make(map[telephony.EventKind]telephony.Value),
			updated: make(map[telephony.EventKind]time.Time),
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ConnectedMsg:
		m.connected = true
		m.socket = msg.Socket
		m.err = nil
		return m, nil

	case DisconnectedMsg:
		m.connected = false
		m.err = msg.Err
		return m, nil

	case NotificationMsg:
		m.apply(telephony.Notification(msg), time.Now())
		return m, nil
	}
	return m, nil
}

func (m *Model) apply(n telephony.Notification, at time.Time) {
	st, ok := m.state[n.Slot]
	if !ok || n.Value == nil {
		return
	}
	st.values[n.Kind] = n.Value
	st.updated[n.Kind] = at
	m.events.Add(Entry{Time: at, Slot: n.Slot, Kind: n.Kind, Message: Summary(n.Value)})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showEvents {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Events):
			m.showEvents = false
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.NextSlot):
		if len(m.slots) > 0 {
			m.selected = (m.selected + 1) % len(m.slots)
		}
	case key.Matches(msg, m.keys.PrevSlot):
		if len(m.slots) > 0 {
			m.selected = (m.selected - 1 + len(m.slots)) % len(m.slots)
		}
	case key.Matches(msg, m.keys.Events):
		m.showEvents = true
	}
	return m, nil
}

// Selected returns the slot currently on screen.
func (m Model) Selected() telephony.SlotID {
	if len(m.slots) == 0 {
		return telephony.AllSlots
	}
	return m.slots[m.selected]
}

// Value returns the latest value received for (slot, kind).
func (m Model) Value(slot telephony.SlotID, kind telephony.EventKind) (telephony.Value, bool) {
	st, ok := m.state[slot]
	if !ok {
		return nil, false
	}
	v, ok := st.values[kind]
	return v, ok
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if !m.connected && m.err != nil {
		return m.renderDisconnected()
	}

	if m.showEvents {
		return m.events.View(m.width, m.height)
	}

	sections := []string{
		m.renderStatus(),
		m.renderTabs(),
		m.renderSlot(),
		theme.StyleDimmed.Render("  tab:next slot  shift+tab:prev slot  e:events  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatus() string {
	var conn string
	if m.connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected " + m.socket)
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Connecting...")
	}
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	counts := fmt.Sprintf("%d slots  %d events", len(m.slots), len(m.events.Entries))

	return lipgloss.NewStyle().
		Width(max(m.width-2, 40)).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(conn + sep + counts)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.slots))
	for i, s := range m.slots {
		label := fmt.Sprintf(" SIM %s ", s)
		if i == m.selected {
			tabs = append(tabs, theme.StyleSelected.Reverse(true).Render(label))
		} else {
			tabs = append(tabs, theme.StyleDimmed.Render(label))
		}
	}
	return " " + strings.Join(tabs, " ")
}

func (m Model) renderSlot() string {
	slot := m.Selected()
	st := m.state[slot]

	var lines []string
	for _, k := range m.kinds {
		name := lipgloss.NewStyle().Foreground(theme.KindColor(k)).Width(24).Render(k.String())
		value := theme.StyleDimmed.Render("-")
		age := ""
		if st != nil {
			if v, ok := st.values[k]; ok {
				value = Summary(v)
				age = theme.StyleDimmed.Render(st.updated[k].Format("15:04:05"))
			}
		}
		lines = append(lines, name+" "+value+"  "+age)
	}
	if len(lines) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No kinds selected"))
	}
	return theme.StyleBorder.Width(max(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDisconnected() string {
	msg := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
		theme.StyleDimmed.Render(m.err.Error()),
		theme.StyleDimmed.Render("press q to quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}
