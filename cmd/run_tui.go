// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/screens"
	"github.com/Thermoquad/ndcterm/pkg/terminal"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// terminalModel is the Bubble Tea model for the terminal TUI
type terminalModel struct {
	atm      *atm
	connInfo string

	cardInput   textinput.Model
	cardFocused bool

	eventLog      []eventLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type terminalTickMsg time.Time

type screenChangedMsg struct{}

type eventMsg struct {
	message string
	isError bool
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTerminalModel(a *atm, connInfo string) terminalModel {
	ti := textinput.New()
	ti.Placeholder = ";4000001234562000=25121011234567890?"
	ti.CharLimit = 40
	ti.Width = 40

	return terminalModel{
		atm:           a,
		connInfo:      connInfo,
		cardInput:     ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         100,
		height:        40,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m terminalModel) Init() tea.Cmd {
	return terminalTickCmd()
}

func terminalTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return terminalTickMsg(t)
	})
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case terminalTickMsg:
		return m, terminalTickCmd()

	case screenChangedMsg:
		// View re-reads the display

	case eventMsg:
		m.addLogEntry(msg.message, msg.isError)
	}

	if m.cardFocused {
		var cmd tea.Cmd
		m.cardInput, cmd = m.cardInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m terminalModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.cardFocused {
		switch msg.String() {
		case "enter":
			track2 := strings.TrimSpace(m.cardInput.Value())
			if track2 == "" {
				track2 = m.cardInput.Placeholder
			}
			m.cardInput.SetValue("")
			m.cardInput.Blur()
			m.cardFocused = false
			m.addLogEntry("Card swiped", false)
			m.atm.readCard(track2)
			return m, nil
		case "esc", "tab":
			m.cardInput.Blur()
			m.cardFocused = false
			return m, nil
		}
		var cmd tea.Cmd
		m.cardInput, cmd = m.cardInput.Update(msg)
		return m, cmd
	}

	key := msg.String()
	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.cardFocused = true
		return m, m.cardInput.Focus()

	case "enter":
		m.atm.pressPinpad(terminal.PinpadEnter)

	case "backspace":
		m.atm.pressPinpad(terminal.PinpadBackspace)

	case "esc":
		m.atm.pressPinpad(terminal.PinpadEsc)

	default:
		if len(key) != 1 {
			return m, nil
		}
		if key[0] >= '0' && key[0] <= '9' {
			m.atm.pressPinpad(key)
			return m, nil
		}
		if k, ok := terminal.ParseKey(key); ok {
			m.atm.pressFDK(k.String())
		}
	}

	return m, nil
}

func (m terminalModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	snap := m.atm.snapshot()
	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	screenStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("18"))

	activeKeyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("10")).
		Bold(true)

	idleKeyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	// Header
	s.WriteString(titleStyle.Render("NDCTERM"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=card A-I=FDK 0-9/Enter/Bksp/Esc=pinpad",
		m.connInfo, statusText(snap.status, warningStyle, statsValueStyle))))
	s.WriteString("\n\n")

	// Screen with FDKs A-D on the left and F-I on the right
	keyLabel := func(k terminal.Key) string {
		label := fmt.Sprintf("[%s]", k)
		if snap.keys.IsActive(k.String()) {
			return activeKeyStyle.Render(label)
		}
		return idleKeyStyle.Render(label)
	}
	left := []terminal.Key{'A', 'B', 'C', 'D'}
	right := []terminal.Key{'F', 'G', 'H', 'I'}

	var screen strings.Builder
	for row, line := range snap.lines {
		// FDKs sit beside the lower screen rows
		keyRow := row - (screens.Rows - 2*len(left))
		l, r := "   ", "   "
		if keyRow >= 0 && keyRow%2 == 0 {
			l = keyLabel(left[keyRow/2])
			r = keyLabel(right[keyRow/2])
		}
		screen.WriteString(fmt.Sprintf("%s %s %s", l, screenStyle.Render(line), r))
		if row < len(snap.lines)-1 {
			screen.WriteString("\n")
		}
	}
	screenPanel := boxStyle.Render(screen.String())

	// Session panel
	var session strings.Builder
	field := func(label, value string) {
		session.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render(label), statsValueStyle.Render(value)))
	}
	field("Screen:", orDash(snap.screen))
	field("State:", orDash(snap.state))
	field("Card:", orDash(snap.card))
	field("PIN:", strings.Repeat("*", snap.pinLen))
	field("Amount:", snap.amount)
	field("Opcode:", fmt.Sprintf("[%s]", snap.opcode))
	field("Buffer B:", orDash(snap.bufferB))
	field("Buffer C:", orDash(snap.bufferC))
	field("Config ID:", snap.configID)
	field("Loaded:", snap.loaded)
	session.WriteString("\n")
	field("Frames:", fmt.Sprintf("%d (%d host, %d malformed)",
		snap.stats.TotalFrames, snap.stats.HostMessages, snap.stats.MalformedFrames))
	sessionPanel := boxStyle.Width(42).Render(strings.TrimRight(session.String(), "\n"))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, screenPanel, " ", sessionPanel))
	s.WriteString("\n")

	// Card swipe
	s.WriteString(statsLabelStyle.Render("Card: "))
	if m.cardFocused {
		s.WriteString(m.cardInput.View())
	} else {
		s.WriteString(headerStyle.Render("(Tab to swipe a card)"))
	}
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func statusText(status terminal.Status, warningStyle, okStyle lipgloss.Style) string {
	if status == terminal.StatusInService {
		return okStyle.Render(string(status))
	}
	return warningStyle.Render(string(status))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (m terminalModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Rows left below the screen panel
	logHeight := m.height - screens.Rows - 10
	if logHeight < 4 {
		logHeight = 4
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *terminalModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}
