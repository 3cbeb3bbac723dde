// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Latest traffic seen on the link
type trafficData struct {
	lastHost    string
	lastReply   string
	lastRequest string
	lastState   string
	configID    string
	updated     time.Time
}

// Monitor TUI model
type monitorModel struct {
	connInfo      string
	showAll       bool
	stats         *ndc.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	traffic       *trafficData
}

type monitorTickMsg time.Time

func initialMonitorModel(connInfo string, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		showAll:       showAll,
		stats:         ndc.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case monitorSyncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case monitorDataMsg:
		if msg.decodeErr != nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			break
		}
		if msg.frame == nil {
			break
		}
		m.stats.Update(msg.frame, nil, msg.validationErrors)

		nm := msg.frame.Message()
		if nm == nil {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.frame.ParseError()), true)
			break
		}
		m.recordTraffic(nm)

		msgType := ndc.FormatMessageType(nm)
		switch {
		case len(msg.validationErrors) > 0:
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", msgType, err.Message), true)
			}
		case nm.StatusDescriptor == ndc.StatusCommandReject || nm.StatusDescriptor == ndc.StatusSpecificCommandReject:
			m.addLogEntry(fmt.Sprintf("%s: %s", msgType, nm.StatusDescriptor), true)
		case m.showAll:
			m.addLogEntry(fmt.Sprintf("%s (valid)", msgType), false)
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// recordTraffic keeps the latest message of each direction
func (m *monitorModel) recordTraffic(nm *ndc.Message) {
	if m.traffic == nil {
		m.traffic = &trafficData{}
	}
	t := m.traffic
	t.updated = time.Now()

	switch {
	case nm.FromHost():
		t.lastHost = ndc.FormatMessageType(nm)
		if nm.NextState != "" {
			t.lastState = nm.NextState
		}
		if nm.ConfigID != "" {
			t.configID = nm.ConfigID
		}
	case nm.IsSolicitedStatus():
		t.lastReply = nm.StatusDescriptor
		if nm.ConfigID != "" {
			t.configID = nm.ConfigID
		}
	case nm.IsTransactionRequest():
		t.lastRequest = fmt.Sprintf("coordination %s opcode %q amount %s",
			orDash(nm.MessageCoordinationNumber), nm.OpcodeBuffer, orDash(nm.AmountBuffer))
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("NDCTERM - LINK MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	totalErrors := m.stats.CRCErrors + m.stats.DecodeErrors + m.stats.MalformedFrames
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if m.stats.CRCErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.MalformedFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedFrames)),
			headerStyle.Render("missing fields"), m.stats.MissingFields,
			headerStyle.Render("unknown class"), m.stats.UnknownClasses,
			headerStyle.Render("invalid values"), m.stats.InvalidValues,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Host:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.HostMessages)),
		statsLabelStyle.Render("Replies:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Replies)),
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TransactionRequests)),
	))
	if m.stats.Rejects > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Rejects:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Rejects)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Traffic section (only shown once a message was decoded)
	if m.traffic != nil {
		s.WriteString(statsLabelStyle.Render("Latest Traffic:"))
		s.WriteString("\n")

		trafficContent := strings.Builder{}
		trafficContent.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Host:"), statsValueStyle.Render(orDash(m.traffic.lastHost))))
		trafficContent.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Reply:"), statsValueStyle.Render(orDash(m.traffic.lastReply))))
		trafficContent.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Request:"), statsValueStyle.Render(orDash(m.traffic.lastRequest))))
		trafficContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Next State:"), statsValueStyle.Render(orDash(m.traffic.lastState)),
			statsLabelStyle.Render("Config ID:"), statsValueStyle.Render(orDash(m.traffic.configID)),
		))

		s.WriteString(boxStyle.Render(trafficContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
