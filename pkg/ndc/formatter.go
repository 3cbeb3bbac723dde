// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")

	m := f.Message()
	if m == nil {
		return fmt.Sprintf("[%s] UNPARSEABLE len=%d crc=0x%04X: %v\n", timestamp, f.length, f.crc, f.ParseError())
	}

	result := fmt.Sprintf("[%s] %s len=%d\n", timestamp, FormatMessageType(m), f.length)
	result += FormatMessageFields(m)
	return result
}

// FormatMessageType returns a short name for the message's class and subclass
func FormatMessageType(m *Message) string {
	switch m.Class {
	case ClassTerminalCommand:
		return "TERMINAL_COMMAND"
	case ClassDataCommand:
		switch m.Subclass {
		case SubclassCustomization:
			return "CUSTOMIZATION_DATA"
		case SubclassInteractiveResponse:
			return "INTERACTIVE_TRANSACTION_RESPONSE"
		case SubclassExtendedEncKeyInfo:
			return "EXTENDED_ENCRYPTION_KEY"
		}
		return "DATA_COMMAND"
	case ClassTransactionReply:
		return "TRANSACTION_REPLY"
	case ClassSolicited:
		return "SOLICITED_STATUS"
	case ClassUnsolicited:
		if m.Subclass == SubclassTransactionRequest {
			return "TRANSACTION_REQUEST"
		}
		return "UNSOLICITED"
	default:
		return "UNKNOWN"
	}
}

// FormatMessageFields formats the populated fields of a message, one per line
func FormatMessageFields(m *Message) string {
	var sb strings.Builder

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "  %s: %s\n", name, value)
		}
	}
	list := func(name string, values []string) {
		if len(values) > 0 {
			fmt.Fprintf(&sb, "  %s: %d entries\n", name, len(values))
		}
	}

	field("Class", m.Class)
	field("Subclass", m.Subclass)
	field("Command", m.CommandCode)
	field("Identifier", m.MessageIdentifier)
	list("Screens", m.Screens)
	list("States", m.States)
	list("FITs", m.FITs)
	field("Config ID", m.ConfigID)
	field("Active Keys", m.ActiveKeys)
	field("Screen Data", printable(m.ScreenDataField))
	field("Next State", m.NextState)
	field("Screen Update", printable(m.ScreenDisplayUpdate))
	field("Modifier", m.Modifier)
	if m.NewKeyData != "" {
		// Key material is never printed
		fmt.Fprintf(&sb, "  New Key: %d chars (length field %s)\n", len(m.NewKeyData), m.NewKeyLength)
	}
	field("Status", m.StatusDescriptor)
	if !m.SupplyCounters.IsZero() {
		c := m.SupplyCounters
		fmt.Fprintf(&sb, "  TSN: %s, Transactions: %s\n", c.TSN, c.TransactionCount)
		fmt.Fprintf(&sb, "  Notes In/Rej/Disp: %s / %s / %s\n", c.NotesInCassettes, c.NotesRejected, c.NotesDispensed)
	}
	field("Coordination", m.MessageCoordinationNumber)
	field("Top Of Receipt", m.TopOfReceipt)
	field("Track 2", maskTrack2(m.Track2))
	field("Opcode", quote(m.OpcodeBuffer))
	field("Amount", m.AmountBuffer)
	if m.PINBuffer != "" {
		fmt.Fprintf(&sb, "  PIN Block: %s\n", strings.Repeat("*", len(m.PINBuffer)))
	}
	field("Buffer B", m.BufferB)
	field("Buffer C", m.BufferC)

	return sb.String()
}

// maskTrack2 hides the middle digits of the card number
func maskTrack2(track2 string) string {
	if track2 == "" {
		return ""
	}
	pan, rest, found := strings.Cut(strings.TrimPrefix(track2, ";"), "=")
	if len(pan) > 10 {
		pan = pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
	}
	if !found {
		return pan
	}
	return pan + "=" + strings.Repeat("*", len(rest))
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%q", s)
}

// printable replaces control characters in screen data with <XX> escapes
func printable(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			fmt.Fprintf(&sb, "<%02X>", c)
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
