// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Detect and analyze malformed frames and link errors",
	Long: `Track host link errors, malformed messages and traffic with statistics.

This command validates each frame and detects:
  - CRC errors and decode failures
  - Messages missing mandatory fields or with unknown classes
  - Invalid values (state numbers, coordination numbers, config IDs)
  - Statistics and trends (frame rate, error rate, rejects)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI instead of text mode")
}

// monitorDataMsg carries one decode result to the monitor
type monitorDataMsg struct {
	frame            *ndc.Frame
	decodeErr        error
	validationErrors []ndc.ValidationError
}

// monitorSyncMsg marks the first valid frame
type monitorSyncMsg struct {
	invalidBytes int
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		m := initialMonitorModel(connInfo, showAll)
		p := tea.NewProgram(m, tea.WithAltScreen())
		go readMonitorFrames(conn, func(msg tea.Msg) { p.Send(msg) })
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	}
	return runMonitorText(conn, connInfo)
}

// readMonitorFrames decodes the link and posts sync and data messages.
// Decode errors before the first valid frame are only counted.
func readMonitorFrames(conn Connection, post func(tea.Msg)) {
	decoder := ndc.NewDecoder()
	synchronized := false
	invalidBytesBeforeSync := 0
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if connectionClosed(err) {
				slog.Info("connection closed")
				return
			}
			slog.Warn("read error", slog.Any("error", err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				if synchronized {
					post(monitorDataMsg{decodeErr: decodeErr})
				} else {
					invalidBytesBeforeSync++
				}
				continue
			}
			if frame == nil {
				continue
			}

			if !synchronized {
				synchronized = true
				post(monitorSyncMsg{invalidBytes: invalidBytesBeforeSync})
			}

			var validationErrors []ndc.ValidationError
			if m := frame.Message(); m != nil {
				validationErrors = ndc.ValidateMessage(m)
			}
			post(monitorDataMsg{frame: frame, validationErrors: validationErrors})
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(frame *ndc.Frame, errors []ndc.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	m := frame.Message()

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, ndc.FormatMessageType(m))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case ndc.AnomalyMissingField, ndc.AnomalyUnknownClass, ndc.AnomalyUnknownSubclass:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case ndc.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			for field, value := range err.Details {
				fmt.Printf("    %s=%v\n", field, value)
			}
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Print(ndc.FormatMessageFields(m))
	fmt.Printf("  >>> MESSAGE REJECTED <<<\n\n")
}

// printReject highlights a Command Reject sent by the terminal
func printReject(frame *ndc.Frame) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;35mREJECT:\033[0m %s\n\n", timestamp, frame.Message().StatusDescriptor)
}

// runMonitorText runs the monitor in text mode
func runMonitorText(conn Connection, connInfo string) error {
	fmt.Printf("ndcterm - Link Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := ndc.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	msgs := make(chan tea.Msg, 64)
	go readMonitorFrames(conn, func(msg tea.Msg) { msgs <- msg })

	for {
		select {
		case msg := <-msgs:
			switch msg := msg.(type) {
			case monitorSyncMsg:
				if msg.invalidBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", msg.invalidBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}

			case monitorDataMsg:
				if msg.decodeErr != nil {
					stats.Update(nil, msg.decodeErr, nil)
					printDecodeError(msg.decodeErr)
					continue
				}

				stats.Update(msg.frame, nil, msg.validationErrors)
				m := msg.frame.Message()
				switch {
				case m == nil:
					printDecodeError(msg.frame.ParseError())
				case len(msg.validationErrors) > 0:
					printValidationErrors(msg.frame, msg.validationErrors)
				case m.StatusDescriptor == ndc.StatusCommandReject || m.StatusDescriptor == ndc.StatusSpecificCommandReject:
					// Always print rejects
					printReject(msg.frame)
				case showAll:
					fmt.Print(ndc.FormatFrame(msg.frame))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
