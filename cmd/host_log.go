// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
	"github.com/spf13/cobra"
)

var hostLogCmd = &cobra.Command{
	Use:   "host_log",
	Short: "Display host link frames in human-readable format",
	Long: `Continuously decode and display host link frames as they arrive.

Each frame is shown with timestamp, message type and its populated fields.
Track 2 data is masked and PIN blocks are never printed.

Supports serial, WebSocket and TCP connections.`,
	RunE: runHostLog,
}

func init() {
	rootCmd.AddCommand(hostLogCmd)
}

func runHostLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ndcterm - Host Link Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := ndc.NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if connectionClosed(err) {
				slog.Info("connection closed")
				return nil
			}
			slog.Warn("read error", slog.Any("error", err))
			continue
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(ndc.FormatFrame(frame))
			}
		}
	}
}
