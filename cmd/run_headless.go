// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/terminal"
)

// runHeadlessTerminal drives the terminal from line commands on stdin and
// prints screen changes and events to stdout
func runHeadlessTerminal(a *atm, connInfo string) error {
	fmt.Printf("ndcterm - Headless Terminal\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Commands: card <track2> | fdk <A-I> | pin <0-9|enter|backspace|esc> | screen | quit\n\n")

	a.events = func(message string, isError bool) {
		prefix := "[EVENT]"
		if isError {
			prefix = "[ERROR]"
		}
		fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05.000"), prefix, message)
	}
	a.notify = func() {
		printScreen(os.Stdout, a.snapshot())
	}

	a.start()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if quit := headlessCommand(a, scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

// headlessCommand runs one command line. Returns true to exit.
func headlessCommand(a *atm, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "card":
		if arg == "" {
			fmt.Println("usage: card <track2>")
			return false
		}
		a.readCard(arg)
	case "fdk":
		if _, ok := terminal.ParseKey(arg); !ok {
			fmt.Println("usage: fdk <A-I>")
			return false
		}
		a.pressFDK(strings.ToUpper(arg))
	case "pin":
		if arg == "" {
			fmt.Println("usage: pin <0-9|enter|backspace|esc>")
			return false
		}
		a.pressPinpad(strings.ToLower(arg))
	case "screen":
		printScreen(os.Stdout, a.snapshot())
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}

// printScreen writes the display framed by a border, with session details
func printScreen(w io.Writer, snap atmSnapshot) {
	border := "+" + strings.Repeat("-", len(snap.lines[0])) + "+"
	fmt.Fprintf(w, "%s screen=%s state=%s keys=%s\n", border, orDash(snap.screen), orDash(snap.state), snap.keys)
	for _, line := range snap.lines {
		fmt.Fprintf(w, "|%s|\n", line)
	}
	fmt.Fprintf(w, "%s status=%s\n", border, snap.status)
}
