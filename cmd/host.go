// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	hostScriptPath string
	hostTimeout    int
)

// Expectation that matches any transaction request
const expectTransactionRequest = "Transaction Request"

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Drive a terminal from a scripted host",
	Long: `Act as the host end of the link and play a YAML script against a terminal.

Each step may send a host message and may wait for a terminal message:

  steps:
    - name: load screens
      send:
        message_class: Data Command
        message_subclass: Customization Command
        message_identifier: Screen Data load
        screens: ["000\x0c\x1b[27mWELCOME"]
      expect: Ready
    - name: card entered
      expect: Transaction Request
      timeout: 120
    - send:
        message_class: Transaction Reply Command
        next_state: "133"

expect is a solicited status descriptor (Ready, Command Reject, ...) or
"Transaction Request". A transaction reply without a coordination number
echoes the one from the last transaction request.

Exit codes:
  0 - All steps passed
  1 - A step failed or timed out
  2 - Connection or script error`,
	RunE: runHost,
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.Flags().StringVar(&hostScriptPath, "script", "", "YAML host script")
	hostCmd.Flags().IntVar(&hostTimeout, "timeout", 10, "Default timeout in seconds for each expectation")
	_ = hostCmd.MarkFlagRequired("script")
}

// hostStep is one entry of a host script
type hostStep struct {
	Name    string       `yaml:"name"`
	Send    *ndc.Message `yaml:"send"`
	Expect  string       `yaml:"expect"`
	Timeout int          `yaml:"timeout"`
	DelayMS int          `yaml:"delay_ms"`
}

// hostScript is a sequence of host steps
type hostScript struct {
	Steps []hostStep `yaml:"steps"`
}

// loadHostScript reads and checks a host script
func loadHostScript(path string) (*hostScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseHostScript(data)
}

func parseHostScript(data []byte) (*hostScript, error) {
	var script hostScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i, step := range script.Steps {
		if step.Send == nil && step.Expect == "" {
			return nil, fmt.Errorf("step %d: needs send or expect", i+1)
		}
		if step.Send != nil && !step.Send.FromHost() {
			return nil, fmt.Errorf("step %d: %q is not a host message class", i+1, step.Send.Class)
		}
	}
	return &script, nil
}

// label names a step for output
func (s hostStep) label(i int) string {
	if s.Name != "" {
		return fmt.Sprintf("Step %d (%s)", i+1, s.Name)
	}
	return fmt.Sprintf("Step %d", i+1)
}

// matchesExpectation reports whether a terminal message satisfies expect
func matchesExpectation(m *ndc.Message, expect string) bool {
	if m == nil {
		return false
	}
	if strings.EqualFold(expect, expectTransactionRequest) {
		return m.IsTransactionRequest()
	}
	return m.IsSolicitedStatus() && strings.EqualFold(m.StatusDescriptor, expect)
}

func runHost(cmd *cobra.Command, args []string) error {
	script, err := loadHostScript(hostScriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Script error: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ndcterm - Host Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Script: %s (%d steps)\n\n", hostScriptPath, len(script.Steps))

	// One reader for the whole run; frames queue up between steps
	frames := make(chan *ndc.Frame, 32)
	errChan := make(chan error, 1)
	go func() {
		decoder := ndc.NewDecoder()
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for j := 0; j < n; j++ {
				frame, decodeErr := decoder.DecodeByte(buf[j])
				if decodeErr != nil {
					fmt.Printf("  decode error: %v\n", decodeErr)
					continue
				}
				if frame != nil {
					frames <- frame
				}
			}
		}
	}()

	lastCoordination := ""
	failCount := 0

	for i, step := range script.Steps {
		if step.DelayMS > 0 {
			time.Sleep(time.Duration(step.DelayMS) * time.Millisecond)
		}
		fmt.Printf("%s: ", step.label(i))

		if step.Send != nil {
			m := *step.Send
			if m.Class == ndc.ClassTransactionReply && m.MessageCoordinationNumber == "" {
				m.MessageCoordinationNumber = lastCoordination
			}
			wireBytes, err := ndc.EncodeMessage(&m)
			if err != nil {
				fmt.Printf("ENCODE FAILED: %v\n", err)
				failCount++
				break
			}
			if _, err := conn.Write(wireBytes); err != nil {
				fmt.Printf("SEND FAILED: %v\n", err)
				failCount++
				break
			}
			fmt.Printf("sent %s", ndc.FormatMessageType(&m))
		}

		if step.Expect == "" {
			fmt.Println()
			continue
		}
		if step.Send != nil {
			fmt.Printf(", ")
		}
		fmt.Printf("waiting for %s\n", step.Expect)

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = hostTimeout
		}
		deadline := time.After(time.Duration(timeout) * time.Second)
		startTime := time.Now()

		done := false
		for !done {
			select {
			case frame := <-frames:
				fmt.Print(ndc.FormatFrame(frame))
				m := frame.Message()
				if m != nil && m.IsTransactionRequest() {
					lastCoordination = m.MessageCoordinationNumber
				}
				if matchesExpectation(m, step.Expect) {
					fmt.Printf("  OK after %v\n\n", time.Since(startTime).Round(time.Millisecond))
					done = true
				}

			case err := <-errChan:
				fmt.Printf("  READ FAILED: %v\n", err)
				os.Exit(1)

			case <-deadline:
				fmt.Printf("  TIMEOUT (no %s in %ds)\n\n", step.Expect, timeout)
				failCount++
				done = true
			}
		}
	}

	fmt.Printf("--- Host script ---\n")
	fmt.Printf("%d steps, %d failed\n", len(script.Steps), failCount)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
