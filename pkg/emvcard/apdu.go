// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvcard

import (
	"fmt"
	"log/slog"
)

// Transmitter is a connected card, such as *scard.Card
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Status words
const (
	swOK             uint16 = 0x9000
	swRecordNotFound uint16 = 0x6A83
)

// Instructions
const (
	insSelect        = 0xA4
	insReadRecord    = 0xB2
	insGetResponse   = 0xC0
	insGetProcOpts   = 0xA8
	claInterindustry = 0x00
	claProprietary   = 0x80
)

// maxRetries bounds chained 61xx/6Cxx exchanges for one command
const maxRetries = 8

// StatusError is a command the card completed with a non-success status
type StatusError struct {
	Command string
	SW      uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: card returned %04X", e.Command, e.SW)
}

// command is a short APDU. le of 256 is encoded as 00.
type command struct {
	name     string
	cla, ins byte
	p1, p2   byte
	data     []byte
	le       int
}

func (c command) bytes() []byte {
	out := []byte{c.cla, c.ins, c.p1, c.p2}
	if len(c.data) > 0 {
		out = append(out, byte(len(c.data)))
		out = append(out, c.data...)
	}
	if c.le > 0 {
		out = append(out, byte(c.le))
	}
	return out
}

// exchange sends cmd and follows 61xx with GET RESPONSE and 6Cxx by
// resending with the indicated length
func exchange(card Transmitter, log *slog.Logger, cmd command) ([]byte, uint16, error) {
	var data []byte
	for range maxRetries {
		raw := cmd.bytes()
		resp, err := card.Transmit(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: transmit: %w", cmd.name, err)
		}
		if len(resp) < 2 {
			return nil, 0, fmt.Errorf("%s: short response of %d bytes", cmd.name, len(resp))
		}
		log.Debug("apdu",
			slog.String("command", cmd.name),
			slog.String("c", fmt.Sprintf("%X", raw)),
			slog.String("r", fmt.Sprintf("%X", resp)))

		sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
		data = append(data, resp[:len(resp)-2]...)

		switch sw1 {
		case 0x61:
			cmd = command{
				name: cmd.name,
				cla:  cmd.cla &^ claProprietary,
				ins:  insGetResponse,
				le:   leFromSW2(sw2),
			}
		case 0x6C:
			cmd.le = leFromSW2(sw2)
		default:
			return data, uint16(sw1)<<8 | uint16(sw2), nil
		}
	}
	return nil, 0, fmt.Errorf("%s: too many response exchanges", cmd.name)
}

func leFromSW2(sw2 byte) int {
	if sw2 == 0 {
		return 256
	}
	return int(sw2)
}
