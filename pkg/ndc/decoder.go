// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is wrapped by decode errors caused by a bad checksum
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the host link frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	frame       *Frame
	rawBuffer   []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, 256),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the accumulated raw bytes since the last frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	// Framing bytes are never escaped, so they resynchronize the decoder
	if b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer[:0], b)
		d.state = stateLengthHi
		return nil, nil
	}

	if b == EndByte {
		if d.state == stateEnd && !d.escapeNext {
			frame := d.frame
			calculatedCRC := CalculateCRC(d.buffer[:d.bufferIndex])

			if frame.crc != calculatedCRC {
				err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculatedCRC, frame.crc)
				d.Reset()
				return nil, err
			}

			frame.timestamp = time.Now()

			d.Reset()
			return frame, nil
		}
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	if d.state == stateIdle {
		// Waiting for START byte
		return nil, nil
	}

	// Handle byte stuffing
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLengthHi:
		d.frame = &Frame{length: uint16(b) << 8}
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		d.state = stateLengthLo
		return nil, nil

	case stateLengthLo:
		d.frame.length |= uint16(b)
		if d.frame.length > MaxBodySize {
			length := d.frame.length
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", length, MaxBodySize)
		}
		d.frame.body = make([]byte, 0, d.frame.length)
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if d.frame.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = stateBody
		}
		return nil, nil

	case stateBody:
		if d.bufferIndex >= len(d.buffer) {
			d.Reset()
			return nil, fmt.Errorf("buffer overflow: frame exceeds max size")
		}
		d.frame.body = append(d.frame.body, b)
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if len(d.frame.body) >= int(d.frame.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.crc |= uint16(b)
		// Wait for END byte
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		// Data after the CRC means the frame is longer than announced
		d.Reset()
		return nil, fmt.Errorf("expected END byte after CRC")

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// DecodeFrame decodes a single complete wire frame
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder()
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
	return nil, fmt.Errorf("incomplete frame")
}
