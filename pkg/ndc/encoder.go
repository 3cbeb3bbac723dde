// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import (
	"encoding/binary"
	"fmt"
)

// Encoder encodes host link messages for transmission.
// Handles CBOR encoding, byte stuffing, and CRC calculation.
type Encoder struct{}

// NewEncoder creates a new message encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a Message to wire format.
func (e *Encoder) Encode(m *Message) ([]byte, error) {
	return EncodeMessage(m)
}

// EncodeMessage creates a complete wire-formatted frame for the message.
// Returns the frame bytes ready for transmission, including framing and byte stuffing.
func EncodeMessage(m *Message) ([]byte, error) {
	body, err := MarshalMessage(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR body: %w", err)
	}
	return EncodeBody(body)
}

// EncodeBody frames an already encoded CBOR body.
func EncodeBody(body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("CBOR body too large: %d bytes (max %d)", len(body), MaxBodySize)
	}

	// Data section: length + body. This is what gets CRC'd and byte-stuffed
	data := make([]byte, LengthSize+len(body), LengthSize+len(body)+2)
	binary.BigEndian.PutUint16(data[0:LengthSize], uint16(len(body)))
	copy(data[LengthSize:], body)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// MustEncodeMessage encodes a message and panics on error.
// Only use with messages built by this package's constructors.
func MustEncodeMessage(m *Message) []byte {
	data, err := EncodeMessage(m)
	if err != nil {
		panic(fmt.Sprintf("ndc: encode error: %v", err))
	}
	return data
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
