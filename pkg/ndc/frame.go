// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import "time"

// Frame represents a decoded host link frame
type Frame struct {
	length    uint16
	body      []byte // Raw CBOR bytes of the message map
	crc       uint16
	timestamp time.Time

	// Cached parsed message (lazy parsing)
	message  *Message
	parsed   bool
	parseErr error
}

// NewFrame creates a new frame with the given fields
func NewFrame(body []byte, crc uint16) *Frame {
	return &Frame{
		length:    uint16(len(body)),
		body:      body,
		crc:       crc,
		timestamp: time.Now(),
	}
}

// ensureParsed parses the CBOR body if not already done
func (f *Frame) ensureParsed() {
	if f.parsed {
		return
	}
	f.parsed = true
	f.message, f.parseErr = ParseMessage(f.body)
}

// Length returns the frame's body length
func (f *Frame) Length() uint16 {
	return f.length
}

// Body returns the raw CBOR body bytes
func (f *Frame) Body() []byte {
	return f.body
}

// Message returns the decoded message, or nil if the body failed to parse
func (f *Frame) Message() *Message {
	f.ensureParsed()
	return f.message
}

// ParseError returns any error from parsing the CBOR body
func (f *Frame) ParseError() error {
	f.ensureParsed()
	return f.parseErr
}

// CRC returns the frame's CRC value
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}
