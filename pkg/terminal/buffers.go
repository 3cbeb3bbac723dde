// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "strconv"

// Buffer sizes
const (
	AmountLength     = 12
	OpcodeLength     = 8
	MaxPINLength     = 16
	MaxGeneralBuffer = 32
)

// Amount is the 12-digit amount buffer. Digits enter from the right and
// the oldest digit drops off the left.
type Amount struct {
	digits [AmountLength]byte
}

// NewAmount returns a zero-filled amount buffer
func NewAmount() Amount {
	var a Amount
	a.Clear()
	return a
}

// Clear zero-fills the buffer
func (a *Amount) Clear() {
	for i := range a.digits {
		a.digits[i] = '0'
	}
}

// Push shifts the given digits in from the right. Values longer than the
// buffer keep only their last 12 digits.
func (a *Amount) Push(value string) error {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return invalid("amount push", value, ErrInvalidDigit)
		}
	}
	if len(value) > AmountLength {
		value = value[len(value)-AmountLength:]
	}
	n := len(value)
	copy(a.digits[:], a.digits[n:])
	copy(a.digits[AmountLength-n:], value)
	return nil
}

// Backspace shifts the buffer one digit to the right, zero-filling the left
func (a *Amount) Backspace() {
	copy(a.digits[1:], a.digits[:AmountLength-1])
	a.digits[0] = '0'
}

func (a Amount) String() string {
	return string(a.digits[:])
}

// Opcode is the 8-position operation code buffer
type Opcode struct {
	buf [OpcodeLength]byte
}

// NewOpcode returns a space-filled operation code buffer
func NewOpcode() Opcode {
	var o Opcode
	o.Clear()
	return o
}

// Clear space-fills the buffer
func (o *Opcode) Clear() {
	for i := range o.buf {
		o.buf[i] = ' '
	}
}

// SetAt writes value at position 0-7. Out of range positions leave the
// buffer unchanged.
func (o *Opcode) SetAt(position int, value byte) error {
	if position < 0 || position >= OpcodeLength {
		return invalid("opcode position", strconv.Itoa(position), ErrOutOfRange)
	}
	o.buf[position] = value
	return nil
}

// At returns the byte at position, or a space when out of range
func (o Opcode) At(position int) byte {
	if position < 0 || position >= OpcodeLength {
		return ' '
	}
	return o.buf[position]
}

// ApplyPreset runs a state D style preset: each clear bit of clearMask
// blanks that position, then every (value, mask) pair writes value at the
// positions whose bit is set. Bit i addresses position i.
func (o *Opcode) ApplyPreset(clearMask uint8, presets []OpcodePreset) {
	for i := 0; i < OpcodeLength; i++ {
		if clearMask&(1<<uint(i)) == 0 {
			o.buf[i] = ' '
		}
	}
	for _, p := range presets {
		for i := 0; i < OpcodeLength; i++ {
			if p.Mask&(1<<uint(i)) != 0 {
				o.buf[i] = p.Value
			}
		}
	}
}

func (o Opcode) String() string {
	return string(o.buf[:])
}

// OpcodePreset sets Value at every position selected by Mask
type OpcodePreset struct {
	Value byte
	Mask  uint8
}

// Buffers holds the per-session data buffers
type Buffers struct {
	PIN    string
	B      string
	C      string
	Amount Amount
	Opcode Opcode
	// FDK holds the key pressed in the last X or Y state, read by W
	FDK string
}

// NewBuffers returns buffers in their reset state
func NewBuffers() Buffers {
	var b Buffers
	b.Reset()
	return b
}

// Reset clears every buffer together
func (b *Buffers) Reset() {
	b.PIN = ""
	b.B = ""
	b.C = ""
	b.Amount.Clear()
	b.Opcode.Clear()
	b.FDK = ""
}

// AppendPIN adds one digit to the PIN buffer
func (b *Buffers) AppendPIN(digit string) error {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return invalid("PIN digit", digit, ErrInvalidDigit)
	}
	if len(b.PIN) >= MaxPINLength {
		return invalid("PIN digit", digit, ErrBufferFull)
	}
	b.PIN += digit
	return nil
}

// BackspacePIN removes the last PIN digit
func (b *Buffers) BackspacePIN() {
	b.PIN = trimLast(b.PIN)
}

// AppendGeneral appends to buffer B (which == 'B') or C (which == 'C')
func (b *Buffers) AppendGeneral(which byte, value string) error {
	buf := b.general(which)
	if buf == nil {
		return invalid("general buffer", string(which), ErrUnsupported)
	}
	if len(*buf)+len(value) > MaxGeneralBuffer {
		return invalid("general buffer "+string(which), value, ErrBufferFull)
	}
	*buf += value
	return nil
}

// SetGeneral replaces the content of buffer B or C
func (b *Buffers) SetGeneral(which byte, value string) error {
	buf := b.general(which)
	if buf == nil {
		return invalid("general buffer", string(which), ErrUnsupported)
	}
	if len(value) > MaxGeneralBuffer {
		return invalid("general buffer "+string(which), value, ErrBufferFull)
	}
	*buf = value
	return nil
}

// TrimGeneral removes the last character of buffer B or C
func (b *Buffers) TrimGeneral(which byte) {
	if buf := b.general(which); buf != nil {
		*buf = trimLast(*buf)
	}
}

func (b *Buffers) general(which byte) *string {
	switch which {
	case 'B', 'b':
		return &b.B
	case 'C', 'c':
		return &b.C
	}
	return nil
}

func trimLast(s string) string {
	if s == "" {
		return s
	}
	return s[:len(s)-1]
}
