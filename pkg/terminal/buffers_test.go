// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_Push(t *testing.T) {
	t.Parallel()

	a := NewAmount()
	assert.Equal(t, "000000000000", a.String())

	require.NoError(t, a.Push("5"))
	require.NoError(t, a.Push("0"))
	assert.Equal(t, "000000000050", a.String())

	require.NoError(t, a.Push("500"))
	assert.Equal(t, "000000050500", a.String())

	require.NoError(t, a.Push("1234567890123"))
	assert.Equal(t, "234567890123", a.String())

	err := a.Push("1a")
	require.ErrorIs(t, err, ErrInvalidDigit)
	assert.Equal(t, "234567890123", a.String())
}

func TestAmount_BackspaceAndClear(t *testing.T) {
	t.Parallel()

	a := NewAmount()
	require.NoError(t, a.Push("1234"))
	a.Backspace()
	assert.Equal(t, "000000000123", a.String())
	a.Clear()
	assert.Equal(t, "000000000000", a.String())
}

func TestAmount_AlwaysTwelveDigits(t *testing.T) {
	t.Parallel()

	a := NewAmount()
	for i := 0; i < 40; i++ {
		require.NoError(t, a.Push(fmt.Sprint(i%10)))
		assert.Len(t, a.String(), AmountLength)
		if i%7 == 0 {
			a.Backspace()
			assert.Len(t, a.String(), AmountLength)
		}
	}
}

func TestOpcode_SetAt(t *testing.T) {
	t.Parallel()

	o := NewOpcode()
	require.NoError(t, o.SetAt(7, 'A'))
	assert.Equal(t, "       A", o.String())

	err := o.SetAt(8, 'A')
	require.ErrorIs(t, err, ErrOutOfRange)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "8", verr.Value)
	assert.Equal(t, "       A", o.String())

	require.ErrorIs(t, o.SetAt(-1, 'B'), ErrOutOfRange)
	assert.Equal(t, byte('A'), o.At(7))
	assert.Equal(t, byte(' '), o.At(9))
}

func TestOpcode_ApplyPreset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		initial   string
		clearMask uint8
		presets   []OpcodePreset
		want      string
	}{
		{
			name:      "clear all",
			initial:   "ABCDABCD",
			clearMask: 0,
			want:      "        ",
		},
		{
			name:      "keep all",
			initial:   "ABCDABCD",
			clearMask: 0xFF,
			want:      "ABCDABCD",
		},
		{
			name:      "keep low nibble and preset",
			initial:   "WXYZWXYZ",
			clearMask: 0x0F,
			presets:   []OpcodePreset{{Value: 'A', Mask: 0x10}, {Value: 'F', Mask: 0x80}},
			want:      "WXYZA  F",
		},
		{
			name:    "later preset wins",
			initial: "        ",
			presets: []OpcodePreset{{Value: 'A', Mask: 0x01}, {Value: 'B', Mask: 0x01}},
			want:    "B       ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := NewOpcode()
			for i := 0; i < OpcodeLength; i++ {
				require.NoError(t, o.SetAt(i, tt.initial[i]))
			}
			o.ApplyPreset(tt.clearMask, tt.presets)
			assert.Equal(t, tt.want, o.String())
		})
	}
}

func TestBuffers_Reset(t *testing.T) {
	t.Parallel()

	b := NewBuffers()
	b.PIN = "1234"
	b.B = "b"
	b.C = "c"
	b.FDK = "A"
	require.NoError(t, b.Amount.Push("99"))
	require.NoError(t, b.Opcode.SetAt(0, 'A'))

	b.Reset()
	assert.Equal(t, NewBuffers(), b)
	assert.Equal(t, "000000000000", b.Amount.String())
	assert.Equal(t, "        ", b.Opcode.String())
}

func TestBuffers_PIN(t *testing.T) {
	t.Parallel()

	b := NewBuffers()
	for i := 0; i < MaxPINLength; i++ {
		require.NoError(t, b.AppendPIN("7"))
	}
	require.ErrorIs(t, b.AppendPIN("7"), ErrBufferFull)
	require.ErrorIs(t, b.AppendPIN("x"), ErrInvalidDigit)
	assert.Len(t, b.PIN, MaxPINLength)

	b.BackspacePIN()
	assert.Len(t, b.PIN, MaxPINLength-1)
}

func TestBuffers_General(t *testing.T) {
	t.Parallel()

	b := NewBuffers()
	require.NoError(t, b.AppendGeneral('B', strings.Repeat("1", MaxGeneralBuffer)))
	require.ErrorIs(t, b.AppendGeneral('B', "2"), ErrBufferFull)
	assert.Len(t, b.B, MaxGeneralBuffer)

	require.NoError(t, b.SetGeneral('c', "42"))
	b.TrimGeneral('C')
	assert.Equal(t, "4", b.C)

	require.ErrorIs(t, b.SetGeneral('D', "1"), ErrUnsupported)
}
