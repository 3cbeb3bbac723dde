// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFDKSet_DecimalMask(t *testing.T) {
	t.Parallel()

	order := []string{"A", "B", "C", "D", "F", "G", "H", "I"}
	for m := 0; m <= 255; m++ {
		var s FDKSet
		mask := fmt.Sprintf("%03d", m)
		require.NoError(t, s.SetMask(mask))

		for bit, key := range order {
			want := m&(1<<uint(bit)) != 0
			assert.Equal(t, want, s.IsActive(key), "mask %s key %s", mask, key)
		}
		assert.False(t, s.IsActive("E"), "mask %s enabled E", mask)
	}
}

func TestFDKSet_BinaryMask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mask string
		want string
	}{
		{"0100000000", "A"},
		{"1000010000", "E"},
		{"x111111111", "ABCDEFGHI"},
		{"00001", "D"},
		{"0000000001111", "I"},
		{"00000", ""},
	}

	for _, tt := range tests {
		t.Run(tt.mask, func(t *testing.T) {
			t.Parallel()
			var s FDKSet
			require.NoError(t, s.SetMask(tt.mask))
			assert.Equal(t, tt.want, s.String())
		})
	}
}

func TestFDKSet_InvalidMaskKeepsSet(t *testing.T) {
	t.Parallel()

	var s FDKSet
	require.NoError(t, s.SetMask("015"))

	require.ErrorIs(t, s.SetMask(""), ErrEmptyMask)
	require.ErrorIs(t, s.SetMask("256"), ErrOutOfRange)
	require.ErrorIs(t, s.SetMask("1x"), ErrOutOfRange)
	assert.Equal(t, "ABCD", s.String())
}

func TestFDKSet_IsActive(t *testing.T) {
	t.Parallel()

	var s FDKSet
	s.Enable('A', 'G')
	assert.True(t, s.IsActive("a"))
	assert.True(t, s.IsActive("G"))
	assert.False(t, s.IsActive("B"))
	assert.False(t, s.IsActive(""))
	assert.False(t, s.IsActive("AB"))
	assert.False(t, s.IsActive("Z"))

	s.Clear()
	assert.Empty(t, s.Keys())
}
