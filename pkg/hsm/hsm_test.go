// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hsm

import (
	"crypto/des"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPAN = "4000001234562000"

var (
	masterKey = mustHex("0123456789ABCDEFFEDCBA9876543210")
	commsKey  = mustHex("00112233445566778899AABBCCDDEEFF")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fromHostFormat reverses HostFormat
func fromHostFormat(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Map(func(r rune) rune {
		if r >= ':' && r <= '?' {
			return r - ':' + 'A'
		}
		return r
	}, s))
	require.NoError(t, err)
	return b
}

func decrypt(t *testing.T, key, data []byte) []byte {
	t.Helper()
	block, err := newBlock(key)
	require.NoError(t, err)
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += des.BlockSize {
		block.Decrypt(out[i:], data[i:i+des.BlockSize])
	}
	return out
}

func TestPINBlock(t *testing.T) {
	t.Parallel()

	block, err := PINBlock("1234", testPAN)
	require.NoError(t, err)
	assert.Equal(t, "041234FEDCBA9DFF", strings.ToUpper(hex.EncodeToString(block)))

	for _, pin := range []string{"123", "1234567890123", "12a4"} {
		_, err := PINBlock(pin, testPAN)
		assert.ErrorIs(t, err, ErrInvalidPIN, "pin %q", pin)
	}
	_, err = PINBlock("1234", "12345")
	assert.ErrorIs(t, err, ErrInvalidPAN)
}

func TestHostFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":;09?0", HostFormat([]byte{0xAB, 0x09, 0xF0}))
	assert.Equal(t, "", HostFormat(nil))
}

func TestGetEncryptedPIN_MasterKey(t *testing.T) {
	t.Parallel()

	keys, err := New(masterKey, discard())
	require.NoError(t, err)
	assert.False(t, keys.HasCommsKey())

	out, err := keys.GetEncryptedPIN("1234", testPAN)
	require.NoError(t, err)
	assert.Len(t, out, 16)
	assert.NotContains(t, out, "A")

	want, err := PINBlock("1234", testPAN)
	require.NoError(t, err)
	assert.Equal(t, want, decrypt(t, masterKey, fromHostFormat(t, out)))
}

func TestSetCommsKey(t *testing.T) {
	t.Parallel()

	keys, err := New(masterKey, discard())
	require.NoError(t, err)

	// Encrypt the comms key under the master key as the host would
	master, err := newBlock(masterKey)
	require.NoError(t, err)
	encrypted := make([]byte, len(commsKey))
	for i := 0; i < len(commsKey); i += des.BlockSize {
		master.Encrypt(encrypted[i:], commsKey[i:i+des.BlockSize])
	}
	var data strings.Builder
	for _, b := range encrypted {
		fmt.Fprintf(&data, "%03d", b)
	}

	require.NoError(t, keys.SetCommsKey(data.String(), "030"))
	assert.True(t, keys.HasCommsKey())

	out, err := keys.GetEncryptedPIN("987654", testPAN)
	require.NoError(t, err)
	want, err := PINBlock("987654", testPAN)
	require.NoError(t, err)
	assert.Equal(t, want, decrypt(t, commsKey, fromHostFormat(t, out)))
}

func TestSetCommsKey_Errors(t *testing.T) {
	t.Parallel()

	noMaster, err := New(nil, discard())
	require.NoError(t, err)
	require.ErrorIs(t, noMaster.SetCommsKey("001", "003"), ErrNoKey)
	_, err = noMaster.GetEncryptedPIN("1234", testPAN)
	require.ErrorIs(t, err, ErrNoKey)

	keys, err := New(masterKey, discard())
	require.NoError(t, err)
	tests := []struct {
		name   string
		data   string
		length string
	}{
		{"length beyond data", "001002", "030"},
		{"bad length", "001", "xyz"},
		{"not a byte", strings.Repeat("999", 8), "018"},
		{"not a block", strings.Repeat("001", 7), "015"},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, keys.SetCommsKey(tt.data, tt.length), ErrInvalidKey, tt.name)
	}
	assert.False(t, keys.HasCommsKey())
}

func TestParseHexKey(t *testing.T) {
	t.Parallel()

	key, err := ParseHexKey("0123456789ABCDEFFEDCBA9876543210")
	require.NoError(t, err)
	assert.Len(t, key, 16)

	_, err = ParseHexKey("0123")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParseHexKey("zz")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
