// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fit

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable() *Table {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry string
		want  Entry
	}{
		{
			// PFIID 0x40 0x00 0x00 0xFF: prefix 400000
			name:  "visa test range",
			entry: "000064000000255255000000006",
			want:  Entry{Institution: 0, Prefix: "400000", MaxPIN: 6},
		},
		{
			// PFIID 0x41 0x8F: prefix 418, PMXPN 0x84 flags 4 digits
			name:  "odd nibble prefix",
			entry: "001065143255255255000000132",
			want:  Entry{Institution: 1, Prefix: "418", MaxPIN: 4},
		},
		{
			name:  "max PIN clamped high",
			entry: "002081255255255255000000040",
			want:  Entry{Institution: 2, Prefix: "51", MaxPIN: MaxPINLength},
		},
		{
			name:  "max PIN above block limit",
			entry: "004081255255255255000000016",
			want:  Entry{Institution: 4, Prefix: "51", MaxPIN: 12},
		},
		{
			name:  "max PIN clamped low",
			entry: "003081255255255255000000001000000",
			want:  Entry{Institution: 3, Prefix: "51", MaxPIN: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEntry(tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntry_Malformed(t *testing.T) {
	t.Parallel()

	for _, entry := range []string{
		"",
		"0000640000002552550000000000",
		"000064000000255255000000",
		"000256000000255255000000000006",
		"000255000000255255000000000006",
		"00006400000025525500000000000x",
	} {
		_, err := ParseEntry(entry)
		assert.ErrorIs(t, err, ErrMalformedEntry, "entry %q", entry)
	}
}

func TestTable_Lookup(t *testing.T) {
	t.Parallel()

	table := newTable()
	require.True(t, table.Add([]string{
		"000079255255255255000000012", // 4
		"001064000000255255000000006", // 400000
		"002081255255255255000000005", // 51
	}))

	assert.Equal(t, 6, table.GetMaxPINLength("4000001234562000"))
	id, ok := table.GetInstitutionByCardNumber("4000001234562000")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = table.GetInstitutionByCardNumber("4111111111111111")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, 12, table.GetMaxPINLength("4111111111111111"))

	_, ok = table.GetInstitutionByCardNumber("6011000000000000")
	assert.False(t, ok)
	assert.Equal(t, DefaultMaxPIN, table.GetMaxPINLength("6011000000000000"))
}

func TestTable_AddRejectsWholeLoad(t *testing.T) {
	t.Parallel()

	table := newTable()
	require.True(t, table.Add([]string{"000079255255255255000000012"}))
	assert.False(t, table.Add([]string{"001081255255255255000000005", "bad"}))
	assert.Len(t, table.Entries(), 1)
}
