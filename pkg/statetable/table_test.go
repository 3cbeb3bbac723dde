// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statetable

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ndcterm/pkg/terminal"
)

func newTable() *Table {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entry string
		want  terminal.State
	}{
		{
			entry: "000A870500128002002002001127",
			want: &terminal.CardReadState{
				Header:         terminal.Header{Number: "000", Description: "Card read state"},
				ScreenNumber:   "870",
				GoodReadNext:   "500",
				ErrorScreen:    "128",
				ReadCondition1: "002",
				ReadCondition2: "002",
				ReadCondition3: "002",
				CardReturnFlag: "001",
				NoFITMatchNext: "127",
			},
		},
		{
			entry: "500B024002131026026139026003",
			want: &terminal.PINEntryState{
				Header:               terminal.Header{Number: "500", Description: "PIN Entry state"},
				ScreenNumber:         "024",
				TimeoutNext:          "002",
				CancelNext:           "131",
				LocalPINGoodNext:     "026",
				LocalPINMaxBadNext:   "026",
				ErrorScreen:          "139",
				RemotePINCheckNext:   "026",
				LocalPINCheckRetries: "003",
			},
		},
		{
			entry: "026D027000128000000000000255",
			want: &terminal.PresetState{
				Header:      terminal.Header{Number: "026", Description: "Pre-set Operation Code Buffer"},
				Next:        "027",
				ClearMask:   0,
				PresetMasks: [4]uint8{128, 0, 0, 0},
			},
		},
		{
			entry: "027E053002131255255029028005",
			want: &terminal.FourFDKSelectionState{
				Header:         terminal.Header{Number: "027", Description: "Four FDK selection state"},
				ScreenNumber:   "053",
				TimeoutNext:    "002",
				CancelNext:     "131",
				FDKNext:        terminal.FourKeys{terminal.NoRef, terminal.NoRef, "029", "028"},
				BufferLocation: "005",
			},
		},
		{
			entry: "029I022002001000001001001003",
			want: &terminal.TransactionRequestState{
				Header:            terminal.Header{Number: "029", Description: "Transaction request state"},
				ScreenNumber:      "022",
				TimeoutNext:       "002",
				SendTrack2:        "001",
				SendTrack1Track3:  "000",
				SendOperationCode: "001",
				SendAmountData:    "001",
				SendPINBuffer:     "001",
				SendBufferBC:      "003",
			},
		},
		{
			entry: "040X100002131050060013015000",
			want: &terminal.FDKInformationState{
				Header:        terminal.Header{Number: "040", Description: "FDK information entry state"},
				ScreenNumber:  "100",
				TimeoutNext:   "002",
				CancelNext:    "131",
				FDKNext:       "050",
				Extension:     "060",
				BufferID:      "013",
				FDKActiveMask: "015",
			},
		},
		{
			entry: "041Y100002131050000002015000",
			want: &terminal.FDKOpcodeState{
				Header:          terminal.Header{Number: "041", Description: "Eight FDK selection state"},
				ScreenNumber:    "100",
				TimeoutNext:     "002",
				CancelNext:      "131",
				FDKNext:         "050",
				BufferPositions: "002",
				FDKActiveMask:   "015",
			},
		},
		{
			entry: "060Z001002003004005006007008",
			want: &terminal.ExtensionState{
				Header:  terminal.Header{Number: "060", Description: "Extension state"},
				Entries: [10]string{"", "", "001", "002", "003", "004", "005", "006", "007", "008"},
			},
		},
		{
			entry: "070Q001002003004005006007008",
			want: &terminal.UnknownState{
				Header: terminal.Header{Number: "070", Description: "Unknown state type Q"},
				Tag:    'Q',
				Fields: [8]string{"001", "002", "003", "004", "005", "006", "007", "008"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.entry)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_FDKBranch(t *testing.T) {
	t.Parallel()

	got, err := Parse("050W051052255255053255255054")
	require.NoError(t, err)

	w, ok := got.(*terminal.FDKBranchState)
	require.True(t, ok)
	assert.Equal(t, map[terminal.Key]terminal.Ref{'A': "051", 'B': "052", 'F': "053", 'I': "054"}, w.States)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	for _, entry := range []string{
		"",
		"000A",
		"00XA001002003004005006007008",
		"000A0010020030040050060070089",
		"026D027XYZ128000000000000255",
		"026D027000999000000000000255",
	} {
		_, err := Parse(entry)
		assert.ErrorIs(t, err, ErrMalformedEntry, "entry %q", entry)
	}
}

func TestTable_Add(t *testing.T) {
	t.Parallel()

	table := newTable()
	require.True(t, table.Add([]string{
		"000A870500128002002002001127",
		"500B024002131026026139026003",
	}))
	assert.Equal(t, 2, table.Len())

	s, ok := table.Get("500")
	require.True(t, ok)
	assert.Equal(t, terminal.TypePINEntry, s.StateType())

	// A bad entry rejects the whole load
	assert.False(t, table.Add([]string{"600J001002003004005006007008", "bad"}))
	_, ok = table.Get("600")
	assert.False(t, ok)
	assert.Equal(t, 2, table.Len())

	// Reloading a number replaces it
	require.True(t, table.Add([]string{"500J001002003004005006007008"}))
	s, _ = table.Get("500")
	assert.Equal(t, terminal.TypeClose, s.StateType())
}

func TestTable_SentinelReferences(t *testing.T) {
	t.Parallel()

	table := newTable()
	require.True(t, table.Add([]string{
		"000A001002003004005006007255",
	}))

	s, ok := table.Get("000")
	require.True(t, ok)
	a := s.(*terminal.CardReadState)
	assert.Equal(t, terminal.Ref("002"), a.GoodReadNext)
	assert.False(t, a.NoFITMatchNext.Valid())
}
