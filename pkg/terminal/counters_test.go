// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCoordinationCounter_Next(t *testing.T) {
	t.Parallel()

	settings := memSettings{}
	c := NewCoordinationCounter(settings, discardLogger())

	assert.Equal(t, "", c.Current())
	assert.Equal(t, "1", c.Next())
	assert.Equal(t, "1", settings[SettingCoordinationNumber])

	prev := c.Current()
	for i := 0; i < 50; i++ {
		next := c.Next()
		require.Greater(t, next[0], prev[0])
		prev = next
	}
}

func TestCoordinationCounter_Wraps(t *testing.T) {
	t.Parallel()

	settings := memSettings{SettingCoordinationNumber: "~"}
	c := NewCoordinationCounter(settings, discardLogger())

	assert.Equal(t, "1", c.Next())
	assert.Equal(t, "2", c.Next())

	settings[SettingCoordinationNumber] = "}"
	assert.Equal(t, "~", c.Next())
	assert.Equal(t, "1", c.Next())
}

func TestCoordinationCounter_NeverOutOfRange(t *testing.T) {
	t.Parallel()

	c := NewCoordinationCounter(memSettings{}, discardLogger())
	for i := 0; i < 500; i++ {
		n := c.Next()
		require.Len(t, n, 1)
		require.GreaterOrEqual(t, n[0], byte('1'))
		require.LessOrEqual(t, n[0], byte('~'))
	}
}

func TestSupplyCounters(t *testing.T) {
	t.Parallel()

	settings := memSettings{}
	c := LoadSupplyCounters(settings, discardLogger())
	assert.Equal(t, initialCounters, c.Snapshot())

	c.RecordTransaction()
	snap := c.Snapshot()
	assert.Equal(t, "0001", snap.TSN)
	assert.Equal(t, "0000001", snap.TransactionCount)
	assert.Equal(t, "0001", settings[SettingTSN])
	assert.Equal(t, "0000001", settings[SettingTransactionCount])

	restored := LoadSupplyCounters(settings, discardLogger())
	assert.Equal(t, snap, restored.Snapshot())
}

func TestSupplyCounters_TSNWraps(t *testing.T) {
	t.Parallel()

	settings := memSettings{SettingTSN: "9999", SettingTransactionCount: "0009999"}
	c := LoadSupplyCounters(settings, discardLogger())
	c.RecordTransaction()

	assert.Equal(t, "0000", c.Snapshot().TSN)
	assert.Equal(t, "0010000", c.Snapshot().TransactionCount)
}

func TestParseTrack2(t *testing.T) {
	t.Parallel()

	card, err := ParseTrack2(testTrack2)
	require.NoError(t, err)
	assert.Equal(t, &Card{Number: "4000001234562000", ServiceCode: "101", Track2: testTrack2}, card)

	card, err = ParseTrack2("4000001234562000=2512201")
	require.NoError(t, err)
	assert.Equal(t, "201", card.ServiceCode)

	for _, bad := range []string{"", ";4000001234562000?", "=2512101", "40000A=2512101", "4000=251"} {
		_, err := ParseTrack2(bad)
		assert.ErrorIs(t, err, ErrInvalidTrack2, "track %q", bad)
	}
}
