// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
)

// Persisted setting keys
const (
	SettingCoordinationNumber = "message_coordination_number"
	SettingConfigID           = "config_id"
	SettingTSN                = "tsn"
	SettingTransactionCount   = "transaction_count"
)

// DefaultConfigID is reported until the host loads one
const DefaultConfigID = "0000"

// Settings is a persisted key/value store
type Settings interface {
	Get(key string) string
	Set(key, value string) error
}

// CoordinationCounter hands out the rotating message coordination number
type CoordinationCounter struct {
	settings Settings
	log      *slog.Logger
}

// NewCoordinationCounter creates a counter persisted in settings
func NewCoordinationCounter(settings Settings, log *slog.Logger) *CoordinationCounter {
	return &CoordinationCounter{settings: settings, log: log}
}

// Next increments the stored character and returns it. An unset counter
// starts from '0'; anything past '~' wraps to '1'.
func (c *CoordinationCounter) Next() string {
	saved := c.settings.Get(SettingCoordinationNumber)
	if saved == "" {
		saved = "0"
	}

	code := int(saved[0]) + 1
	if code > '~' {
		code = '1'
	}
	next := string(rune(code))

	if err := c.settings.Set(SettingCoordinationNumber, next); err != nil {
		c.log.Warn("failed to persist coordination number", slog.Any("error", err))
	}
	return next
}

// Current returns the last issued number, or "" when none was issued
func (c *CoordinationCounter) Current() string {
	return c.settings.Get(SettingCoordinationNumber)
}

// initialCounters are reported before any transaction has been made
var initialCounters = ndc.SupplyCounters{
	TSN:                    "0000",
	TransactionCount:       "0000000",
	NotesInCassettes:       "00011000220003300044",
	NotesRejected:          "00000000000000000000",
	NotesDispensed:         "00000000000000000000",
	LastTrxnNotesDispensed: "00000000000000000000",
	CardCaptured:           "00000",
	EnvelopesDeposited:     "00000",
	CameraFilmRemaining:    "00000",
	LastEnvelopeSerial:     "00000",
}

// SupplyCounters tracks the counters reported to Send Supply Counters.
// The transaction serial number and count persist in settings.
type SupplyCounters struct {
	counters ndc.SupplyCounters
	settings Settings
	log      *slog.Logger
}

// LoadSupplyCounters restores persisted counters over the initial values
func LoadSupplyCounters(settings Settings, log *slog.Logger) *SupplyCounters {
	c := &SupplyCounters{counters: initialCounters, settings: settings, log: log}
	if v := settings.Get(SettingTSN); v != "" {
		c.counters.TSN = v
	}
	if v := settings.Get(SettingTransactionCount); v != "" {
		c.counters.TransactionCount = v
	}
	return c
}

// Snapshot returns a copy of the current counters
func (c *SupplyCounters) Snapshot() ndc.SupplyCounters {
	return c.counters
}

// RecordTransaction advances the serial number (wrapping 9999 to 0000) and
// the transaction count, then persists both
func (c *SupplyCounters) RecordTransaction() {
	c.counters.TSN = increment(c.counters.TSN, 4)
	c.counters.TransactionCount = increment(c.counters.TransactionCount, 7)

	if err := c.settings.Set(SettingTSN, c.counters.TSN); err != nil {
		c.log.Warn("failed to persist TSN", slog.Any("error", err))
	}
	if err := c.settings.Set(SettingTransactionCount, c.counters.TransactionCount); err != nil {
		c.log.Warn("failed to persist transaction count", slog.Any("error", err))
	}
}

// increment adds one to a zero-padded decimal counter of the given width,
// wrapping to zero. Unparsable values restart from zero.
func increment(value string, width int) string {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		n = 0
	} else {
		n++
	}
	limit := uint64(1)
	for i := 0; i < width; i++ {
		limit *= 10
	}
	return fmt.Sprintf("%0*d", width, n%limit)
}
