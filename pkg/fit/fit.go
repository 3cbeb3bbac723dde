// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fit implements the Financial Institution Table.
//
// Each FIT entry is a run of three-digit decimal bytes. Byte 0 is the
// institution index (PIDDX), bytes 1-5 the card number prefix (PFIID) as
// hex nibbles terminated by an F nibble, and byte 8 the maximum PIN length
// (PMXPN).
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Byte offsets within an entry
const (
	offsetPIDDX   = 0
	offsetPFIID   = 1
	lengthPFIID   = 5
	offsetPMXPN   = 8
	minEntryBytes = offsetPMXPN + 1
	MinPINLength  = 4
	// ISO 9564 format 0 blocks carry at most 12 PIN digits
	MaxPINLength  = 12
	DefaultMaxPIN = MaxPINLength
)

// ErrMalformedEntry is returned for entries that cannot be decoded
var ErrMalformedEntry = errors.New("malformed FIT entry")

// Entry is one decoded institution
type Entry struct {
	Institution int
	Prefix      string
	MaxPIN      int
}

// Table holds FIT entries in load order
type Table struct {
	entries []Entry
	log     *slog.Logger
}

// New creates an empty table
func New(log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{log: log}
}

// ParseEntry decodes one FIT entry
func ParseEntry(entry string) (Entry, error) {
	if len(entry)%3 != 0 || len(entry)/3 < minEntryBytes {
		return Entry{}, fmt.Errorf("%w: %q has length %d", ErrMalformedEntry, entry, len(entry))
	}

	bytes := make([]byte, len(entry)/3)
	for i := range bytes {
		n, err := strconv.ParseUint(entry[i*3:i*3+3], 10, 8)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: byte %d %q", ErrMalformedEntry, i, entry[i*3:i*3+3])
		}
		bytes[i] = byte(n)
	}

	var prefix strings.Builder
	for _, b := range bytes[offsetPFIID : offsetPFIID+lengthPFIID] {
		hi, lo := b>>4, b&0x0F
		if hi == 0x0F {
			break
		}
		prefix.WriteByte('0' + hi%10)
		if lo == 0x0F {
			break
		}
		prefix.WriteByte('0' + lo%10)
	}
	if prefix.Len() == 0 {
		return Entry{}, fmt.Errorf("%w: empty card prefix", ErrMalformedEntry)
	}

	// Bit 7 of PMXPN is a flag; the low bits hold the length
	maxPIN := int(bytes[offsetPMXPN] & 0x7F)
	if maxPIN < MinPINLength {
		maxPIN = MinPINLength
	}
	if maxPIN > MaxPINLength {
		maxPIN = MaxPINLength
	}

	return Entry{
		Institution: int(bytes[offsetPIDDX]),
		Prefix:      prefix.String(),
		MaxPIN:      maxPIN,
	}, nil
}

// Add loads entries, replacing the table. A malformed entry rejects the
// whole load.
func (t *Table) Add(entries []string) bool {
	parsed := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry, err := ParseEntry(e)
		if err != nil {
			t.log.Warn("FIT load rejected", slog.Any("error", err))
			return false
		}
		parsed = append(parsed, entry)
	}
	t.entries = parsed
	t.log.Info("FIT loaded", slog.Int("entries", len(parsed)))
	return true
}

// Entries returns the loaded entries
func (t *Table) Entries() []Entry {
	return t.entries
}

// Lookup returns the entry with the longest prefix matching cardNumber
func (t *Table) Lookup(cardNumber string) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range t.entries {
		if strings.HasPrefix(cardNumber, e.Prefix) && (!found || len(e.Prefix) > len(best.Prefix)) {
			best, found = e, true
		}
	}
	return best, found
}

// GetMaxPINLength returns the PIN length for the card's institution, or
// DefaultMaxPIN when no entry matches
func (t *Table) GetMaxPINLength(cardNumber string) int {
	e, ok := t.Lookup(cardNumber)
	if !ok {
		t.log.Debug("no FIT entry for card, using default PIN length", slog.Int("max_pin", DefaultMaxPIN))
		return DefaultMaxPIN
	}
	return e.MaxPIN
}

// GetInstitutionByCardNumber returns the institution index for the card
func (t *Table) GetInstitutionByCardNumber(cardNumber string) (int, bool) {
	e, ok := t.Lookup(cardNumber)
	if !ok {
		return 0, false
	}
	return e.Institution, true
}
