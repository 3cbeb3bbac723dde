// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package statetable parses host-downloaded state table entries into the
// typed states run by the terminal engine.
//
// An entry is a three-digit state number, a type character and eight
// three-character fields (table entries 2 to 9):
//
//	000A001002003004005006007008
package statetable

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Thermoquad/ndcterm/pkg/terminal"
)

// Entry layout
const (
	NumberLength = 3
	FieldLength  = 3
	FieldCount   = 8
	EntryLength  = NumberLength + 1 + FieldCount*FieldLength
)

// ErrMalformedEntry is returned for entries that cannot be parsed
var ErrMalformedEntry = errors.New("malformed state entry")

// Table holds the loaded state table
type Table struct {
	states map[string]terminal.State
	log    *slog.Logger
}

// New creates an empty table
func New(log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{states: make(map[string]terminal.State), log: log}
}

// Get returns the state with the given number
func (t *Table) Get(number string) (terminal.State, bool) {
	s, ok := t.states[number]
	return s, ok
}

// Len returns the number of loaded states
func (t *Table) Len() int {
	return len(t.states)
}

// Add parses and loads entries. Either every entry loads or the table is
// left unchanged.
func (t *Table) Add(entries []string) bool {
	parsed := make([]terminal.State, 0, len(entries))
	for _, entry := range entries {
		s, err := Parse(entry)
		if err != nil {
			t.log.Warn("state table load rejected", slog.Any("error", err))
			return false
		}
		parsed = append(parsed, s)
	}

	for _, s := range parsed {
		t.states[s.StateNumber()] = s
	}
	t.log.Info("state table loaded", slog.Int("entries", len(parsed)), slog.Int("total", len(t.states)))
	return true
}

// ref maps the "255" sentinel to an absent reference
func ref(field string) terminal.Ref {
	if field == "255" {
		return terminal.NoRef
	}
	return terminal.Ref(field)
}

// extRef maps both "255" and "000" to an absent extension reference
func extRef(field string) terminal.Ref {
	if field == "000" {
		return terminal.NoRef
	}
	return ref(field)
}

func mask(field string) (uint8, error) {
	n, err := strconv.ParseUint(field, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: mask %q", ErrMalformedEntry, field)
	}
	return uint8(n), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Parse converts one entry into its typed state
func Parse(entry string) (terminal.State, error) {
	if len(entry) != EntryLength {
		return nil, fmt.Errorf("%w: %q has length %d (expected %d)", ErrMalformedEntry, entry, len(entry), EntryLength)
	}
	number := entry[:NumberLength]
	if !isDigits(number) {
		return nil, fmt.Errorf("%w: state number %q", ErrMalformedEntry, number)
	}

	tag := entry[NumberLength]
	var f [FieldCount]string
	for i := range f {
		start := NumberLength + 1 + i*FieldLength
		f[i] = entry[start : start+FieldLength]
	}

	h := terminal.Header{Number: number, Description: describe(terminal.Type(tag))}

	switch terminal.Type(tag) {
	case terminal.TypeCardRead:
		return &terminal.CardReadState{
			Header:         h,
			ScreenNumber:   f[0],
			GoodReadNext:   ref(f[1]),
			ErrorScreen:    f[2],
			ReadCondition1: f[3],
			ReadCondition2: f[4],
			ReadCondition3: f[5],
			CardReturnFlag: f[6],
			NoFITMatchNext: ref(f[7]),
		}, nil

	case terminal.TypePINEntry:
		return &terminal.PINEntryState{
			Header:               h,
			ScreenNumber:         f[0],
			TimeoutNext:          ref(f[1]),
			CancelNext:           ref(f[2]),
			LocalPINGoodNext:     ref(f[3]),
			LocalPINMaxBadNext:   ref(f[4]),
			ErrorScreen:          f[5],
			RemotePINCheckNext:   ref(f[6]),
			LocalPINCheckRetries: f[7],
		}, nil

	case terminal.TypePreset:
		s := &terminal.PresetState{Header: h, Next: ref(f[0]), Extension: extRef(f[7])}
		var err error
		if s.ClearMask, err = mask(f[1]); err != nil {
			return nil, err
		}
		for i := range s.PresetMasks {
			if s.PresetMasks[i], err = mask(f[2+i]); err != nil {
				return nil, err
			}
		}
		return s, nil

	case terminal.TypeFourFDKSelection:
		return &terminal.FourFDKSelectionState{
			Header:         h,
			ScreenNumber:   f[0],
			TimeoutNext:    ref(f[1]),
			CancelNext:     ref(f[2]),
			FDKNext:        fourKeys(f[3:7]),
			BufferLocation: f[7],
		}, nil

	case terminal.TypeAmountEntry:
		return &terminal.AmountEntryState{
			Header:              h,
			ScreenNumber:        f[0],
			TimeoutNext:         ref(f[1]),
			CancelNext:          ref(f[2]),
			FDKNext:             fourKeys(f[3:7]),
			AmountDisplayScreen: f[7],
		}, nil

	case terminal.TypeInformationEntry:
		return &terminal.InformationEntryState{
			Header:                 h,
			ScreenNumber:           f[0],
			TimeoutNext:            ref(f[1]),
			CancelNext:             ref(f[2]),
			FDKNext:                fourKeys(f[3:7]),
			BufferAndDisplayParams: f[7],
		}, nil

	case terminal.TypeTransactionRequest:
		return &terminal.TransactionRequestState{
			Header:            h,
			ScreenNumber:      f[0],
			TimeoutNext:       ref(f[1]),
			SendTrack2:        f[2],
			SendTrack1Track3:  f[3],
			SendOperationCode: f[4],
			SendAmountData:    f[5],
			SendPINBuffer:     f[6],
			SendBufferBC:      f[7],
		}, nil

	case terminal.TypeClose:
		return &terminal.CloseState{
			Header:                   h,
			ReceiptDeliveredScreen:   f[0],
			Next:                     ref(f[1]),
			NoReceiptDeliveredScreen: f[2],
			CardRetainedScreen:       f[3],
			StatementDeliveredScreen: f[4],
			BNANotesReturnedScreen:   f[6],
			Extension:                extRef(f[7]),
		}, nil

	case terminal.TypeInstitutionBranch:
		s := &terminal.InstitutionBranchState{Header: h}
		for i := range s.StatesTo {
			s.StatesTo[i] = ref(f[i])
		}
		return s, nil

	case terminal.TypeFDKBranch:
		s := &terminal.FDKBranchState{Header: h, States: make(map[terminal.Key]terminal.Ref)}
		for i, k := range []terminal.Key{'A', 'B', 'C', 'D', 'F', 'G', 'H', 'I'} {
			if r := ref(f[i]); r.Valid() {
				s.States[k] = r
			}
		}
		return s, nil

	case terminal.TypeFDKInformation:
		return &terminal.FDKInformationState{
			Header:        h,
			ScreenNumber:  f[0],
			TimeoutNext:   ref(f[1]),
			CancelNext:    ref(f[2]),
			FDKNext:       ref(f[3]),
			Extension:     extRef(f[4]),
			BufferID:      f[5],
			FDKActiveMask: f[6],
		}, nil

	case terminal.TypeFDKOpcode:
		return &terminal.FDKOpcodeState{
			Header:          h,
			ScreenNumber:    f[0],
			TimeoutNext:     ref(f[1]),
			CancelNext:      ref(f[2]),
			FDKNext:         ref(f[3]),
			Extension:       extRef(f[4]),
			BufferPositions: f[5],
			FDKActiveMask:   f[6],
		}, nil

	case terminal.TypeExtension:
		s := &terminal.ExtensionState{Header: h}
		copy(s.Entries[2:], f[:])
		return s, nil

	case terminal.TypeICCInit:
		return &terminal.ICCInitState{
			Header:         h,
			StartedNext:    ref(f[0]),
			NotStartedNext: ref(f[1]),
			Requirement:    f[2],
		}, nil

	case terminal.TypeICCAppInit:
		return &terminal.ICCAppInitState{
			Header:                h,
			PleaseWaitScreen:      f[0],
			AppNameTemplateScreen: f[1],
			AppNameScreen:         f[2],
			Extension:             extRef(f[3]),
		}, nil

	case terminal.TypeICCReinit:
		return &terminal.ICCReinitState{
			Header:                     h,
			GoodReadNext:               ref(f[0]),
			ProcessingFailedNext:       ref(f[1]),
			ProcessingNotPerformedNext: ref(f[2]),
		}, nil

	case terminal.TypeICCData:
		return &terminal.ICCDataState{Header: h, Next: ref(f[0])}, nil

	default:
		return &terminal.UnknownState{Header: h, Tag: tag, Fields: f}, nil
	}
}

func fourKeys(f []string) terminal.FourKeys {
	var k terminal.FourKeys
	for i := range k {
		k[i] = ref(f[i])
	}
	return k
}

var descriptions = map[terminal.Type]string{
	terminal.TypeCardRead:           "Card read state",
	terminal.TypePINEntry:           "PIN Entry state",
	terminal.TypePreset:             "Pre-set Operation Code Buffer",
	terminal.TypeFourFDKSelection:   "Four FDK selection state",
	terminal.TypeAmountEntry:        "Amount entry state",
	terminal.TypeInformationEntry:   "Information Entry State",
	terminal.TypeTransactionRequest: "Transaction request state",
	terminal.TypeClose:              "Close state",
	terminal.TypeInstitutionBranch:  "FIT Switch state",
	terminal.TypeFDKBranch:          "FDK Switch state",
	terminal.TypeFDKInformation:     "FDK information entry state",
	terminal.TypeFDKOpcode:          "Eight FDK selection state",
	terminal.TypeExtension:          "Extension state",
	terminal.TypeICCInit:            "Begin ICC Initialisation state",
	terminal.TypeICCAppInit:         "Complete ICC Application Initialisation state",
	terminal.TypeICCReinit:          "ICC Re-initialise state",
	terminal.TypeICCData:            "Set ICC Transaction Data state",
}

func describe(t terminal.Type) string {
	if d, ok := descriptions[t]; ok {
		return d
	}
	return "Unknown state type " + t.String()
}
