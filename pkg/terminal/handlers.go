// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"log/slog"
	"strconv"
	"strings"
)

// warn logs a validation failure in the context of a state
func (t *Terminal) warn(state State, msg string, err error) {
	t.log.Warn(msg,
		slog.String("state", state.StateNumber()),
		slog.String("type", state.StateType().String()),
		slog.Any("error", err))
}

// popActiveKey takes the next queued key if it is enabled. Inactive keys
// are consumed and discarded.
func (t *Terminal) popActiveKey() (Key, bool) {
	k, ok := t.session.queue.pop()
	if !ok || !t.session.Keys.IsActive(k.String()) {
		return 0, false
	}
	return k, true
}

// extension resolves an extension state reference
func (t *Terminal) extension(ref Ref) (*ExtensionState, error) {
	state, ok := t.providers.States.Get(string(ref))
	if !ok {
		return nil, invalid("extension state", string(ref), ErrNoExtension)
	}
	ext, ok := state.(*ExtensionState)
	if !ok {
		return nil, invalid("extension state", string(ref), ErrNotExtension)
	}
	return ext, nil
}

func (t *Terminal) setMask(state State, mask string) {
	if err := t.session.Keys.SetMask(mask); err != nil {
		t.warn(state, "invalid FDK mask", err)
	}
}

func (t *Terminal) processCardRead(s *CardReadState) Outcome {
	t.session.Buffers.Reset()
	t.session.queue.clear()
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)

	if t.session.Card != nil {
		return Continue(s.GoodReadNext)
	}
	return AwaitInput()
}

func (t *Terminal) processPINEntry(s *PINEntryState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.session.Keys.Clear()
	t.session.Keys.Enable('A')

	if card := t.session.Card; card != nil {
		t.session.MaxPINLength = t.providers.FITs.GetMaxPINLength(card.Number)
	} else {
		t.session.MaxPINLength = t.defaultMaxPIN
		t.warn(s, "no card for PIN length lookup, using default", ErrNoCard)
	}

	if len(t.session.Buffers.PIN) > 3 {
		return Continue(s.RemotePINCheckNext)
	}
	return AwaitInput()
}

func (t *Terminal) processPreset(s *PresetState) Outcome {
	presets := make([]OpcodePreset, 0, 8)
	for i, k := range fdkOrder {
		presets = append(presets, OpcodePreset{Value: byte(k), Mask: s.PresetMasks[i]})
	}

	if s.Extension.Valid() {
		ext, err := t.extension(s.Extension)
		if err != nil {
			t.warn(s, "extension state ignored", err)
		} else {
			// Extension entries 2-5 hold the masks for F, G, H and I
			for i, k := range []Key{'F', 'G', 'H', 'I'} {
				mask, err := strconv.ParseUint(ext.Entries[i+2], 10, 8)
				if err != nil {
					t.warn(s, "invalid preset mask", invalid("preset mask "+k.String(), ext.Entries[i+2], ErrOutOfRange))
					continue
				}
				presets = append(presets, OpcodePreset{Value: byte(k), Mask: uint8(mask)})
			}
		}
	}

	t.session.Buffers.Opcode.ApplyPreset(s.ClearMask, presets)
	return Continue(s.Next)
}

func (t *Terminal) processFourFDKSelection(s *FourFDKSelectionState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.session.Keys = s.FDKNext.mask()

	k, ok := t.popActiveKey()
	if !ok {
		return AwaitInput()
	}

	location, err := strconv.Atoi(s.BufferLocation)
	if err != nil || location < 0 || location >= OpcodeLength {
		t.warn(s, "invalid buffer location, opcode buffer unchanged",
			invalid("buffer location", s.BufferLocation, ErrOutOfRange))
	} else {
		t.session.Buffers.Opcode.SetAt(OpcodeLength-1-location, byte(k))
	}
	return Continue(s.FDKNext.For(k))
}

func (t *Terminal) processAmountEntry(s *AmountEntryState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.setMask(s, "015")

	// Re-entry with a queued key (Enter or an FDK) keeps the keyed amount
	if t.session.queue.len() == 0 {
		t.session.Buffers.Amount.Clear()
		return AwaitInput()
	}

	k, ok := t.popActiveKey()
	if !ok {
		return AwaitInput()
	}
	return Continue(s.FDKNext.For(k))
}

func (t *Terminal) processInformationEntry(s *InformationEntryState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.session.Keys = s.FDKNext.mask()

	if k, ok := t.popActiveKey(); ok {
		return Continue(s.FDKNext.For(k))
	}

	switch s.displayParam() {
	case '0', '1':
		t.session.Buffers.C = ""
	case '2', '3':
		t.session.Buffers.B = ""
	default:
		t.warn(s, "unsupported display parameter",
			invalid("display parameter", s.BufferAndDisplayParams, ErrUnsupported))
	}
	return AwaitInput()
}

func (t *Terminal) processClose(s *CloseState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ReceiptDeliveredScreen)
	t.session.Keys.Clear()
	t.session.queue.clear()
	t.session.Card = nil
	return AwaitInput()
}

func (t *Terminal) processInstitutionBranch(s *InstitutionBranchState) Outcome {
	card := t.session.Card
	if card == nil {
		t.warn(s, "institution branch without card", ErrNoCard)
		return AwaitInput()
	}

	id, ok := t.providers.FITs.GetInstitutionByCardNumber(card.Number)
	if !ok || id < 0 || id >= len(s.StatesTo) {
		t.warn(s, "institution branch failed", invalid("institution", card.Number, ErrUnknownInstitution))
		return AwaitInput()
	}
	return Continue(s.StatesTo[id])
}

func (t *Terminal) processFDKBranch(s *FDKBranchState) Outcome {
	k, ok := ParseKey(t.session.Buffers.FDK)
	if !ok {
		t.warn(s, "FDK buffer empty", invalid("FDK buffer", t.session.Buffers.FDK, ErrUnknownKey))
		return AwaitInput()
	}
	next, ok := s.States[k]
	if !ok {
		t.warn(s, "no branch for key", invalid("FDK buffer", k.String(), ErrUnknownKey))
		return AwaitInput()
	}
	return Continue(next)
}

func (t *Terminal) processFDKInformation(s *FDKInformationState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.setMask(s, s.FDKActiveMask)

	k, ok := t.popActiveKey()
	if !ok {
		return AwaitInput()
	}
	t.session.Buffers.FDK = k.String()

	if s.Extension.Valid() {
		ext, err := t.extension(s.Extension)
		if err != nil {
			t.warn(s, "extension state ignored", err)
		} else if err := t.storeExtensionValue(ext, k, s.BufferID); err != nil {
			t.warn(s, "buffer value not stored", err)
		}
	}
	return Continue(s.FDKNext)
}

// storeExtensionValue pads the value selected by key and routes it by
// buffer ID: position 1 selects buffer B (1), C (2) or amount (3), position
// 2 is the number of zeros to append.
func (t *Terminal) storeExtensionValue(ext *ExtensionState, k Key, bufferID string) error {
	value, ok := ext.ValueFor(k)
	if !ok {
		return invalid("extension value", k.String(), ErrUnknownKey)
	}
	if len(bufferID) != 3 || bufferID[2] < '0' || bufferID[2] > '9' {
		return invalid("buffer id", bufferID, ErrUnsupported)
	}
	value += strings.Repeat("0", int(bufferID[2]-'0'))

	switch bufferID[1] {
	case '1':
		return t.session.Buffers.SetGeneral('B', value)
	case '2':
		return t.session.Buffers.SetGeneral('C', value)
	case '3':
		return t.session.Buffers.Amount.Push(value)
	default:
		return invalid("buffer id", bufferID, ErrUnsupported)
	}
}

func (t *Terminal) processFDKOpcode(s *FDKOpcodeState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)
	t.setMask(s, s.FDKActiveMask)

	if s.Extension.Valid() {
		t.warn(s, "extension state on FDK opcode state is not supported",
			invalid("extension state", string(s.Extension), ErrUnsupported))
		return AwaitInput()
	}

	k, ok := t.popActiveKey()
	if !ok {
		return AwaitInput()
	}
	t.session.Buffers.FDK = k.String()

	position, err := strconv.Atoi(s.BufferPositions)
	if err != nil {
		err = invalid("opcode position", s.BufferPositions, ErrOutOfRange)
	} else {
		err = t.session.Buffers.Opcode.SetAt(position, byte(k))
	}
	if err != nil {
		t.warn(s, "opcode buffer unchanged", err)
	}
	return Continue(s.FDKNext)
}

func (t *Terminal) processICCAppInit(s *ICCAppInitState) Outcome {
	t.providers.Display.SetScreenByNumber(s.PleaseWaitScreen)

	ext, err := t.extension(s.Extension)
	if err != nil {
		t.warn(s, "ICC app init without extension state", err)
		return AwaitInput()
	}
	return Continue(extensionRef(ext.Entries[iccProcessingNotPerformedEntry]))
}

// extensionRef converts a state number stored in an extension entry
func extensionRef(s string) Ref {
	if s == "" || s == "255" {
		return NoRef
	}
	return Ref(s)
}
