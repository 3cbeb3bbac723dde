// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"log/slog"
	"strings"
)

// Pinpad keys other than digits
const (
	PinpadEnter     = "enter"
	PinpadBackspace = "backspace"
	PinpadEsc       = "esc"
)

// ReadCard stores the card from track 2 data and starts at the first state
func (t *Terminal) ReadCard(track2 string) error {
	card, err := ParseTrack2(track2)
	if err != nil {
		t.log.Warn("card read failed", slog.Any("error", err))
		return err
	}
	t.session.Card = card
	t.session.clearTransaction()
	t.log.Info("card read", slog.String("card", maskNumber(card.Number)))
	return t.ProcessState(FirstState)
}

// PressFDK handles a function key press in the current state
func (t *Terminal) PressFDK(name string) {
	k, ok := ParseKey(name)
	if !ok {
		t.log.Warn("unknown FDK", slog.String("key", name))
		return
	}

	current := t.session.Current
	if current == nil {
		t.log.Debug("FDK pressed with no current state", slog.String("key", name))
		return
	}

	switch s := current.(type) {
	case *PINEntryState:
		if k == 'A' && len(t.session.Buffers.PIN) >= 4 {
			t.ProcessState(s.Number)
		}
		return
	case *InformationEntryState:
		t.session.Keys = s.FDKNext.mask()
		if !t.session.Keys.IsActive(name) {
			return
		}
	case *TransactionRequestState:
		// Re-entering a request state sends a new request; only an
		// interactive response expects keyed data here
		if !t.session.Interactive {
			t.log.Debug("FDK ignored while a request is outstanding", slog.String("key", name))
			return
		}
	}

	// Only active keys are queued
	if !t.session.Keys.IsActive(name) {
		t.log.Debug("inactive FDK ignored", slog.String("key", name))
		return
	}
	t.enqueue(k)
	t.ProcessState(current.StateNumber())
}

func (t *Terminal) enqueue(k Key) {
	if !t.session.queue.push(k) {
		t.log.Warn("key queue full, press dropped",
			slog.String("key", k.String()),
			slog.Int("capacity", t.session.queue.capacity))
	}
}

// PressPinpad handles a pinpad key: a digit, enter, backspace or esc
func (t *Terminal) PressPinpad(key string) {
	key = strings.ToLower(key)
	switch s := t.session.Current.(type) {
	case *PINEntryState:
		t.pinpadPIN(s, key)
	case *AmountEntryState:
		t.pinpadAmount(s, key)
	case *InformationEntryState:
		t.pinpadInformation(s, key)
	default:
		typ := "none"
		if s != nil {
			typ = s.StateType().String()
		}
		t.log.Warn("no keyboard entry allowed", slog.String("type", typ))
	}
}

func (t *Terminal) pinpadPIN(s *PINEntryState, key string) {
	b := &t.session.Buffers
	switch key {
	case PinpadBackspace:
		b.BackspacePIN()
	case PinpadEnter:
		if len(b.PIN) >= 4 {
			t.ProcessState(s.Number)
		}
	case PinpadEsc:
		b.PIN = ""
	default:
		if err := b.AppendPIN(key); err != nil {
			t.warn(s, "PIN key ignored", err)
			break
		}
		if len(b.PIN) == t.session.MaxPINLength {
			t.ProcessState(s.Number)
		}
	}
	t.providers.Display.InsertText(b.PIN, '*')
}

func (t *Terminal) pinpadAmount(s *AmountEntryState, key string) {
	b := &t.session.Buffers
	switch key {
	case PinpadEnter:
		// Enter acts as FDK A
		t.enqueue('A')
		t.ProcessState(s.Number)
		return
	case PinpadBackspace:
		b.Amount.Backspace()
	case PinpadEsc:
		b.Amount.Clear()
	default:
		if len(key) != 1 {
			t.warn(s, "amount key ignored", invalid("amount key", key, ErrInvalidDigit))
			return
		}
		if err := b.Amount.Push(key); err != nil {
			t.warn(s, "amount key ignored", err)
			return
		}
	}
	t.providers.Display.InsertText(b.Amount.String(), 0)
}

func (t *Terminal) pinpadInformation(s *InformationEntryState, key string) {
	var which, mask byte
	switch s.displayParam() {
	case '0':
		which, mask = 'C', 'X'
	case '1':
		which = 'C'
	case '2':
		which, mask = 'B', 'X'
	case '3':
		which = 'B'
	default:
		t.warn(s, "unsupported display parameter",
			invalid("display parameter", s.BufferAndDisplayParams, ErrUnsupported))
		return
	}

	b := &t.session.Buffers
	switch key {
	case PinpadBackspace:
		b.TrimGeneral(which)
	case PinpadEsc:
		b.SetGeneral(which, "")
	case PinpadEnter:
		return
	default:
		if err := b.AppendGeneral(which, key); err != nil {
			t.log.Debug("information key ignored", slog.Any("error", err))
			return
		}
	}

	text := b.B
	if which == 'C' {
		text = b.C
	}
	t.providers.Display.InsertText(text, mask)
}

// maskNumber keeps the first six and last four digits of a card number
func maskNumber(number string) string {
	if len(number) <= 10 {
		return number
	}
	return number[:6] + strings.Repeat("*", len(number)-10) + number[len(number)-4:]
}
