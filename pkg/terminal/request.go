// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"log/slog"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
)

// processTransactionRequest assembles the request selected by the state's
// send flags and parks it for the transport. It never continues.
func (t *Terminal) processTransactionRequest(s *TransactionRequestState) Outcome {
	t.providers.Display.SetScreenByNumber(s.ScreenNumber)

	req := ndc.NewTransactionRequest(t.coordination.Next())

	if t.session.Interactive {
		t.session.Interactive = false
		// Keyboard data after an interactive response goes to buffer B
		if k, ok := t.popActiveKey(); ok {
			t.session.Buffers.B = k.String()
			req.BufferB = k.String()
		}
	} else {
		t.fillRequest(s, req)
	}

	t.session.request = req
	t.session.Outstanding = req.MessageCoordinationNumber
	t.counters.RecordTransaction()

	t.log.Info("transaction request ready",
		slog.String("state", s.Number),
		slog.String("coordination", req.MessageCoordinationNumber))
	return AwaitInput()
}

func (t *Terminal) fillRequest(s *TransactionRequestState, req *ndc.Message) {
	b := &t.session.Buffers
	card := t.session.Card

	if s.SendTrack2 == SendYes {
		if card != nil {
			req.Track2 = card.Track2
		} else {
			t.warn(s, "track 2 requested without card", ErrNoCard)
		}
	}

	// Track 1 and track 3 are never sent

	if s.SendOperationCode == SendYes {
		req.OpcodeBuffer = b.Opcode.String()
	}
	if s.SendAmountData == SendYes {
		req.AmountBuffer = b.Amount.String()
	}

	switch s.SendPINBuffer {
	case SendYes, SendPINExtendedYes:
		number := ""
		if card != nil {
			number = card.Number
		}
		pin, err := t.providers.Crypto.GetEncryptedPIN(b.PIN, number)
		if err != nil {
			t.warn(s, "PIN buffer not sent", err)
		} else {
			req.PINBuffer = pin
		}
	}

	switch s.SendBufferBC {
	case SendNo:
	case SendBufferB:
		req.BufferB = b.B
	case SendBufferC:
		req.BufferC = b.C
	case SendBuffersBC:
		req.BufferB = b.B
		req.BufferC = b.C
	default:
		// In the extended format this entry names an extension state
		if s.SendPINBuffer == SendPINExtendedNo || s.SendPINBuffer == SendPINExtendedYes {
			t.log.Error("extended buffer B/C format is not supported",
				slog.String("state", s.Number),
				slog.Any("error", invalid("send buffer B/C", s.SendBufferBC, ErrUnsupported)))
		} else {
			t.warn(s, "invalid send buffer B/C flag", invalid("send buffer B/C", s.SendBufferBC, ErrUnsupported))
		}
	}
}

// TakeTransactionRequest returns the pending transaction request and
// clears it. It returns nil when none is pending.
func (t *Terminal) TakeTransactionRequest() *ndc.Message {
	req := t.session.request
	t.session.request = nil
	return req
}
