// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "terminal command",
			msg:  &Message{Class: ClassTerminalCommand, CommandCode: CommandGoInService},
		},
		{
			name: "state table load",
			msg: &Message{
				Class:             ClassDataCommand,
				Subclass:          SubclassCustomization,
				MessageIdentifier: IdentifierStateTableLoad,
				States:            []string{"000A001002003004005006007008", "002D003000000000000000000000"},
			},
		},
		{
			name: "screen data with framing bytes",
			msg: &Message{
				Class:           ClassDataCommand,
				Subclass:        SubclassInteractiveResponse,
				ActiveKeys:      "0110",
				ScreenDataField: "\x0cAB~\x7d\x7fCD",
			},
		},
		{
			name: "terminal state with counters",
			msg: &Message{
				Class:            ClassSolicited,
				Subclass:         SubclassStatus,
				StatusDescriptor: StatusTerminalState,
				SupplyCounters: SupplyCounters{
					TSN:              "0001",
					TransactionCount: "0000001",
					NotesInCassettes: "00011000220003300044",
				},
			},
		},
		{
			name: "transaction request",
			msg: &Message{
				Class:                     ClassUnsolicited,
				Subclass:                  SubclassTransactionRequest,
				TopOfReceipt:              "1",
				MessageCoordinationNumber: "~",
				Track2:                    ";4000001234562000=25121011234567890?",
				OpcodeBuffer:              "       A",
				AmountBuffer:              "000000000050",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodeMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeMessage failed: %v", err)
			}
			if wire[0] != StartByte || wire[len(wire)-1] != EndByte {
				t.Fatalf("frame not delimited: % X", wire)
			}
			for i, b := range wire[1 : len(wire)-1] {
				if b == StartByte || b == EndByte {
					t.Fatalf("unescaped framing byte 0x%02X at offset %d", b, i+1)
				}
			}

			frame, err := DecodeFrame(wire)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if frame.ParseError() != nil {
				t.Fatalf("ParseError() = %v", frame.ParseError())
			}
			if diff := cmp.Diff(tt.msg, frame.Message(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	wire := MustEncodeMessage(NewSolicitedStatus(StatusReady))

	// Corrupt the last CRC byte (just before END); keep it clear of framing bytes
	corrupted := append([]byte(nil), wire...)
	corrupted[len(corrupted)-2] ^= 0x01
	if b := corrupted[len(corrupted)-2]; b == StartByte || b == EndByte || b == EscByte {
		corrupted[len(corrupted)-2] ^= 0x03
	}

	_, err := DecodeFrame(corrupted)
	if err == nil {
		t.Fatal("expected CRC error")
	}
	if !errors.Is(err, ErrCRCMismatch) {
		t.Errorf("error = %v, want ErrCRCMismatch", err)
	}
}

func TestDecoder_ResyncOnStartByte(t *testing.T) {
	wire := MustEncodeMessage(NewSolicitedStatus(StatusReady))

	// Garbage and a truncated frame before the real one
	stream := []byte{0x01, 0x02, StartByte, 0x00, 0x05, 0xA1}
	stream = append(stream, wire...)

	d := NewDecoder()
	var frames []*Frame
	for _, b := range stream {
		frame, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}

	if len(frames) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(frames))
	}
	if got := frames[0].Message().StatusDescriptor; got != StatusReady {
		t.Errorf("StatusDescriptor = %q, want %q", got, StatusReady)
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartByte)
	d.DecodeByte(0x50) // 0x50xx > MaxBodySize
	_, err := d.DecodeByte(0x00)
	if err == nil {
		t.Error("expected invalid length error")
	}
}

func TestDecoder_EmptyBody(t *testing.T) {
	wire, err := EncodeBody(nil)
	if err != nil {
		t.Fatalf("EncodeBody failed: %v", err)
	}
	frame, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if !errors.Is(frame.ParseError(), ErrEmptyBody) {
		t.Errorf("ParseError() = %v, want ErrEmptyBody", frame.ParseError())
	}
	if frame.Message() != nil {
		t.Error("Message() should be nil for an empty body")
	}
}

func TestEncodeBody_TooLarge(t *testing.T) {
	if _, err := EncodeBody(make([]byte, MaxBodySize+1)); err == nil {
		t.Error("expected error for oversized body")
	}
}

func TestUnstuffBytes(t *testing.T) {
	data := []byte{0x01, StartByte, EndByte, EscByte, 0x02}
	unstuffed, err := UnstuffBytes(stuffBytes(data))
	if err != nil {
		t.Fatalf("UnstuffBytes failed: %v", err)
	}
	if diff := cmp.Diff(data, unstuffed); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("expected error for trailing escape")
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       *Message
		wantTypes []AnomalyType
	}{
		{"valid terminal command", &Message{Class: ClassTerminalCommand, CommandCode: CommandGoInService}, nil},
		{"missing class", &Message{}, []AnomalyType{AnomalyMissingField}},
		{"terminal command without code", &Message{Class: ClassTerminalCommand}, []AnomalyType{AnomalyMissingField}},
		{"unknown class", &Message{Class: "Bogus"}, []AnomalyType{AnomalyUnknownClass}},
		{"reply without next state", &Message{Class: ClassTransactionReply}, []AnomalyType{AnomalyMissingField}},
		{"reply with bad next state", &Message{Class: ClassTransactionReply, NextState: "12"}, []AnomalyType{AnomalyInvalidValue}},
		{
			"reply with long coordination number",
			&Message{Class: ClassTransactionReply, NextState: "100", MessageCoordinationNumber: "12"},
			[]AnomalyType{AnomalyInvalidValue},
		},
		{
			"state load without states",
			&Message{Class: ClassDataCommand, Subclass: SubclassCustomization, MessageIdentifier: IdentifierStateTableLoad},
			[]AnomalyType{AnomalyMissingField},
		},
		{"unknown data subclass", &Message{Class: ClassDataCommand, Subclass: "Bogus"}, []AnomalyType{AnomalyUnknownSubclass}},
		{"valid status", NewSolicitedStatus(StatusReady), nil},
		{"request without coordination", &Message{Class: ClassUnsolicited, Subclass: SubclassTransactionRequest}, []AnomalyType{AnomalyMissingField}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []AnomalyType
			for _, v := range ValidateMessage(tt.msg) {
				got = append(got, v.Type)
			}
			if diff := cmp.Diff(tt.wantTypes, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("anomalies mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	hostFrame, err := DecodeFrame(MustEncodeMessage(&Message{Class: ClassTerminalCommand, CommandCode: CommandGoInService}))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	rejectFrame, err := DecodeFrame(MustEncodeMessage(NewSolicitedStatus(StatusCommandReject)))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	requestFrame, err := DecodeFrame(MustEncodeMessage(NewTransactionRequest("1")))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	s.Update(hostFrame, nil, ValidateMessage(hostFrame.Message()))
	s.Update(rejectFrame, nil, ValidateMessage(rejectFrame.Message()))
	s.Update(requestFrame, nil, ValidateMessage(requestFrame.Message()))
	s.Update(nil, ErrCRCMismatch, nil)
	s.Update(nil, errors.New("unexpected END byte in state 2"), nil)

	if s.TotalFrames != 5 {
		t.Errorf("TotalFrames = %d, want 5", s.TotalFrames)
	}
	if s.ValidFrames != 3 {
		t.Errorf("ValidFrames = %d, want 3", s.ValidFrames)
	}
	if s.CRCErrors != 1 || s.DecodeErrors != 1 {
		t.Errorf("CRCErrors = %d, DecodeErrors = %d, want 1 and 1", s.CRCErrors, s.DecodeErrors)
	}
	if s.HostMessages != 1 || s.Replies != 1 || s.Rejects != 1 || s.TransactionRequests != 1 {
		t.Errorf("traffic = host %d, replies %d, rejects %d, requests %d; want 1 each",
			s.HostMessages, s.Replies, s.Rejects, s.TransactionRequests)
	}

	s.Reset()
	if s.TotalFrames != 0 {
		t.Errorf("TotalFrames after Reset = %d, want 0", s.TotalFrames)
	}
}

func TestFormatFrame(t *testing.T) {
	frame, err := DecodeFrame(MustEncodeMessage(&Message{
		Class:                     ClassUnsolicited,
		Subclass:                  SubclassTransactionRequest,
		MessageCoordinationNumber: "3",
		Track2:                    ";4000001234562000=2512101?",
		PINBuffer:                 "0123456789:;<=>?",
	}))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	out := FormatFrame(frame)
	for _, want := range []string{"TRANSACTION_REQUEST", "Coordination: 3", "400000******2000=", "PIN Block: ****************"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789") {
		t.Errorf("FormatFrame leaked the PIN block:\n%s", out)
	}
}
