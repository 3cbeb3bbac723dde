// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

// SupplyCounters is the counter set reported in a Terminal State reply to
// a Send Supply Counters command.
type SupplyCounters struct {
	TSN                    string `cbor:"tsn,omitempty" yaml:"tsn"`
	TransactionCount       string `cbor:"transaction_count,omitempty" yaml:"transaction_count"`
	NotesInCassettes       string `cbor:"notes_in_cassettes,omitempty" yaml:"notes_in_cassettes"`
	NotesRejected          string `cbor:"notes_rejected,omitempty" yaml:"notes_rejected"`
	NotesDispensed         string `cbor:"notes_dispensed,omitempty" yaml:"notes_dispensed"`
	LastTrxnNotesDispensed string `cbor:"last_trxn_notes_dispensed,omitempty" yaml:"last_trxn_notes_dispensed"`
	CardCaptured           string `cbor:"card_captured,omitempty" yaml:"card_captured"`
	EnvelopesDeposited     string `cbor:"envelopes_deposited,omitempty" yaml:"envelopes_deposited"`
	CameraFilmRemaining    string `cbor:"camera_film_remaining,omitempty" yaml:"camera_film_remaining"`
	LastEnvelopeSerial     string `cbor:"last_envelope_serial,omitempty" yaml:"last_envelope_serial"`
}

// IsZero reports whether no counter is set
func (c SupplyCounters) IsZero() bool {
	return c == SupplyCounters{}
}

// Message is a single host link message in either direction.
//
// Only the fields relevant to a given class/subclass are populated; the
// rest stay empty and are left off the wire.
type Message struct {
	Class    string `cbor:"message_class" yaml:"message_class"`
	Subclass string `cbor:"message_subclass,omitempty" yaml:"message_subclass,omitempty"`

	// Terminal commands
	CommandCode string `cbor:"command_code,omitempty" yaml:"command_code,omitempty"`

	// Customization data commands
	MessageIdentifier string   `cbor:"message_identifier,omitempty" yaml:"message_identifier,omitempty"`
	Screens           []string `cbor:"screens,omitempty" yaml:"screens,omitempty"`
	States            []string `cbor:"states,omitempty" yaml:"states,omitempty"`
	FITs              []string `cbor:"FITs,omitempty" yaml:"FITs,omitempty"`
	ConfigID          string   `cbor:"config_id,omitempty" yaml:"config_id,omitempty"`

	// Interactive transaction response
	ActiveKeys      string `cbor:"active_keys,omitempty" yaml:"active_keys,omitempty"`
	ScreenDataField string `cbor:"screen_data_field,omitempty" yaml:"screen_data_field,omitempty"`

	// Transaction reply
	NextState           string `cbor:"next_state,omitempty" yaml:"next_state,omitempty"`
	ScreenDisplayUpdate string `cbor:"screen_display_update,omitempty" yaml:"screen_display_update,omitempty"`

	// Extended encryption key information
	Modifier     string `cbor:"modifier,omitempty" yaml:"modifier,omitempty"`
	NewKeyData   string `cbor:"new_key_data,omitempty" yaml:"new_key_data,omitempty"`
	NewKeyLength string `cbor:"new_key_length,omitempty" yaml:"new_key_length,omitempty"`

	// Solicited status
	StatusDescriptor string `cbor:"status_descriptor,omitempty" yaml:"status_descriptor,omitempty"`
	SupplyCounters   `yaml:",inline"`

	// Transaction request (and the coordination number echoed by replies)
	TopOfReceipt              string `cbor:"top_of_receipt,omitempty" yaml:"top_of_receipt,omitempty"`
	MessageCoordinationNumber string `cbor:"message_coordination_number,omitempty" yaml:"message_coordination_number,omitempty"`
	Track2                    string `cbor:"track2,omitempty" yaml:"track2,omitempty"`
	OpcodeBuffer              string `cbor:"opcode_buffer,omitempty" yaml:"opcode_buffer,omitempty"`
	AmountBuffer              string `cbor:"amount_buffer,omitempty" yaml:"amount_buffer,omitempty"`
	PINBuffer                 string `cbor:"PIN_buffer,omitempty" yaml:"PIN_buffer,omitempty"`
	BufferB                   string `cbor:"buffer_B,omitempty" yaml:"buffer_B,omitempty"`
	BufferC                   string `cbor:"buffer_C,omitempty" yaml:"buffer_C,omitempty"`
}

// NewSolicitedStatus creates a solicited status reply with the given descriptor
func NewSolicitedStatus(descriptor string) *Message {
	return &Message{
		Class:            ClassSolicited,
		Subclass:         SubclassStatus,
		StatusDescriptor: descriptor,
	}
}

// NewTransactionRequest creates an unsolicited transaction request carrying
// only the mandatory fields. Optional fields are filled in by the caller.
func NewTransactionRequest(coordinationNumber string) *Message {
	return &Message{
		Class:                     ClassUnsolicited,
		Subclass:                  SubclassTransactionRequest,
		TopOfReceipt:              "1",
		MessageCoordinationNumber: coordinationNumber,
	}
}

// IsSolicitedStatus returns true for terminal-to-host status replies
func (m *Message) IsSolicitedStatus() bool {
	return m.Class == ClassSolicited && m.Subclass == SubclassStatus
}

// IsTransactionRequest returns true for unsolicited transaction requests
func (m *Message) IsTransactionRequest() bool {
	return m.Class == ClassUnsolicited && m.Subclass == SubclassTransactionRequest
}

// FromHost returns true if the message class is one a host sends
func (m *Message) FromHost() bool {
	switch m.Class {
	case ClassTerminalCommand, ClassDataCommand, ClassTransactionReply:
		return true
	}
	return false
}
