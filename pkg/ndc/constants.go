// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ndc provides the host link wire model for an NDC-style
// self-service terminal.
//
// Messages travel between the host and the terminal as framed CBOR maps
// whose keys are the logical field names of the host protocol
// (message_class, message_subclass, command_code, ...). This package
// provides message encoding/decoding, CRC validation, structural
// validation, link statistics and human-readable formatting.
package ndc

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxBodySize  = 16384
	LengthSize   = 2
	MaxFrameSize = LengthSize + MaxBodySize + 2
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message classes
const (
	ClassTerminalCommand  = "Terminal Command"
	ClassDataCommand      = "Data Command"
	ClassTransactionReply = "Transaction Reply Command"
	ClassSolicited        = "Solicited"
	ClassUnsolicited      = "Unsolicited"
)

// Message subclasses
const (
	SubclassCustomization       = "Customization Command"
	SubclassInteractiveResponse = "Interactive Transaction Response"
	SubclassExtendedEncKeyInfo  = "Extended Encryption Key Information"
	SubclassStatus              = "Status"
	SubclassTransactionRequest  = "Transaction Request"
)

// Terminal command codes
const (
	CommandGoInService         = "Go in-service"
	CommandGoOutOfService      = "Go out-of-service"
	CommandSendConfigurationID = "Send Configuration ID"
	CommandSendSupplyCounters  = "Send Supply Counters"
)

// Customization data message identifiers
const (
	IdentifierScreenDataLoad = "Screen Data load"
	IdentifierStateTableLoad = "State Tables load"
	IdentifierFITDataLoad    = "FIT Data load"
	IdentifierConfigIDLoad   = "Configuration ID number load"
)

// Extended encryption key modifiers
const (
	ModifierDecipherCommsKey = "Decipher new comms key with current master key"
)

// Solicited status descriptors
const (
	StatusReady                 = "Ready"
	StatusCommandReject         = "Command Reject"
	StatusSpecificCommandReject = "Specific Command Reject"
	StatusTerminalState         = "Terminal State"
)

// CoordinationOverride is the coordination number a host sends to skip
// the reply/request match check.
const CoordinationOverride = "0"

// Decoder states (internal)
const (
	stateIdle = iota
	stateLengthHi
	stateLengthLo
	stateBody
	stateCRC1
	stateCRC2
	stateEnd
)
